//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package receiver

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tgres/rrdb/logging"
	"github.com/tgres/rrdb/rrd"
)

func logger() *zerolog.Logger { return logging.Get() }

// Extension of database files in the data directory.
const Extension = ".rrdb"

// RouterStats count what happened to the data points handed to a
// Router. Readings that reach a database but are then discarded
// (out of range, too old) are counted by the data source.
type RouterStats struct {
	Received uint64 // data points added
	Routed   uint64 // data points pushed to a database
	Dropped  uint64 // bad name, unknown database or data source
	Failed   uint64 // lost to a database error
	Closed   uint64 // database handles closed
}

var openDatabase = func(path string, opts ...rrd.Option) (*rrd.Database, error) {
	return rrd.Open(path, rrd.ReadWrite, opts...)
}

// Router sends data points named "<database>.<datasource>" to
// <dir>/<database>.rrdb. Data points are batched and pushed by
// Flush, one commit per database. Up to maxOpen databases are kept
// open, the least recently used one is closed when another is needed.
type Router struct {
	*sync.Mutex
	dir     string
	opts    []rrd.Option
	cache   *lru.Cache
	pending map[string]map[string][]rrd.Reading // db -> ds -> readings
	stats   RouterStats
}

// NewRouter returns a Router for the databases in dir. opts are used
// when opening them.
func NewRouter(dir string, maxOpen int, opts ...rrd.Option) (*Router, error) {
	r := &Router{
		Mutex:   &sync.Mutex{},
		dir:     dir,
		opts:    opts,
		pending: make(map[string]map[string][]rrd.Reading),
	}
	cache, err := lru.NewWithEvict(maxOpen, r.evicted)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// evicted is called by the cache with the lock held.
func (r *Router) evicted(key, val interface{}) {
	db := val.(*rrd.Database)
	if err := db.Close(); err != nil {
		logger().Error().Err(err).Str("db", key.(string)).Msg("closing database")
	}
	r.stats.Closed++
}

// Add queues dp until the next Flush.
func (r *Router) Add(dp *IncomingDP) {
	r.Lock()
	defer r.Unlock()

	r.stats.Received++
	dbName, dsName, ok := SplitName(dp.Name)
	if !ok {
		logger().Debug().Str("name", dp.Name).Msg("dropping data point, name is not <database>.<datasource>")
		r.stats.Dropped++
		return
	}
	dss, ok := r.pending[dbName]
	if !ok {
		dss = make(map[string][]rrd.Reading)
		r.pending[dbName] = dss
	}
	dss[dsName] = append(dss[dsName], rrd.Reading{Value: dp.Value, Time: dp.Time})
}

// database returns the open database named name, opening it if
// necessary. Must be called with the lock held.
func (r *Router) database(name string) (*rrd.Database, error) {
	if val, ok := r.cache.Get(name); ok {
		return val.(*rrd.Database), nil
	}
	db, err := openDatabase(filepath.Join(r.dir, name+Extension), r.opts...)
	if err != nil {
		return nil, err
	}
	r.cache.Add(name, db)
	return db, nil
}

// Flush pushes all queued data points, readings of every data source
// in time order.
func (r *Router) Flush() {
	r.Lock()
	defer r.Unlock()

	names := make([]string, 0, len(r.pending))
	for name := range r.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dss := r.pending[name]
		count := func() (n uint64) {
			for _, rs := range dss {
				n += uint64(len(rs))
			}
			return n
		}

		db, err := r.database(name)
		if err != nil {
			logger().Warn().Err(err).Str("db", name).Msg("dropping data points, cannot open database")
			r.stats.Dropped += count()
			continue
		}

		// Names differing only in case are the same data source.
		merged := make(map[string][]rrd.Reading, len(dss))
		for dsName, rs := range dss {
			ds := db.DataSource(dsName)
			if ds == nil {
				logger().Debug().Str("db", name).Str("ds", dsName).Msg("dropping data points, unknown data source")
				r.stats.Dropped += uint64(len(rs))
				delete(dss, dsName)
				continue
			}
			merged[ds.Name()] = append(merged[ds.Name()], rs...)
		}
		payloads := make([]rrd.Payload, 0, len(merged))
		for dsName, rs := range merged {
			sort.SliceStable(rs, func(i, j int) bool { return rs[i].Time.Before(rs[j].Time) })
			payloads = append(payloads, rrd.Payload{DataSource: dsName, Readings: rs})
		}
		if len(payloads) == 0 {
			continue
		}
		sort.Slice(payloads, func(i, j int) bool { return payloads[i].DataSource < payloads[j].DataSource })

		if err := db.PushPayloads(payloads...); err != nil {
			logger().Error().Err(err).Str("db", name).Msg("push failed, closing database")
			r.stats.Failed += count()
			r.cache.Remove(name)
			continue
		}
		r.stats.Routed += count()
	}
	r.pending = make(map[string]map[string][]rrd.Reading)
}

// Stats returns the counters so far.
func (r *Router) Stats() RouterStats {
	r.Lock()
	defer r.Unlock()
	return r.stats
}

// Open is the number of databases currently open.
func (r *Router) Open() int {
	return r.cache.Len()
}

// Close flushes and closes all databases.
func (r *Router) Close() {
	r.Flush()
	r.Lock()
	r.cache.Purge()
	r.Unlock()
}

// Run adds data points from in until it is closed or ctx is done,
// flushing whenever limiter allows it, then flushes what is left. A
// nil limiter flushes once per second.
func (r *Router) Run(ctx context.Context, in <-chan *IncomingDP, limiter *rate.Limiter) {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	defer r.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case dp, ok := <-in:
			if !ok {
				return
			}
			r.Add(dp)
			if limiter.Allow() {
				r.Flush()
			}
		}
	}
}
