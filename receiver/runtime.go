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
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"golang.org/x/time/rate"

	"github.com/tgres/rrdb/rrd"
)

// Data sources the Collector writes to.
const (
	CPUDataSource = "cpu"
	MemDataSource = "mem"
)

var runtimeMemory = func() uint64 {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return mem.Alloc
}

var runtimeCpuPercent = func() float64 {
	ps, _ := cpu.Percent(0, false)
	if len(ps) > 0 {
		return ps[0]
	}
	return 0
}

// Collector samples host CPU percent and allocated memory into the
// "cpu" and "mem" data sources of a database, once per polling
// interval of the faster of the two.
type Collector struct {
	db      *rrd.Database
	limiter *rate.Limiter
}

// NewCollector returns a Collector for db, which must have a "cpu"
// and a "mem" data source.
func NewCollector(db *rrd.Database) (*Collector, error) {
	var interval time.Duration
	for _, name := range []string{CPUDataSource, MemDataSource} {
		ds := db.DataSource(name)
		if ds == nil {
			return nil, fmt.Errorf("%w: %q", rrd.ErrUnknownDataSource, name)
		}
		if interval == 0 || ds.Interval() < interval {
			interval = ds.Interval()
		}
	}
	return &Collector{db: db, limiter: rate.NewLimiter(rate.Every(interval), 1)}, nil
}

// Sample takes one sample and pushes it.
func (c *Collector) Sample() error {
	now := timeNow()
	return c.db.PushPayloads(
		rrd.Payload{DataSource: CPUDataSource, Readings: []rrd.Reading{{Value: runtimeCpuPercent(), Time: now}}},
		rrd.Payload{DataSource: MemDataSource, Readings: []rrd.Reading{{Value: float64(runtimeMemory()), Time: now}}},
	)
}

// Run samples until ctx is done or, if count > 0, count samples were
// taken. It returns the number of samples taken.
func (c *Collector) Run(ctx context.Context, count int) (int, error) {
	n := 0
	for count <= 0 || n < count {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return n, nil
			}
			return n, err
		}
		if err := c.Sample(); err != nil {
			return n, err
		}
		n++
		logger().Debug().Int("n", n).Msg("collected sample")
	}
	return n, nil
}
