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

package rrd

import (
	"strings"
	"time"
)

// DataSource describes a time series: its conversion, the range of
// acceptable values, the last reading and one Archive per template.
type DataSource struct {
	db    *Database
	store dataSourceStore

	name       string
	conversion Conversion
	interval   time.Duration // Polling interval
	rng        Range
	last       *Reading // Last accepted raw reading
	stats      Stats
	archives   []*Archive
}

// Name of the data source.
func (ds *DataSource) Name() string { return ds.name }

// Conversion function of the data source.
func (ds *DataSource) Conversion() Conversion { return ds.conversion }

// Interval is how often readings are expected.
func (ds *DataSource) Interval() time.Duration { return ds.interval }

// Range of acceptable values.
func (ds *DataSource) Range() Range { return ds.rng }

// Stats of the data source.
func (ds *DataSource) Stats() Stats { return ds.stats }

// LastReading is the last accepted raw (not converted) reading.
func (ds *DataSource) LastReading() (Reading, bool) {
	if ds.last == nil {
		return Reading{}, false
	}
	return *ds.last, true
}

// LastUpdate is the time of the last reading or, if there has not
// been one, the database start time. A reading must be after it to be
// accepted.
func (ds *DataSource) LastUpdate() time.Time {
	if ds.last != nil {
		return ds.last.Time
	}
	return ds.db.start
}

// Archives in template order.
func (ds *DataSource) Archives() []*Archive { return ds.archives }

// Archive returns the archive made from the named template
// (case-insensitive), or nil.
func (ds *DataSource) Archive(name string) *Archive {
	for _, a := range ds.archives {
		if strings.EqualFold(a.template.name, name) {
			return a
		}
	}
	return nil
}

// SetName renames the data source. Setting the same name is a no-op.
func (ds *DataSource) SetName(name string) error {
	if name == ds.name {
		return nil
	}
	return ds.db.renameDataSource(ds, name)
}

// push filters and converts readings, hands the survivors to every
// archive and stages the new last reading and stats. Readings out of
// range or not after LastUpdate are discarded and counted as such.
func (ds *DataSource) push(readings []Reading) error {
	before := ds.stats

	var accepted []Reading
	for _, r := range readings {
		if !ds.rng.Contains(r.Value) {
			ds.stats.Discarded++
			continue
		}
		lastUpdate := ds.LastUpdate()
		if !r.Time.After(lastUpdate) {
			ds.stats.Discarded++
			continue
		}
		accepted = append(accepted, Reading{Value: ds.conversion.convert(r, ds.last, lastUpdate), Time: r.Time})
		raw := r
		ds.last = &raw
		ds.stats.Total++
	}

	if len(accepted) > 0 {
		for _, a := range ds.archives {
			if err := a.push(accepted); err != nil {
				return err
			}
		}
		if err := ds.store.writeLastReading(*ds.last); err != nil {
			return err
		}
	}
	if ds.stats != before {
		if err := ds.store.writeStats(ds.stats); err != nil {
			return err
		}
	}
	return nil
}
