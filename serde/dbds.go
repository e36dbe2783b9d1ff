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

package serde

// Data source record layout. The archive records follow immediately,
// one per template, in template order.
//
//   conversion u8 | interval i64 | lastReading slot |
//   min f64 | max f64 | total u64 | discarded u64
const (
	dsConversionPos = 0
	dsIntervalPos   = 1
	dsLastPos       = 9
	dsRangePos      = dsLastPos + slotSize
	dsStatsPos      = dsRangePos + 16
	dsSize          = dsStatsPos + 16
)

// DataSourceRecord is the stored form of a data source. Its name is
// in the fixup table.
type DataSourceRecord struct {
	rec      *Record
	fixup    *FixupEntry
	Archives []*ArchiveRecord
}

// Offset of the data source record.
func (ds *DataSourceRecord) Offset() int64 { return ds.rec.off }

// SetName stages a rename of the data source.
func (ds *DataSourceRecord) SetName(name string) error { return ds.fixup.SetName(name) }

// WriteLastReading stages the last accepted (raw) reading.
func (ds *DataSourceRecord) WriteLastReading(s Slot) error {
	e := newEncoder(slotSize)
	e.slot(s)
	return ds.rec.update(dsLastPos, e)
}

// WriteStats stages the accepted and discarded counters.
func (ds *DataSourceRecord) WriteStats(total, discarded uint64) error {
	e := newEncoder(16)
	e.u64(total)
	e.u64(discarded)
	return ds.rec.update(dsStatsPos, e)
}

func encodeDataSource(ds *DataSource) *encoder {
	e := newEncoder(dsSize)
	e.u8(ds.Conversion)
	e.i64(ds.Interval)
	e.slot(ds.LastReading)
	e.f64(ds.Min)
	e.f64(ds.Max)
	e.u64(ds.Total)
	e.u64(ds.Discarded)
	return e
}

func decodeDataSource(d *decoder) (DataSource, error) {
	ds := DataSource{
		Conversion:  d.u8(),
		Interval:    d.i64(),
		LastReading: d.slot(),
		Min:         d.f64(),
		Max:         d.f64(),
		Total:       d.u64(),
		Discarded:   d.u64(),
	}
	return ds, d.err
}
