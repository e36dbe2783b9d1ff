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
	"math"
	"time"

	"github.com/tgres/rrdb/serde"
)

// Adapters between the domain objects and their serde records.

type fileDatabase struct{ f *serde.DB }

func (s fileDatabase) setTitle(title string) error { return s.f.Header.SetTitle(title) }
func (s fileDatabase) commit() error               { return s.f.Commit() }
func (s fileDatabase) discard()                    { s.f.Discard() }
func (s fileDatabase) close() error                { return s.f.Close() }

type fileTemplate struct{ rec *serde.TemplateRecord }

func (s fileTemplate) setName(name string) error { return s.rec.SetName(name) }

type fileDataSource struct{ rec *serde.DataSourceRecord }

func (s fileDataSource) setName(name string) error { return s.rec.SetName(name) }

func (s fileDataSource) writeLastReading(r Reading) error {
	return s.rec.WriteLastReading(readingSlot(&r))
}

func (s fileDataSource) writeStats(st Stats) error {
	return s.rec.WriteStats(st.Total, st.Discarded)
}

type fileArchive struct{ rec *serde.ArchiveRecord }

func (s fileArchive) writeSlotExpiry(t time.Time) error { return s.rec.WriteSlotExpiry(toNanos(t)) }
func (s fileArchive) writeReadingCount(n int) error     { return s.rec.WriteReadingCount(n) }

func (s fileArchive) writeReading(i int, r *Reading) error {
	return s.rec.WriteReading(i, readingSlot(r))
}

func (s fileArchive) writeQueueCursor(start, end, size int) error {
	return s.rec.WriteQueueCursor(start, end, size)
}

func (s fileArchive) writeDataPoint(i int, dp *DataPoint) error {
	if dp == nil {
		return s.rec.WriteDataPoint(i, serde.Slot{})
	}
	return s.rec.WriteDataPoint(i, serde.Slot{Set: true, Time: toNanos(dp.Time), Value: dp.Value})
}

func readingSlot(r *Reading) serde.Slot {
	if r == nil {
		return serde.Slot{}
	}
	return serde.Slot{Set: true, Time: toNanos(r.Time), Value: r.Value}
}

func slotReading(s serde.Slot) Reading {
	return Reading{Value: s.Value, Time: fromNanos(s.Time)}
}

func slotDataPoint(s serde.Slot) DataPoint {
	if !s.Set {
		return DataPoint{Value: math.NaN()}
	}
	return DataPoint{Value: s.Value, Time: fromNanos(s.Time)}
}
