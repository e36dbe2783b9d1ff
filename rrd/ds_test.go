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
	"testing"
	"time"
)

type recordingDataSourceStore struct {
	nopStore
	lastReadings []Reading
	stats        []Stats
}

func (s *recordingDataSourceStore) writeLastReading(r Reading) error {
	s.lastReadings = append(s.lastReadings, r)
	return nil
}

func (s *recordingDataSourceStore) writeStats(st Stats) error {
	s.stats = append(s.stats, st)
	return nil
}

func Test_DataSource_rangeRejection(t *testing.T) {
	spec := testSpec(GAUGE, AVERAGE, 50, 2, 10)
	spec.DataSources[0].Min, spec.DataSources[0].Max = 0, 100
	db, a := memoryArchive(t, spec)
	ds := db.DataSource("ds")

	if err := db.Push("ds", Reading{Value: -1, Time: at(1)}, Reading{Value: 101, Time: at(1)}); err != nil {
		t.Fatal(err)
	}
	if ds.Stats() != (Stats{Total: 0, Discarded: 2}) {
		t.Errorf("stats: %+v", ds.Stats())
	}
	if len(a.Accumulated()) != 0 || a.DataPoints().Len() != 0 {
		t.Errorf("rejected readings reached the archive")
	}
	if _, ok := ds.LastReading(); ok {
		t.Errorf("rejected reading became the last reading")
	}

	// bounds are inclusive, NaN is never out of range
	db.Push("ds", Reading{Value: 0, Time: at(1)}, Reading{Value: math.NaN(), Time: at(1).Add(time.Second)})
	db.Push("ds", Reading{Value: 100, Time: at(1).Add(2 * time.Second)})
	if ds.Stats() != (Stats{Total: 3, Discarded: 2}) {
		t.Errorf("stats: %+v", ds.Stats())
	}
}

func Test_DataSource_monotonicTime(t *testing.T) {
	db, _ := memoryArchive(t, testSpec(GAUGE, AVERAGE, 50, 2, 10))
	ds := db.DataSource("ds")

	// not after start
	db.Push("ds", Reading{Value: 1, Time: testStart})
	if ds.Stats().Discarded != 1 {
		t.Errorf("reading at start time accepted")
	}

	db.Push("ds", Reading{Value: 1, Time: at(1)})
	// equal is discarded too, not just before
	db.Push("ds", Reading{Value: 2, Time: at(1)}, Reading{Value: 3, Time: at(1).Add(-time.Second)})
	if ds.Stats() != (Stats{Total: 1, Discarded: 3}) {
		t.Errorf("stats: %+v", ds.Stats())
	}
	if r, _ := ds.LastReading(); r.Value != 1 {
		t.Errorf("last reading: %v", r)
	}
	if !ds.LastUpdate().Equal(at(1)) {
		t.Errorf("last update: %v", ds.LastUpdate())
	}
}

func Test_DataSource_lastReadingIsRaw(t *testing.T) {
	db, a := memoryArchive(t, testSpec(COUNTER, AVERAGE, 50, 3, 10))
	ds := db.DataSource("ds")
	db.Push("ds", Reading{Value: 1000, Time: at(1)}, Reading{Value: 1600, Time: at(2)})

	if r, ok := ds.LastReading(); !ok || r.Value != 1600 || !r.Time.Equal(at(2)) {
		t.Errorf("last reading: %v %v", r, ok)
	}
	acc := a.Accumulated()
	if len(acc) != 2 || !math.IsNaN(acc[0].Value) || acc[1].Value != 2 {
		t.Errorf("accumulated converted readings: %v", acc)
	}
}

func Test_DataSource_persistence(t *testing.T) {
	db, _ := memoryArchive(t, testSpec(GAUGE, AVERAGE, 50, 2, 10))
	ds := db.DataSource("ds")
	st := &recordingDataSourceStore{}
	ds.store = st

	// nothing happened, nothing is written
	db.Push("ds")
	if len(st.lastReadings) != 0 || len(st.stats) != 0 {
		t.Errorf("empty push wrote %v %v", st.lastReadings, st.stats)
	}

	// only discarded: stats but no last reading
	db.Push("ds", Reading{Value: 1, Time: testStart})
	if len(st.lastReadings) != 0 || len(st.stats) != 1 {
		t.Errorf("discarded push wrote %v %v", st.lastReadings, st.stats)
	}

	db.Push("ds", Reading{Value: 1, Time: at(1)}, Reading{Value: 2, Time: at(2)})
	if len(st.lastReadings) != 1 || st.lastReadings[0].Value != 2 {
		t.Errorf("last readings written: %v", st.lastReadings)
	}
	if len(st.stats) != 2 || st.stats[1] != (Stats{Total: 2, Discarded: 1}) {
		t.Errorf("stats written: %v", st.stats)
	}
}

func Test_DataSource_fanOut(t *testing.T) {
	spec := testSpec(GAUGE, AVERAGE, 50, 1, 10)
	spec.Archives = append(spec.Archives,
		ArchiveSpec{Name: "max", Function: MAX, XFF: 50, ReadingsPerDataPoint: 2, MaxDataPoints: 10})
	db, err := NewMemory(spec)
	if err != nil {
		t.Fatal(err)
	}
	db.Push("ds", Reading{Value: 5, Time: at(1)}, Reading{Value: 3, Time: at(2)})

	ds := db.DataSource("DS")
	if got := values(ds.Archive("rra").DataPoints().All()); !sameValues(got, []float64{5, 3}) {
		t.Errorf("rra: %v", got)
	}
	mx := ds.Archive("MAX").DataPoints().All()
	if len(mx) != 1 || mx[0].Value != 5 || !mx[0].Time.Equal(at(1)) {
		t.Errorf("max: %v", mx)
	}
	if ds.Archive("nope") != nil {
		t.Errorf("unknown archive found")
	}
}
