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
	"errors"
	"testing"
	"time"
)

func queueOf(capacity int, t0 time.Time, values ...float64) *Queue {
	q := newQueue(capacity)
	for i, v := range values {
		q.push(DataPoint{Value: v, Time: t0.Add(time.Duration(i) * time.Minute)})
	}
	return q
}

func values(dps []DataPoint) []float64 {
	result := make([]float64, len(dps))
	for i, dp := range dps {
		result[i] = dp.Value
	}
	return result
}

func sameValues(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func Test_Queue_push(t *testing.T) {
	t0 := time.Unix(0, 0)
	q := newQueue(3)
	if q.Len() != 0 || q.Cap() != 3 {
		t.Errorf("new queue: len %d cap %d", q.Len(), q.Cap())
	}
	if _, ok := q.Last(); ok {
		t.Errorf("Last on an empty queue")
	}

	q.push(DataPoint{Value: 1, Time: t0})
	if q.start != 0 || q.end() != 0 || q.size != 1 {
		t.Errorf("first push: start %d end %d size %d", q.start, q.end(), q.size)
	}
	q.push(DataPoint{Value: 2, Time: t0})
	q.push(DataPoint{Value: 3, Time: t0})
	if q.start != 0 || q.end() != 2 || q.size != 3 {
		t.Errorf("full: start %d end %d size %d", q.start, q.end(), q.size)
	}

	// eviction: both ends move, the oldest slot is reused
	q.push(DataPoint{Value: 4, Time: t0})
	if q.start != 1 || q.end() != 0 || q.size != 3 {
		t.Errorf("after eviction: start %d end %d size %d", q.start, q.end(), q.size)
	}
	if got := values(q.All()); !sameValues(got, []float64{2, 3, 4}) {
		t.Errorf("All: %v", got)
	}
	q.push(DataPoint{Value: 5, Time: t0})
	q.push(DataPoint{Value: 6, Time: t0})
	q.push(DataPoint{Value: 7, Time: t0})
	if got := values(q.All()); !sameValues(got, []float64{5, 6, 7}) {
		t.Errorf("All after wrapping twice: %v", got)
	}
	if dp, ok := q.Last(); !ok || dp.Value != 7 {
		t.Errorf("Last: %v %v", dp, ok)
	}
}

func Test_Queue_At(t *testing.T) {
	q := queueOf(3, time.Unix(0, 0), 1, 2, 3, 4)
	for pos, expect := range map[int]float64{1: 2, 2: 3, 3: 4} {
		if dp, err := q.At(pos); err != nil || dp.Value != expect {
			t.Errorf("At(%d) = %v, %v; expected %v", pos, dp.Value, err, expect)
		}
	}
	for _, pos := range []int{0, 4, -1} {
		if _, err := q.At(pos); err == nil {
			t.Errorf("At(%d): expected an error", pos)
		}
	}
}

func Test_Queue_FilterByTime(t *testing.T) {
	t0 := time.Unix(0, 0)
	q := queueOf(10, t0, 0, 1, 2, 3, 4, 5)
	at := func(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

	for _, c := range []struct {
		from   time.Time
		to     []time.Time
		expect []float64
	}{
		{t0, nil, []float64{0, 1, 2, 3, 4, 5}},
		{at(2), nil, []float64{2, 3, 4, 5}},
		{at(2).Add(time.Second), nil, []float64{3, 4, 5}},
		{at(2), []time.Time{at(4)}, []float64{2, 3, 4}}, // inclusive
		{at(2), []time.Time{at(2)}, []float64{2}},
		{at(2).Add(time.Second), []time.Time{at(3).Add(-time.Second)}, []float64{}},
		{at(7), nil, []float64{}},
		{t0.Add(-time.Hour), []time.Time{t0.Add(-time.Minute)}, []float64{}},
	} {
		dps, err := q.FilterByTime(c.from, c.to...)
		if err != nil {
			t.Errorf("FilterByTime(%v, %v): %v", c.from, c.to, err)
			continue
		}
		if got := values(dps); !sameValues(got, c.expect) {
			t.Errorf("FilterByTime(%v, %v) = %v, expected %v", c.from, c.to, got, c.expect)
		}
	}

	if _, err := q.FilterByTime(at(3), at(2)); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("from > to: %v", err)
	}
}

type recordingArchiveStore struct {
	nopStore
	dataPoints map[int]DataPoint
	cursor     [3]int
	readings   map[int]*Reading
	count      int
	expiries   int
}

func newRecordingArchiveStore() *recordingArchiveStore {
	return &recordingArchiveStore{dataPoints: make(map[int]DataPoint), readings: make(map[int]*Reading)}
}

func (s *recordingArchiveStore) writeSlotExpiry(time.Time) error { s.expiries++; return nil }
func (s *recordingArchiveStore) writeReadingCount(n int) error  { s.count = n; return nil }

func (s *recordingArchiveStore) writeReading(i int, r *Reading) error {
	if r != nil {
		c := *r
		r = &c
	}
	s.readings[i] = r
	return nil
}

func (s *recordingArchiveStore) writeQueueCursor(start, end, size int) error {
	s.cursor = [3]int{start, end, size}
	return nil
}

func (s *recordingArchiveStore) writeDataPoint(i int, dp *DataPoint) error {
	s.dataPoints[i] = *dp
	return nil
}

func Test_Queue_persist(t *testing.T) {
	q := queueOf(3, time.Unix(0, 0), 1, 2, 3, 4)
	st := newRecordingArchiveStore()
	if err := q.persist(st); err != nil {
		t.Fatal(err)
	}
	if st.cursor != [3]int{1, 0, 3} {
		t.Errorf("cursor: %v", st.cursor)
	}
	if len(st.dataPoints) != 3 || st.dataPoints[0].Value != 4 {
		t.Errorf("data points: %v", st.dataPoints)
	}
	if len(q.dirty) != 0 || q.cursorDirty {
		t.Errorf("queue still dirty after persist")
	}
}
