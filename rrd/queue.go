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
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// Queue is a fixed-capacity ring of data points. Once full, every push
// overwrites the oldest data point.
type Queue struct {
	slots []DataPoint // physical order, len(slots) is the capacity
	start int
	size  int

	dirty       []int // physical slots changed since last persist
	cursorDirty bool
}

func newQueue(capacity int) *Queue {
	return &Queue{slots: make([]DataPoint, capacity)}
}

// index maps a logical position (0 is the oldest) to a physical slot.
func (q *Queue) index(i int) int { return (q.start + i) % len(q.slots) }

// end is the physical slot of the newest data point.
func (q *Queue) end() int {
	if q.size == 0 {
		return q.start
	}
	return q.index(q.size - 1)
}

// Len is the number of data points in the queue.
func (q *Queue) Len() int { return q.size }

// Cap is the maximum number of data points.
func (q *Queue) Cap() int { return len(q.slots) }

func (q *Queue) push(dp DataPoint) {
	var pos int
	switch {
	case q.size == 0:
		q.start, q.size = 0, 1
	case q.size < len(q.slots):
		pos = q.index(q.size)
		q.size++
	default:
		pos = q.start
		q.start = q.index(1)
	}
	q.slots[pos] = dp
	q.dirty = append(q.dirty, pos)
	q.cursorDirty = true
}

// At returns the data point at 1-based position pos, 1 being the
// oldest.
func (q *Queue) At(pos int) (DataPoint, error) {
	if pos < 1 || pos > q.size {
		return DataPoint{}, fmt.Errorf("position %d out of range [1, %d]", pos, q.size)
	}
	return q.slots[q.index(pos-1)], nil
}

// All returns a copy of the data points, oldest first.
func (q *Queue) All() []DataPoint {
	result := make([]DataPoint, q.size)
	for i := range result {
		result[i] = q.slots[q.index(i)]
	}
	return result
}

// Last returns the newest data point.
func (q *Queue) Last() (DataPoint, bool) {
	if q.size == 0 {
		return DataPoint{}, false
	}
	return q.slots[q.end()], true
}

// FilterByTime returns, oldest first, the data points with a time
// that is not before from and, if to is given, not after to[0].
func (q *Queue) FilterByTime(from time.Time, to ...time.Time) ([]DataPoint, error) {
	if len(to) > 0 && from.After(to[0]) {
		return nil, fmt.Errorf("%w: %v is after %v", ErrInvalidTimeRange, from, to[0])
	}

	all := q.All()
	first := slices.IndexFunc(all, func(dp DataPoint) bool { return !dp.Time.Before(from) })
	if first < 0 {
		return []DataPoint{}, nil
	}
	last := len(all) - 1
	if len(to) > 0 {
		for last >= 0 && all[last].Time.After(to[0]) {
			last--
		}
	}
	if last < first {
		return []DataPoint{}, nil
	}
	return all[first : last+1], nil
}

func (q *Queue) persist(st archiveStore) error {
	for _, pos := range q.dirty {
		dp := q.slots[pos]
		if err := st.writeDataPoint(pos, &dp); err != nil {
			return err
		}
	}
	q.dirty = q.dirty[:0]
	if q.cursorDirty {
		if err := st.writeQueueCursor(q.start, q.end(), q.size); err != nil {
			return err
		}
		q.cursorDirty = false
	}
	return nil
}
