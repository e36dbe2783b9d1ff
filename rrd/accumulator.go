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

// accumulator holds the readings of the current slot, at most limit
// of them. Readings [0, clean) are known to be on disk as they are in
// memory, and onDisk is the reading count last written.
type accumulator struct {
	readings []Reading
	limit    int
	clean    int
	onDisk   int
}

func (a *accumulator) add(r Reading) {
	if len(a.readings) == a.limit {
		// too many readings for one slot, the oldest one goes
		copy(a.readings, a.readings[1:])
		a.readings = a.readings[:len(a.readings)-1]
		a.clean = 0
	}
	a.readings = append(a.readings, r)
}

func (a *accumulator) len() int { return len(a.readings) }

func (a *accumulator) clear() {
	a.readings = a.readings[:0]
	a.clean = 0
}

// persist writes readings that changed, clears slots which are no
// longer used and updates the count.
func (a *accumulator) persist(st archiveStore) error {
	n := len(a.readings)
	upto := n
	if a.onDisk > upto {
		upto = a.onDisk
	}
	for i := a.clean; i < upto; i++ {
		var r *Reading
		if i < n {
			r = &a.readings[i]
		}
		if err := st.writeReading(i, r); err != nil {
			return err
		}
	}
	if n != a.onDisk {
		if err := st.writeReadingCount(n); err != nil {
			return err
		}
	}
	a.clean, a.onDisk = n, n
	return nil
}
