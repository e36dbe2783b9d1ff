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
)

// ArchiveTemplate describes an archive. Every data source of a
// database has one archive per template.
type ArchiveTemplate struct {
	db    *Database
	store templateStore

	name string
	seq  int
	// Consolidation function (CF). How the readings of a slot are
	// reduced to a data point.
	function Consolidation
	// X-Files Factor (XFF), in percent. If fewer than xff% of the
	// expected readings of a slot arrived, the data point is NaN.
	xff                  int
	readingsPerDataPoint int
	maxDataPoints        int
}

// Name of the template, and of every archive made from it.
func (t *ArchiveTemplate) Name() string { return t.name }

// Seq is the position of the template in the database, starting at 0.
func (t *ArchiveTemplate) Seq() int { return t.seq }

// Function is the consolidation function.
func (t *ArchiveTemplate) Function() Consolidation { return t.function }

// XFF is the x-factor in percent.
func (t *ArchiveTemplate) XFF() int { return t.xff }

// ReadingsPerDataPoint is the number of readings in a slot.
func (t *ArchiveTemplate) ReadingsPerDataPoint() int { return t.readingsPerDataPoint }

// MaxDataPoints is the capacity of the data point queue.
func (t *ArchiveTemplate) MaxDataPoints() int { return t.maxDataPoints }

// SetName renames the template. Setting the same name is a no-op.
func (t *ArchiveTemplate) SetName(name string) error {
	if name == t.name {
		return nil
	}
	return t.db.renameTemplate(t, name)
}

// Archive is a template applied to a data source.
type Archive struct {
	template *ArchiveTemplate
	ds       *DataSource
	store    archiveStore

	// Time at which the current slot ends. Only moves forward, in
	// steps of the slot size.
	slotExpiry  time.Time
	expiryDirty bool

	acc   accumulator
	queue *Queue
}

func newArchive(t *ArchiveTemplate, ds *DataSource, st archiveStore) *Archive {
	return &Archive{
		template: t,
		ds:       ds,
		store:    st,
		acc:      accumulator{limit: t.readingsPerDataPoint},
		queue:    newQueue(t.maxDataPoints),
	}
}

// Template the archive was made from.
func (a *Archive) Template() *ArchiveTemplate { return a.template }

// Name of the archive, which is the name of its template.
func (a *Archive) Name() string { return a.template.name }

// SlotExpiry is the time at which the current slot ends.
func (a *Archive) SlotExpiry() time.Time { return a.slotExpiry }

// Step is the time covered by one data point.
func (a *Archive) Step() time.Duration {
	return a.ds.interval * time.Duration(a.template.readingsPerDataPoint)
}

// Accumulated returns a copy of the readings of the current slot
// which have not been consolidated yet.
func (a *Archive) Accumulated() []Reading {
	return append([]Reading(nil), a.acc.readings...)
}

// DataPoints is the data point queue.
func (a *Archive) DataPoints() *Queue { return a.queue }

// push processes (converted) readings in order and then stages the
// resulting changes once.
func (a *Archive) push(readings []Reading) error {
	for _, r := range readings {
		a.process(r)
	}
	return a.persist()
}

func (a *Archive) process(r Reading) {
	a.acc.add(r)

	if r.Time.Before(a.slotExpiry) {
		return
	}

	step := a.Step()
	advanced := false
	if a.slotExpiry.Before(r.Time) {
		// Slots skipped entirely get a NaN each. There is no point in
		// generating more of them than the queue can hold.
		gap := r.Time.Sub(a.slotExpiry)
		skipped := int64(gap / step)
		if gap%step != 0 {
			skipped++
		}
		if excess := skipped - int64(a.queue.Cap()); excess > 0 {
			a.slotExpiry = a.slotExpiry.Add(time.Duration(excess) * step)
		}
		for a.slotExpiry.Before(r.Time) {
			a.queue.push(DataPoint{Value: math.NaN(), Time: a.slotExpiry})
			a.slotExpiry = a.slotExpiry.Add(step)
		}
		advanced = true
	}

	// xff is a percentage: n/rpdp*100 >= xff
	if a.acc.len()*100 >= a.template.xff*a.template.readingsPerDataPoint {
		a.queue.push(a.template.function.consolidate(a.acc.readings, r))
	} else {
		a.queue.push(DataPoint{Value: math.NaN(), Time: r.Time})
	}
	a.acc.clear()

	if !advanced {
		a.slotExpiry = a.slotExpiry.Add(step)
	}
	a.expiryDirty = true
}

func (a *Archive) persist() error {
	if a.expiryDirty {
		if err := a.store.writeSlotExpiry(a.slotExpiry); err != nil {
			return err
		}
		a.expiryDirty = false
	}
	if err := a.queue.persist(a.store); err != nil {
		return err
	}
	return a.acc.persist(a.store)
}
