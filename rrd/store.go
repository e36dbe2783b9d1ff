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

import "time"

// Every object of the database owns a storage handle it reports its
// changes to. Changes are staged, and become durable when the
// database commits them, once per push, rename or title change.

type databaseStore interface {
	setTitle(title string) error
	commit() error
	discard()
	close() error
}

type templateStore interface {
	setName(name string) error
}

type dataSourceStore interface {
	setName(name string) error
	writeLastReading(r Reading) error
	writeStats(s Stats) error
}

// A nil *Reading or *DataPoint clears the slot.
type archiveStore interface {
	writeSlotExpiry(t time.Time) error
	writeReadingCount(n int) error
	writeReading(i int, r *Reading) error
	writeQueueCursor(start, end, size int) error
	writeDataPoint(i int, dp *DataPoint) error
}

// nopStore is the store of an in-memory database.
type nopStore struct{}

func (nopStore) setTitle(string) error                { return nil }
func (nopStore) commit() error                        { return nil }
func (nopStore) discard()                             {}
func (nopStore) close() error                         { return nil }
func (nopStore) setName(string) error                 { return nil }
func (nopStore) writeLastReading(Reading) error       { return nil }
func (nopStore) writeStats(Stats) error               { return nil }
func (nopStore) writeSlotExpiry(time.Time) error      { return nil }
func (nopStore) writeReadingCount(int) error          { return nil }
func (nopStore) writeReading(int, *Reading) error     { return nil }
func (nopStore) writeQueueCursor(int, int, int) error { return nil }
func (nopStore) writeDataPoint(int, *DataPoint) error { return nil }
