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

// Package rrd contains the logic of a round-robin database: how
// incoming readings are converted, accumulated and consolidated into
// fixed-size archives of data points.
//
// Throughout documentation and code the following terms are used:
//
// Database: a title, a start time, a set of archive templates and a
// set of data sources. A database lives in a single file (see package
// serde) or, for tests and tools, only in memory.
//
// Data Source (DS): a named stream of readings arriving every polling
// Interval. A DS has a conversion function, a value Range, and one
// Archive per archive template of the database.
//
// Reading: a raw or converted value with a timestamp. Readings of a
// DS must arrive in strictly increasing time order.
//
// Conversion: GAUGE, ABSOLUTE, DERIVE or COUNTER. How a raw reading
// becomes the value that is accumulated.
//
// Archive Template: a name, a consolidation function, an x-factor,
// the number of readings per data point and the maximum number of
// data points. Every template is applied to every DS.
//
// Slot: the time covered by one data point, i.e. the polling
// interval times readings per data point.
//
// Archive: accumulated readings of the current slot plus a circular
// queue of data points. When a reading reaches the slot expiry time,
// the accumulated readings are consolidated into a data point:
//
//	  interval   interval   interval
//	|----r1----|----r2----|----r3----|   readings per data point = 3
//	|<------------- slot ----------->|
//	                                 ^ slot expiry: r3 triggers
//	                                   consolidation into one DP
//
// Slots for which no readings arrived are filled with NaN data points.
//
// X-Files Factor (XFF): the percentage of expected readings that
// must be present in a slot for the data point to be a number rather
// than NaN.
//
// Consolidation: AVERAGE, MIN, MAX or LAST. How the readings of a
// slot are reduced to one data point.
package rrd

import (
	"math"
	"time"
)

// Reading is a value at a point in time.
type Reading struct {
	Value float64
	Time  time.Time
}

// DataPoint is a consolidated value. A NaN value means there was not
// enough data.
type DataPoint struct {
	Value float64
	Time  time.Time
}

// Range is the inclusive interval of values a data source accepts.
type Range struct {
	Min, Max float64
}

// Unbounded accepts every value.
var Unbounded = Range{Min: math.Inf(-1), Max: math.Inf(1)}

// Contains tells whether v is within the range. NaN is never out of
// range.
func (r Range) Contains(v float64) bool {
	return !(v < r.Min || v > r.Max)
}

// Stats count readings accepted and discarded.
type Stats struct {
	Total     uint64
	Discarded uint64
}

func (s Stats) add(o Stats) Stats {
	return Stats{Total: s.Total + o.Total, Discarded: s.Discarded + o.Discarded}
}

// Payload is a batch of readings for one data source.
type Payload struct {
	DataSource string
	Readings   []Reading
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n) }
