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
	"math"
	"strings"
	"time"
)

// Conversion is how a raw reading is turned into the value that gets
// accumulated.
type Conversion int

const (
	GAUGE    Conversion = iota // The value as is
	ABSOLUTE                   // Value divided by seconds elapsed
	DERIVE                     // Change since last reading per second
	COUNTER                    // Like DERIVE, for counters that wrap
)

func (c Conversion) String() string {
	switch c {
	case GAUGE:
		return "GAUGE"
	case ABSOLUTE:
		return "ABSOLUTE"
	case DERIVE:
		return "DERIVE"
	case COUNTER:
		return "COUNTER"
	}
	return fmt.Sprintf("Conversion(%d)", int(c))
}

func (c Conversion) valid() bool { return c >= GAUGE && c <= COUNTER }

// ParseConversion accepts a conversion name in any case.
func ParseConversion(s string) (Conversion, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GAUGE":
		return GAUGE, nil
	case "ABSOLUTE":
		return ABSOLUTE, nil
	case "DERIVE":
		return DERIVE, nil
	case "COUNTER":
		return COUNTER, nil
	}
	return GAUGE, fmt.Errorf("invalid conversion function: %q", s)
}

// MarshalText and UnmarshalText let a Conversion appear by name in
// TOML and XML.
func (c Conversion) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("invalid conversion function: %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Conversion) UnmarshalText(text []byte) (err error) {
	*c, err = ParseConversion(string(text))
	return err
}

const (
	wrap32 = float64(math.MaxInt32)
	wrap64 = float64(math.MaxInt64 - math.MaxInt32)
)

// convert returns the processed value of raw. last is the previous
// raw reading, if any, and lastUpdate is its time (or the database
// start time if there is none). raw.Time is after lastUpdate.
//
// Unlike COUNTER, ABSOLUTE does not correct for wrap-around.
func (c Conversion) convert(raw Reading, last *Reading, lastUpdate time.Time) float64 {
	elapsed := raw.Time.Sub(lastUpdate).Seconds()
	switch c {
	case ABSOLUTE:
		return raw.Value / elapsed
	case DERIVE:
		if last == nil {
			return math.NaN()
		}
		return (raw.Value - last.Value) / elapsed
	case COUNTER:
		if last == nil {
			return math.NaN()
		}
		diff := raw.Value - last.Value
		if diff < 0 {
			diff += wrap32
		}
		if diff < 0 {
			diff += wrap64
		}
		if diff < 0 {
			// neither a 32 nor a 64 bit wrap, assume a reset
			return math.NaN()
		}
		return diff / elapsed
	}
	return raw.Value
}
