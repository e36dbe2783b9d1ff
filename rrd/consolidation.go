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
)

// Consolidation is how the readings of one slot become a data point.
type Consolidation int

const (
	AVERAGE Consolidation = iota // Arithmetic mean
	MIN                          // Min
	MAX                          // Max
	LAST                         // Last
)

func (c Consolidation) String() string {
	switch c {
	case AVERAGE:
		return "AVERAGE"
	case MIN:
		return "MIN"
	case MAX:
		return "MAX"
	case LAST:
		return "LAST"
	}
	return fmt.Sprintf("Consolidation(%d)", int(c))
}

func (c Consolidation) valid() bool { return c >= AVERAGE && c <= LAST }

// ParseConsolidation accepts a consolidation function name in any
// case. WMEAN and AVG are synonyms of AVERAGE.
func ParseConsolidation(s string) (Consolidation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AVERAGE", "AVG", "WMEAN":
		return AVERAGE, nil
	case "MIN":
		return MIN, nil
	case "MAX":
		return MAX, nil
	case "LAST":
		return LAST, nil
	}
	return AVERAGE, fmt.Errorf("invalid consolidation function: %q", s)
}

func (c Consolidation) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("invalid consolidation function: %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Consolidation) UnmarshalText(text []byte) (err error) {
	*c, err = ParseConsolidation(string(text))
	return err
}

// consolidate reduces readings (never empty) to one data point. An
// average is timestamped at the reading which triggered
// consolidation, the selective functions keep the time of the reading
// they selected.
func (c Consolidation) consolidate(readings []Reading, trigger Reading) DataPoint {
	switch c {
	case MIN:
		return selectReading(readings, func(r, sel Reading) bool { return r.Value < sel.Value })
	case MAX:
		return selectReading(readings, func(r, sel Reading) bool { return r.Value > sel.Value })
	case LAST:
		return selectReading(readings, func(_, _ Reading) bool { return true })
	}
	if len(readings) == 0 {
		return DataPoint{Value: math.NaN(), Time: trigger.Time}
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return DataPoint{Value: sum / float64(len(readings)), Time: trigger.Time}
}

// selectReading starts with the first reading and replaces the
// selection every time better says so. The comparisons are strict, so
// of equal values the earliest one stays selected.
func selectReading(readings []Reading, better func(r, sel Reading) bool) DataPoint {
	if len(readings) == 0 {
		return DataPoint{Value: math.NaN()}
	}
	sel := readings[0]
	for _, r := range readings[1:] {
		if better(r, sel) {
			sel = r
		}
	}
	return DataPoint{Value: sel.Value, Time: sel.Time}
}
