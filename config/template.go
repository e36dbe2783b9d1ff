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

// Package config reads database templates and tool settings.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tgres/rrdb/misc"
	"github.com/tgres/rrdb/rrd"
)

// Template is a database template as it appears in a TOML file.
type Template struct { // Needs to be exported for TOML to work
	Title string        `toml:"title"`
	Start timeSpec      `toml:"start"`
	DSs   []TemplateDS  `toml:"ds"`
	RRAs  []TemplateRRA `toml:"rra"`
}

type TemplateDS struct {
	Name       string         `toml:"name"`
	Conversion rrd.Conversion `toml:"conversion"`
	Interval   duration       `toml:"interval"`
	Min        number         `toml:"min"`
	Max        number         `toml:"max"`
}

type TemplateRRA struct {
	Spec RRASpec `toml:"spec"`
	Name string  `toml:"name"`
}

type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = misc.BetterParseDuration(string(text))
	return err
}

type timeSpec struct{ time.Time }

func (t *timeSpec) UnmarshalText(text []byte) (err error) {
	t.Time, err = misc.ParseTime(string(text))
	return err
}

// number is a float which remembers whether it was set at all. TOML
// integers are accepted too.
type number struct {
	set   bool
	value float64
}

func (n *number) UnmarshalText(text []byte) (err error) {
	n.value, err = strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	n.set = err == nil
	return err
}

func (n number) or(dflt float64) float64 {
	if n.set {
		return n.value
	}
	return dflt
}

// RRASpec is the archive shorthand FUNC:xff:readings:rows, e.g.
// "AVERAGE:50:1:288". FUNC may be omitted (AVERAGE), and so may xff
// (50), so "MAX:12:24" and "1:288" are valid too.
type RRASpec struct {
	Function             rrd.Consolidation
	XFF                  int
	ReadingsPerDataPoint int
	MaxDataPoints        int
}

const defaultXFF = 50

func (r *RRASpec) UnmarshalText(text []byte) error {
	r.XFF = defaultXFF
	parts := strings.Split(strings.TrimSpace(string(text)), ":")

	// If first character of first part is a digit, assume we're
	// skipping CF and default to AVERAGE.
	if len(parts[0]) > 0 && strings.Contains("0123456789", string(parts[0][0])) {
		parts = append([]string{"AVERAGE"}, parts...)
	}
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("invalid RRA specification (not enough or too many elements): %q", string(text))
	}

	var err error
	if r.Function, err = rrd.ParseConsolidation(parts[0]); err != nil {
		return fmt.Errorf("invalid consolidation: %q (valid funcs: average, min, max, last)", parts[0])
	}
	if len(parts) == 4 {
		if r.XFF, err = strconv.Atoi(parts[1]); err != nil {
			return fmt.Errorf("invalid XFF: %q (%v)", parts[1], err)
		}
		parts = append(parts[:1], parts[2:]...)
	}
	if r.ReadingsPerDataPoint, err = strconv.Atoi(parts[1]); err != nil {
		return fmt.Errorf("invalid readings per data point: %q (%v)", parts[1], err)
	}
	if r.MaxDataPoints, err = strconv.Atoi(parts[2]); err != nil {
		return fmt.Errorf("invalid number of data points: %q (%v)", parts[2], err)
	}
	return nil
}

func (r RRASpec) String() string {
	return fmt.Sprintf("%v:%d:%d:%d", r.Function, r.XFF, r.ReadingsPerDataPoint, r.MaxDataPoints)
}

var timeNow = func() time.Time {
	return time.Now()
}

// Spec converts the template into a database spec. A missing start
// time means now, a missing min or max means no bound, and an RRA
// without a name is named after its shorthand. The result is not
// validated here, rrd.Create does that.
func (t *Template) Spec() *rrd.DatabaseSpec {
	spec := &rrd.DatabaseSpec{Title: t.Title, Start: t.Start.Time}
	if spec.Start.IsZero() {
		spec.Start = timeNow()
	}
	for _, ds := range t.DSs {
		spec.DataSources = append(spec.DataSources, rrd.DataSourceSpec{
			Name:       ds.Name,
			Conversion: ds.Conversion,
			Interval:   ds.Interval.Duration,
			Min:        ds.Min.or(math.Inf(-1)),
			Max:        ds.Max.or(math.Inf(1)),
		})
	}
	for _, rra := range t.RRAs {
		name := rra.Name
		if name == "" {
			name = fmt.Sprintf("%s_%d_%d", strings.ToLower(rra.Spec.Function.String()),
				rra.Spec.ReadingsPerDataPoint, rra.Spec.MaxDataPoints)
		}
		spec.Archives = append(spec.Archives, rrd.ArchiveSpec{
			Name:                 name,
			Function:             rra.Spec.Function,
			XFF:                  rra.Spec.XFF,
			ReadingsPerDataPoint: rra.Spec.ReadingsPerDataPoint,
			MaxDataPoints:        rra.Spec.MaxDataPoints,
		})
	}
	return spec
}

// ParseTemplate decodes a TOML template. Unknown keys are an error,
// they are most likely typos.
func ParseTemplate(data string) (*rrd.DatabaseSpec, error) {
	var t Template
	md, err := toml.Decode(data, &t)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown template keys: %s", strings.Join(keys, ", "))
	}
	return t.Spec(), nil
}

var readFile = func(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadTemplate reads and decodes the TOML template at path.
func ReadTemplate(path string) (*rrd.DatabaseSpec, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	spec, err := ParseTemplate(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}
