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

	"github.com/hashicorp/go-multierror"

	"github.com/tgres/rrdb/serde"
)

// MaxNameLength is the longest title or name, in characters.
const MaxNameLength = serde.MaxNameLength

// DatabaseSpec is a schema used to create a database. Every archive
// spec is applied to every data source.
type DatabaseSpec struct {
	Title       string
	Start       time.Time
	DataSources []DataSourceSpec
	Archives    []ArchiveSpec
}

// DataSourceSpec describes a data source.
type DataSourceSpec struct {
	Name       string
	Conversion Conversion
	Interval   time.Duration
	Min, Max   float64
}

// ArchiveSpec describes an archive template. XFF is a percentage.
type ArchiveSpec struct {
	Name                 string
	Function             Consolidation
	XFF                  int
	ReadingsPerDataPoint int
	MaxDataPoints        int
}

const maxCapacity = math.MaxInt32

// Validate returns every problem with the spec at once. The error
// matches ErrValidation.
func (s *DatabaseSpec) Validate() error {
	var result error
	add := func(err error) { result = multierror.Append(result, err) }

	if !serde.NameFits(s.Title) {
		add(fmt.Errorf("%w: %w: title %q is longer than %d characters", ErrValidation, ErrNameTooLong, s.Title, MaxNameLength))
	}
	if s.Start.IsZero() {
		add(fmt.Errorf("%w: start time is not set", ErrValidation))
	}
	if len(s.DataSources) == 0 {
		add(fmt.Errorf("%w: no data sources", ErrValidation))
	}
	if len(s.Archives) == 0 {
		add(fmt.Errorf("%w: no archives", ErrValidation))
	}

	seen := make(map[string]bool)
	for _, ds := range s.DataSources {
		if err := validateDataSource(ds); err != nil {
			add(err)
		}
		key := strings.ToLower(ds.Name)
		if ds.Name != "" && seen[key] {
			add(fmt.Errorf("%w: %w: data source %q", ErrValidation, ErrDuplicateName, ds.Name))
		}
		seen[key] = true
	}

	seen = make(map[string]bool)
	for _, a := range s.Archives {
		if err := validateArchive(a); err != nil {
			add(err)
		}
		key := strings.ToLower(a.Name)
		if a.Name != "" && seen[key] {
			add(fmt.Errorf("%w: %w: archive %q", ErrValidation, ErrDuplicateName, a.Name))
		}
		seen[key] = true
	}

	// the step of every archive has to fit in a time.Duration
	for _, ds := range s.DataSources {
		for _, a := range s.Archives {
			if ds.Interval > 0 && a.ReadingsPerDataPoint > 0 && ds.Interval > math.MaxInt64/time.Duration(a.ReadingsPerDataPoint) {
				add(fmt.Errorf("%w: %q: step of archive %q (%v * %d) is too long", ErrValidation, ds.Name, a.Name, ds.Interval, a.ReadingsPerDataPoint))
			}
		}
	}

	return result
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: blank name %q", ErrValidation, name)
	}
	if !serde.NameFits(name) {
		return fmt.Errorf("%w: %w: %q is longer than %d characters", ErrValidation, ErrNameTooLong, name, MaxNameLength)
	}
	return nil
}

func validateDataSource(ds DataSourceSpec) error {
	var result error
	if err := validateName(ds.Name); err != nil {
		result = multierror.Append(result, err)
	}
	if !ds.Conversion.valid() {
		result = multierror.Append(result, fmt.Errorf("%w: %q: invalid conversion %d", ErrValidation, ds.Name, int(ds.Conversion)))
	}
	if ds.Interval <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: %q: interval must be positive, got %v", ErrValidation, ds.Name, ds.Interval))
	}
	if !(ds.Min < ds.Max) {
		result = multierror.Append(result, fmt.Errorf("%w: %q: min (%v) must be less than max (%v)", ErrValidation, ds.Name, ds.Min, ds.Max))
	}
	return result
}

func validateArchive(a ArchiveSpec) error {
	var result error
	if err := validateName(a.Name); err != nil {
		result = multierror.Append(result, err)
	}
	if !a.Function.valid() {
		result = multierror.Append(result, fmt.Errorf("%w: %q: invalid consolidation %d", ErrValidation, a.Name, int(a.Function)))
	}
	if a.XFF < 1 || a.XFF > 99 {
		result = multierror.Append(result, fmt.Errorf("%w: %q: xff must be between 1 and 99, got %d", ErrValidation, a.Name, a.XFF))
	}
	if a.ReadingsPerDataPoint < 1 || a.ReadingsPerDataPoint > maxCapacity {
		result = multierror.Append(result, fmt.Errorf("%w: %q: readings per data point must be at least 1, got %d", ErrValidation, a.Name, a.ReadingsPerDataPoint))
	}
	if a.MaxDataPoints < 1 || a.MaxDataPoints > maxCapacity {
		result = multierror.Append(result, fmt.Errorf("%w: %q: max data points must be at least 1, got %d", ErrValidation, a.Name, a.MaxDataPoints))
	}
	return result
}
