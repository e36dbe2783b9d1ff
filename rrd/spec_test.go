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
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func Test_DatabaseSpec_Validate(t *testing.T) {
	if err := testSpec(GAUGE, AVERAGE, 50, 1, 10).Validate(); err != nil {
		t.Errorf("valid spec: %v", err)
	}

	long := strings.Repeat("x", MaxNameLength+1)
	for name, c := range map[string]struct {
		modify func(*DatabaseSpec)
		is     error
	}{
		"long title":        {func(s *DatabaseSpec) { s.Title = long }, ErrNameTooLong},
		"no start":          {func(s *DatabaseSpec) { s.Start = time.Time{} }, ErrValidation},
		"no data sources":   {func(s *DatabaseSpec) { s.DataSources = nil }, ErrValidation},
		"no archives":       {func(s *DatabaseSpec) { s.Archives = nil }, ErrValidation},
		"blank ds name":     {func(s *DatabaseSpec) { s.DataSources[0].Name = " " }, ErrValidation},
		"long ds name":      {func(s *DatabaseSpec) { s.DataSources[0].Name = long }, ErrNameTooLong},
		"zero interval":     {func(s *DatabaseSpec) { s.DataSources[0].Interval = 0 }, ErrValidation},
		"equal thresholds":  {func(s *DatabaseSpec) { s.DataSources[0].Min, s.DataSources[0].Max = 5, 5 }, ErrValidation},
		"inverted range":    {func(s *DatabaseSpec) { s.DataSources[0].Min, s.DataSources[0].Max = 5, 1 }, ErrValidation},
		"bad conversion":    {func(s *DatabaseSpec) { s.DataSources[0].Conversion = 7 }, ErrValidation},
		"xff 0":             {func(s *DatabaseSpec) { s.Archives[0].XFF = 0 }, ErrValidation},
		"xff 100":           {func(s *DatabaseSpec) { s.Archives[0].XFF = 100 }, ErrValidation},
		"zero per dp":       {func(s *DatabaseSpec) { s.Archives[0].ReadingsPerDataPoint = 0 }, ErrValidation},
		"zero max dps":      {func(s *DatabaseSpec) { s.Archives[0].MaxDataPoints = 0 }, ErrValidation},
		"bad consolidation": {func(s *DatabaseSpec) { s.Archives[0].Function = -1 }, ErrValidation},
		"step overflow": {func(s *DatabaseSpec) {
			s.DataSources[0].Interval = 1 << 50
			s.Archives[0].ReadingsPerDataPoint = 8192
		}, ErrValidation},
		"duplicate ds": {func(s *DatabaseSpec) {
			s.DataSources = append(s.DataSources, s.DataSources[0])
			s.DataSources[1].Name = "DS"
		}, ErrDuplicateName},
		"duplicate archive": {func(s *DatabaseSpec) {
			s.Archives = append(s.Archives, s.Archives[0])
			s.Archives[1].Name = "Rra"
		}, ErrDuplicateName},
	} {
		spec := testSpec(GAUGE, AVERAGE, 50, 1, 10)
		c.modify(spec)
		err := spec.Validate()
		if !errors.Is(err, c.is) || !errors.Is(err, ErrValidation) {
			t.Errorf("%s: %v", name, err)
		}
	}

	// the longest step that still fits
	spec := testSpec(GAUGE, AVERAGE, 50, 8192, 10)
	spec.DataSources[0].Interval = math.MaxInt64 / 8192
	if err := spec.Validate(); err != nil {
		t.Errorf("longest step: %v", err)
	}

	// every problem is reported
	spec = testSpec(GAUGE, AVERAGE, 0, 0, 10)
	spec.DataSources[0].Interval = -time.Second
	var merr *multierror.Error
	if err := spec.Validate(); !errors.As(err, &merr) || len(merr.Errors) != 3 {
		t.Errorf("expected 3 problems, got %v", err)
	}
}
