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

	"github.com/hashicorp/go-multierror"

	"github.com/tgres/rrdb/serde"
)

// Snapshot is the complete content of a database. Importing an
// exported Snapshot produces an identical database.
type Snapshot struct {
	Title       string
	Start       time.Time
	Templates   []TemplateSnapshot // in sequence order
	DataSources []DataSourceSnapshot
}

type TemplateSnapshot struct {
	Name                 string
	Function             Consolidation
	XFF                  int
	ReadingsPerDataPoint int
	MaxDataPoints        int
}

type DataSourceSnapshot struct {
	Name        string
	Conversion  Conversion
	Interval    time.Duration
	Min, Max    float64
	LastReading *Reading
	Stats       Stats
	Archives    []ArchiveSnapshot // one per template, in template order
}

type ArchiveSnapshot struct {
	SlotExpiry time.Time
	Readings   []Reading   // accumulated, not yet consolidated
	DataPoints []DataPoint // oldest first
}

// Export returns a snapshot of the database.
func (db *Database) Export() *Snapshot {
	snap := &Snapshot{Title: db.title, Start: db.start}
	for _, t := range db.templates {
		snap.Templates = append(snap.Templates, TemplateSnapshot{
			Name:                 t.name,
			Function:             t.function,
			XFF:                  t.xff,
			ReadingsPerDataPoint: t.readingsPerDataPoint,
			MaxDataPoints:        t.maxDataPoints,
		})
	}
	for _, ds := range db.dataSources {
		dss := DataSourceSnapshot{
			Name:       ds.name,
			Conversion: ds.conversion,
			Interval:   ds.interval,
			Min:        ds.rng.Min,
			Max:        ds.rng.Max,
			Stats:      ds.stats,
		}
		if r, ok := ds.LastReading(); ok {
			dss.LastReading = &r
		}
		for _, a := range ds.archives {
			dss.Archives = append(dss.Archives, ArchiveSnapshot{
				SlotExpiry: a.slotExpiry,
				Readings:   a.Accumulated(),
				DataPoints: a.queue.All(),
			})
		}
		snap.DataSources = append(snap.DataSources, dss)
	}
	return snap
}

// Spec returns the schema of the snapshot, without any data.
func (s *Snapshot) Spec() *DatabaseSpec {
	spec := &DatabaseSpec{Title: s.Title, Start: s.Start}
	for _, t := range s.Templates {
		spec.Archives = append(spec.Archives, ArchiveSpec(t))
	}
	for _, ds := range s.DataSources {
		spec.DataSources = append(spec.DataSources, DataSourceSpec{
			Name:       ds.Name,
			Conversion: ds.Conversion,
			Interval:   ds.Interval,
			Min:        ds.Min,
			Max:        ds.Max,
		})
	}
	return spec
}

// Validate checks that the snapshot describes a valid database and
// that its data fits. The error matches ErrMalformedSnapshot.
func (s *Snapshot) Validate() error {
	var result error
	if err := s.Spec().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, ds := range s.DataSources {
		if len(ds.Archives) != len(s.Templates) {
			result = multierror.Append(result, fmt.Errorf("data source %q has %d archives, expected %d", ds.Name, len(ds.Archives), len(s.Templates)))
			continue
		}
		for i, a := range ds.Archives {
			t := s.Templates[i]
			if len(a.Readings) > t.ReadingsPerDataPoint {
				result = multierror.Append(result, fmt.Errorf("data source %q archive %q: %d readings, at most %d allowed",
					ds.Name, t.Name, len(a.Readings), t.ReadingsPerDataPoint))
			}
			if len(a.DataPoints) > t.MaxDataPoints {
				result = multierror.Append(result, fmt.Errorf("data source %q archive %q: %d data points, at most %d allowed",
					ds.Name, t.Name, len(a.DataPoints), t.MaxDataPoints))
			}
		}
	}
	if result != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, result)
	}
	return nil
}

func (s *Snapshot) image() *serde.Image {
	img := imageFromSpec(s.Spec())
	for i, ds := range s.DataSources {
		ids := &img.DataSources[i]
		if ds.LastReading != nil {
			ids.LastReading = readingSlot(ds.LastReading)
		}
		ids.Total, ids.Discarded = ds.Stats.Total, ds.Stats.Discarded
		for j, a := range ds.Archives {
			ia := &ids.Archives[j]
			ia.SlotExpiry = toNanos(a.SlotExpiry)
			ia.ReadingCount = uint32(len(a.Readings))
			for k := range a.Readings {
				ia.Readings[k] = readingSlot(&a.Readings[k])
			}
			ia.QueueSize = uint32(len(a.DataPoints))
			for k, dp := range a.DataPoints {
				ia.DataPoints[k] = serde.Slot{Set: true, Time: toNanos(dp.Time), Value: dp.Value}
			}
			if n := len(a.DataPoints); n > 0 {
				ia.QueueEnd = uint32(n - 1)
			}
		}
	}
	return img
}
