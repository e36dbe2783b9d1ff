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
	"strings"
	"time"

	"github.com/tgres/rrdb/serde"
)

// A database is always built from a serde.Image, whether it is new
// (imageFromSpec), imported (Snapshot.image) or read from a file.

func imageFromSpec(spec *DatabaseSpec) *serde.Image {
	img := &serde.Image{
		Header: serde.Header{Title: spec.Title, Start: toNanos(spec.Start)},
	}
	for i, a := range spec.Archives {
		img.Templates = append(img.Templates, serde.Template{
			Name:                 a.Name,
			Seq:                  uint32(i),
			Function:             uint8(a.Function),
			XFF:                  uint8(a.XFF),
			ReadingsPerDataPoint: uint32(a.ReadingsPerDataPoint),
			MaxDataPoints:        uint32(a.MaxDataPoints),
		})
	}
	for _, ds := range spec.DataSources {
		ids := serde.DataSource{
			Name:       ds.Name,
			Conversion: uint8(ds.Conversion),
			Interval:   int64(ds.Interval),
			Min:        ds.Min,
			Max:        ds.Max,
		}
		for i, a := range spec.Archives {
			step := ds.Interval * time.Duration(a.ReadingsPerDataPoint)
			ids.Archives = append(ids.Archives, serde.Archive{
				Seq:        uint32(i),
				SlotExpiry: toNanos(spec.Start.Add(step)),
				Readings:   make([]serde.Slot, a.ReadingsPerDataPoint),
				DataPoints: make([]serde.Slot, a.MaxDataPoints),
			})
		}
		img.DataSources = append(img.DataSources, ids)
	}
	return img
}

// fromImage builds the object graph. f is nil for an in-memory
// database, otherwise its records are parallel to img.
func fromImage(img *serde.Image, f *serde.DB, path string, mode Mode, o options) *Database {
	db := &Database{
		path:   path,
		mode:   mode,
		opts:   o,
		store:  nopStore{},
		title:  img.Header.Title,
		start:  fromNanos(img.Header.Start),
		byName: make(map[string]*DataSource, len(img.DataSources)),
	}
	if f != nil {
		db.store = fileDatabase{f}
	}

	for i, it := range img.Templates {
		t := &ArchiveTemplate{
			db:                   db,
			store:                nopStore{},
			name:                 it.Name,
			seq:                  int(it.Seq),
			function:             Consolidation(it.Function),
			xff:                  int(it.XFF),
			readingsPerDataPoint: int(it.ReadingsPerDataPoint),
			maxDataPoints:        int(it.MaxDataPoints),
		}
		if f != nil {
			t.store = fileTemplate{f.Templates[i]}
		}
		db.templates = append(db.templates, t)
	}

	for i, ids := range img.DataSources {
		ds := &DataSource{
			db:         db,
			store:      nopStore{},
			name:       ids.Name,
			conversion: Conversion(ids.Conversion),
			interval:   time.Duration(ids.Interval),
			rng:        Range{Min: ids.Min, Max: ids.Max},
			stats:      Stats{Total: ids.Total, Discarded: ids.Discarded},
		}
		if ids.LastReading.Set {
			r := slotReading(ids.LastReading)
			ds.last = &r
		}
		if f != nil {
			ds.store = fileDataSource{f.DataSources[i]}
		}

		for j, ia := range ids.Archives {
			var st archiveStore = nopStore{}
			if f != nil {
				st = fileArchive{f.DataSources[i].Archives[j]}
			}
			a := newArchive(db.templates[j], ds, st)
			a.slotExpiry = fromNanos(ia.SlotExpiry)
			for k := 0; k < int(ia.ReadingCount); k++ {
				a.acc.readings = append(a.acc.readings, slotReading(ia.Readings[k]))
			}
			a.acc.clean, a.acc.onDisk = len(a.acc.readings), len(a.acc.readings)
			for k, s := range ia.DataPoints {
				a.queue.slots[k] = slotDataPoint(s)
			}
			a.queue.start, a.queue.size = int(ia.QueueStart), int(ia.QueueSize)
			ds.archives = append(ds.archives, a)
		}

		db.dataSources = append(db.dataSources, ds)
		db.byName[strings.ToLower(ds.name)] = ds
	}
	return db
}
