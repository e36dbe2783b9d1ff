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

// Package snapshot reads and writes database snapshots as XML
// documents, optionally snappy-compressed. A snapshot written by
// Write and read back by Read imports into a database identical to
// the exported one, NaN data points included.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/golang/snappy"

	"github.com/tgres/rrdb/rrd"
)

// Version of the document format.
const Version = 1

// snappyMagic is the stream identifier chunk that starts every snappy
// framed stream.
var snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")

type document struct {
	XMLName     xml.Name        `xml:"rrdb"`
	Version     int             `xml:"version,attr"`
	Title       string          `xml:"title"`
	Start       string          `xml:"start"`
	Templates   []xmlTemplate   `xml:"rra"`
	DataSources []xmlDataSource `xml:"ds"`
}

type xmlTemplate struct {
	Name     string            `xml:"name,attr"`
	Function rrd.Consolidation `xml:"cf,attr"`
	XFF      int               `xml:"xff,attr"`
	Steps    int               `xml:"steps,attr"`
	Rows     int               `xml:"rows,attr"`
}

type xmlDataSource struct {
	Name       string         `xml:"name,attr"`
	Conversion rrd.Conversion `xml:"type,attr"`
	Interval   string         `xml:"interval,attr"`
	Min        string         `xml:"min,attr"`
	Max        string         `xml:"max,attr"`
	Total      uint64         `xml:"total,attr"`
	Discarded  uint64         `xml:"discarded,attr"`
	Last       *xmlSlot       `xml:"last"`
	Archives   []xmlArchive   `xml:"archive"`
}

type xmlArchive struct {
	RRA        string    `xml:"rra,attr"`
	Expiry     string    `xml:"expiry,attr"`
	Readings   []xmlSlot `xml:"reading"`
	DataPoints []xmlSlot `xml:"dp"`
}

type xmlSlot struct {
	Time  string `xml:"t,attr"`
	Value string `xml:"v,attr"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// Floats are kept as text so that NaN and infinities survive.
func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func toDocument(snap *rrd.Snapshot) *document {
	doc := &document{
		Version: Version,
		Title:   snap.Title,
		Start:   formatTime(snap.Start),
	}
	for _, t := range snap.Templates {
		doc.Templates = append(doc.Templates, xmlTemplate{
			Name:     t.Name,
			Function: t.Function,
			XFF:      t.XFF,
			Steps:    t.ReadingsPerDataPoint,
			Rows:     t.MaxDataPoints,
		})
	}
	for _, ds := range snap.DataSources {
		xds := xmlDataSource{
			Name:       ds.Name,
			Conversion: ds.Conversion,
			Interval:   ds.Interval.String(),
			Min:        formatFloat(ds.Min),
			Max:        formatFloat(ds.Max),
			Total:      ds.Stats.Total,
			Discarded:  ds.Stats.Discarded,
		}
		if ds.LastReading != nil {
			xds.Last = &xmlSlot{Time: formatTime(ds.LastReading.Time), Value: formatFloat(ds.LastReading.Value)}
		}
		for i, a := range ds.Archives {
			xa := xmlArchive{Expiry: formatTime(a.SlotExpiry)}
			if i < len(snap.Templates) {
				xa.RRA = snap.Templates[i].Name
			}
			for _, r := range a.Readings {
				xa.Readings = append(xa.Readings, xmlSlot{Time: formatTime(r.Time), Value: formatFloat(r.Value)})
			}
			for _, dp := range a.DataPoints {
				xa.DataPoints = append(xa.DataPoints, xmlSlot{Time: formatTime(dp.Time), Value: formatFloat(dp.Value)})
			}
			xds.Archives = append(xds.Archives, xa)
		}
		doc.DataSources = append(doc.DataSources, xds)
	}
	return doc
}

// decoder remembers the first error so that fromDocument reads
// straight through.
type decoder struct {
	err error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) time(what, s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		d.fail("%s: invalid time %q", what, s)
	}
	return t
}

func (d *decoder) float(what, s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.fail("%s: invalid number %q", what, s)
	}
	return f
}

func (d *decoder) reading(what string, s xmlSlot) rrd.Reading {
	return rrd.Reading{Time: d.time(what, s.Time), Value: d.float(what, s.Value)}
}

func fromDocument(doc *document) (*rrd.Snapshot, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	var d decoder
	snap := &rrd.Snapshot{
		Title: doc.Title,
		Start: d.time("start", doc.Start),
	}
	for _, t := range doc.Templates {
		snap.Templates = append(snap.Templates, rrd.TemplateSnapshot{
			Name:                 t.Name,
			Function:             t.Function,
			XFF:                  t.XFF,
			ReadingsPerDataPoint: t.Steps,
			MaxDataPoints:        t.Rows,
		})
	}
	for _, xds := range doc.DataSources {
		ds := rrd.DataSourceSnapshot{
			Name:       xds.Name,
			Conversion: xds.Conversion,
			Min:        d.float(xds.Name+" min", xds.Min),
			Max:        d.float(xds.Name+" max", xds.Max),
			Stats:      rrd.Stats{Total: xds.Total, Discarded: xds.Discarded},
		}
		interval, err := time.ParseDuration(xds.Interval)
		if err != nil {
			d.fail("%s: invalid interval %q", xds.Name, xds.Interval)
		}
		ds.Interval = interval
		if xds.Last != nil {
			r := d.reading(xds.Name+" last reading", *xds.Last)
			ds.LastReading = &r
		}
		for i, xa := range xds.Archives {
			if i < len(doc.Templates) && xa.RRA != "" && xa.RRA != doc.Templates[i].Name {
				d.fail("%s: archive %d is for %q, expected %q", xds.Name, i, xa.RRA, doc.Templates[i].Name)
			}
			a := rrd.ArchiveSnapshot{SlotExpiry: d.time(xds.Name+" expiry", xa.Expiry)}
			for _, s := range xa.Readings {
				a.Readings = append(a.Readings, d.reading(xds.Name+" reading", s))
			}
			for _, s := range xa.DataPoints {
				r := d.reading(xds.Name+" data point", s)
				a.DataPoints = append(a.DataPoints, rrd.DataPoint(r))
			}
			ds.Archives = append(ds.Archives, a)
		}
		snap.DataSources = append(snap.DataSources, ds)
	}
	if d.err != nil {
		return nil, d.err
	}
	return snap, nil
}

// Write writes snap to w as an XML document. When compress is true
// the document is snappy framed.
func Write(w io.Writer, snap *rrd.Snapshot, compress bool) error {
	if compress {
		sw := snappy.NewBufferedWriter(w)
		if err := encode(sw, snap); err != nil {
			sw.Close()
			return err
		}
		return sw.Close()
	}
	return encode(w, snap)
}

func encode(w io.Writer, snap *rrd.Snapshot) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(toDocument(snap)); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Read reads a snapshot written by Write, compressed or not, and
// validates it. Every problem with the content matches
// rrd.ErrMalformedSnapshot.
func Read(r io.Reader) (*rrd.Snapshot, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, _ := br.Peek(len(snappyMagic)); bytes.Equal(magic, snappyMagic) {
		src = snappy.NewReader(br)
	}
	var doc document
	if err := xml.NewDecoder(src).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", rrd.ErrMalformedSnapshot, err)
	}
	snap, err := fromDocument(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rrd.ErrMalformedSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// WriteFile writes snap to a new file at path.
func WriteFile(path string, snap *rrd.Snapshot, compress bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := Write(w, snap, compress); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// ReadFile reads a snapshot from the file at path.
func ReadFile(path string) (*rrd.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
