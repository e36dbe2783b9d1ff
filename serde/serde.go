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

// Package serde knows how to lay out a round-robin database in a
// single binary file and how to read and update it in place.
//
// The file is a sequence of fixed-size records. Every record is
// allocated its offset before anything is written, and that offset
// never changes afterwards, which is what makes in-place updates
// possible:
//
//  +--------+-----------------+----------+-------------------------+
//  | header | fixup table     | template | data source             |
//  |        | (offset, name)* | records  | blocks (with archives)  |
//  +--------+-----------------+----------+-------------------------+
//
// Names of data sources and archive templates live only in the fixup
// table. A fixup entry pairs a (renamable) name with the offset of the
// record it stands for, so a rename rewrites one name field and
// nothing else moves.
//
// This package has no notion of what the numbers mean. It deals in
// Images (what is in the file) and Records (where it is in the file).
// The rrd package gives them meaning.
package serde

import (
	"errors"
	"unicode/utf8"
)

const (
	// Version of the file format written by this package.
	Version uint32 = 1

	// MaxNameLength is the maximum length of a title or a name, in
	// characters.
	MaxNameLength = 56
)

var magic = [8]byte{'R', 'R', 'D', 'B', 0, 1, '\r', '\n'}

var (
	ErrExists             = errors.New("database file already exists")
	ErrLocked             = errors.New("database file is locked")
	ErrBadMagic           = errors.New("not a database file (bad magic)")
	ErrUnsupportedVersion = errors.New("unsupported file format version")
	ErrCorrupt            = errors.New("database file is corrupt")
	ErrReadOnly           = errors.New("database file is open read-only")
	ErrClosed             = errors.New("database file is closed")
	ErrNameTooLong        = errors.New("name too long")
)

// Field sizes. A name is a uint16 byte length followed by enough bytes
// to hold MaxNameLength characters of UTF-8.
const (
	nameBytes     = MaxNameLength * utf8.UTFMax
	nameFieldSize = 2 + nameBytes
	slotSize      = 1 + 8 + 8
)

// Slot is the on-disk form of a reading or a data point. A Slot that
// is not Set is a pre-allocated placeholder. Time is in Unix
// nanoseconds, always UTC.
type Slot struct {
	Set   bool
	Time  int64
	Value float64
}

// Header is the database-wide part of an Image.
type Header struct {
	Title string
	Start int64
}

// Template is an archive template as it is stored.
type Template struct {
	Name                 string
	Seq                  uint32
	Function             uint8
	XFF                  uint8
	ReadingsPerDataPoint uint32
	MaxDataPoints        uint32
}

// DataSource is a data source as it is stored. It has exactly one
// Archive per Template, in template order.
type DataSource struct {
	Name        string
	Conversion  uint8
	Interval    int64
	LastReading Slot
	Min, Max    float64
	Total       uint64
	Discarded   uint64
	Archives    []Archive
}

// Archive is the state of one archive. Readings always has
// ReadingsPerDataPoint slots of which the first ReadingCount are
// set. DataPoints always has MaxDataPoints slots in physical order;
// QueueStart, QueueEnd and QueueSize describe the ring over them.
type Archive struct {
	Seq          uint32
	SlotExpiry   int64
	ReadingCount uint32
	Readings     []Slot
	QueueStart   uint32
	QueueEnd     uint32
	QueueSize    uint32
	DataPoints   []Slot
}

// Image is the entire content of a database file.
type Image struct {
	Header      Header
	Templates   []Template
	DataSources []DataSource
}

// NameFits tells whether name can be stored in a name field.
func NameFits(name string) bool {
	return utf8.RuneCountInString(name) <= MaxNameLength && len(name) <= nameBytes
}
