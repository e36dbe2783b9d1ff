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

package serde

const (
	headerSize     = 8 + 4 + nameFieldSize + 8 + 4 + 4
	headerTitlePos = 8 + 4

	fixupSize    = 8 + nameFieldSize
	fixupNamePos = 8
)

// HeaderRecord is the first record of the file.
type HeaderRecord struct {
	rec *Record
}

// SetTitle stages a new title.
func (h *HeaderRecord) SetTitle(title string) error {
	e := newEncoder(nameFieldSize)
	e.name(title)
	return h.rec.update(headerTitlePos, e)
}

func encodeHeader(h Header, templates, dataSources int) *encoder {
	e := newEncoder(headerSize)
	e.bytes(magic[:])
	e.u32(Version)
	e.name(h.Title)
	e.i64(h.Start)
	e.u32(uint32(templates))
	e.u32(uint32(dataSources))
	return e
}

func decodeHeader(d *decoder) (h Header, templates, dataSources int, err error) {
	var m [8]byte
	copy(m[:], d.take(len(magic)))
	if d.err == nil && m != magic {
		return h, 0, 0, ErrBadMagic
	}
	if v := d.u32(); d.err == nil && v != Version {
		return h, 0, 0, ErrUnsupportedVersion
	}
	h.Title = d.name()
	h.Start = d.i64()
	templates = int(d.u32())
	dataSources = int(d.u32())
	return h, templates, dataSources, d.err
}

// FixupEntry is one entry of the fixup table: the name under which a
// record is known, and the offset of that record. The offset is
// written once, the name can be rewritten any number of times.
type FixupEntry struct {
	rec    *Record
	target int64
}

// Target is the offset of the record this entry stands for.
func (fe *FixupEntry) Target() int64 { return fe.target }

// SetName stages a rename. Only the name field is rewritten.
func (fe *FixupEntry) SetName(name string) error {
	e := newEncoder(nameFieldSize)
	e.name(name)
	return fe.rec.update(fixupNamePos, e)
}

func encodeFixup(target int64, name string) *encoder {
	e := newEncoder(fixupSize)
	e.i64(target)
	e.name(name)
	return e
}

func decodeFixup(d *decoder) (target int64, name string, err error) {
	target = d.i64()
	name = d.name()
	return target, name, d.err
}
