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

import (
	"encoding/binary"
	"fmt"
	"math"
)

var order = binary.BigEndian

// encoder appends fixed-width fields to a buffer. The first error
// sticks, subsequent puts are ignored.
type encoder struct {
	b   []byte
	err error
}

func newEncoder(size int) *encoder {
	return &encoder{b: make([]byte, 0, size)}
}

func (e *encoder) u8(v uint8) { e.b = append(e.b, v) }

func (e *encoder) u16(v uint16) {
	e.b = order.AppendUint16(e.b, v)
}

func (e *encoder) u32(v uint32) {
	e.b = order.AppendUint32(e.b, v)
}

func (e *encoder) u64(v uint64) {
	e.b = order.AppendUint64(e.b, v)
}

func (e *encoder) i64(v int64) { e.u64(uint64(v)) }

func (e *encoder) f64(v float64) { e.u64(math.Float64bits(v)) }

func (e *encoder) bytes(b []byte) { e.b = append(e.b, b...) }

// name writes a fixed-size name field: length, then the bytes padded
// with zeroes.
func (e *encoder) name(s string) {
	if !NameFits(s) {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %q", ErrNameTooLong, s)
		}
		s = ""
	}
	e.u16(uint16(len(s)))
	e.b = append(e.b, s...)
	e.b = append(e.b, make([]byte, nameBytes-len(s))...)
}

func (e *encoder) slot(s Slot) {
	if s.Set {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.i64(s.Time)
	e.f64(s.Value)
}

// decoder reads fixed-width fields from a buffer. Reading past the
// end sets err to ErrCorrupt and returns zero values from then on.
type decoder struct {
	b   []byte
	pos int
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{b: b}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.pos+n > len(d.b) {
		d.err = fmt.Errorf("%w: short record (need %d bytes at %d, have %d)", ErrCorrupt, n, d.pos, len(d.b))
		return nil
	}
	b := d.b[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return order.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return order.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return order.Uint64(b)
	}
	return 0
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) f64() float64 { return math.Float64frombits(d.u64()) }

func (d *decoder) name() string {
	n := int(d.u16())
	b := d.take(nameBytes)
	if b == nil {
		return ""
	}
	if n > nameBytes {
		d.err = fmt.Errorf("%w: name length %d exceeds field size", ErrCorrupt, n)
		return ""
	}
	return string(b[:n])
}

func (d *decoder) slot() Slot {
	flag := d.u8()
	s := Slot{Set: flag == 1, Time: d.i64(), Value: d.f64()}
	if flag > 1 && d.err == nil {
		d.err = fmt.Errorf("%w: invalid slot flag %d", ErrCorrupt, flag)
	}
	return s
}
