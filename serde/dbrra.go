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

import "fmt"

const templateSize = 4 + 1 + 1 + 4 + 4

// TemplateRecord is the stored form of an archive template. Its name
// is in the fixup table.
type TemplateRecord struct {
	rec   *Record
	fixup *FixupEntry
}

// SetName stages a rename of the template.
func (t *TemplateRecord) SetName(name string) error { return t.fixup.SetName(name) }

// Offset of the template record.
func (t *TemplateRecord) Offset() int64 { return t.rec.off }

func encodeTemplate(t Template) *encoder {
	e := newEncoder(templateSize)
	e.u32(t.Seq)
	e.u8(t.Function)
	e.u8(t.XFF)
	e.u32(t.ReadingsPerDataPoint)
	e.u32(t.MaxDataPoints)
	return e
}

func decodeTemplate(d *decoder) (Template, error) {
	t := Template{
		Seq:                  d.u32(),
		Function:             d.u8(),
		XFF:                  d.u8(),
		ReadingsPerDataPoint: d.u32(),
		MaxDataPoints:        d.u32(),
	}
	if d.err == nil && (t.ReadingsPerDataPoint == 0 || t.MaxDataPoints == 0) {
		return t, fmt.Errorf("%w: template %d has zero capacity", ErrCorrupt, t.Seq)
	}
	return t, d.err
}

// Archive record layout:
//
//   seq u32 | slotExpiry i64 |
//   readings: cap u32 | count u32 | cap * slot |
//   queue:    cap u32 | size u32 | start u32 | end u32 | cap * slot
const (
	archiveSeqPos        = 0
	archiveExpiryPos     = 4
	archiveReadingCapPos = 12
	archiveReadingCntPos = 16
	archiveReadingsPos   = 20
	queueHeaderSize      = 16
)

func archiveSize(readingCap, queueCap int64) int64 {
	return archiveReadingsPos + readingCap*slotSize + queueHeaderSize + queueCap*slotSize
}

// ArchiveRecord is the stored form of an archive: the slot expiry
// clock, the accumulated readings and the data point queue. All slots
// are pre-allocated, so every reading and data point has a fixed
// position.
type ArchiveRecord struct {
	rec        *Record
	readingCap int
	queueCap   int
}

func (a *ArchiveRecord) queuePos() int64 {
	return archiveReadingsPos + int64(a.readingCap)*slotSize
}

// Offset of the archive record.
func (a *ArchiveRecord) Offset() int64 { return a.rec.off }

// WriteSlotExpiry stages the slot expiry time (Unix nanoseconds).
func (a *ArchiveRecord) WriteSlotExpiry(t int64) error {
	e := newEncoder(8)
	e.i64(t)
	return a.rec.update(archiveExpiryPos, e)
}

// WriteReadingCount stages the number of accumulated readings.
func (a *ArchiveRecord) WriteReadingCount(n int) error {
	if n < 0 || n > a.readingCap {
		return fmt.Errorf("reading count %d out of range [0, %d]", n, a.readingCap)
	}
	e := newEncoder(4)
	e.u32(uint32(n))
	return a.rec.update(archiveReadingCntPos, e)
}

// WriteReading stages the i-th (0-based) accumulated reading slot.
func (a *ArchiveRecord) WriteReading(i int, s Slot) error {
	if i < 0 || i >= a.readingCap {
		return fmt.Errorf("reading slot %d out of range [0, %d)", i, a.readingCap)
	}
	e := newEncoder(slotSize)
	e.slot(s)
	return a.rec.update(archiveReadingsPos+int64(i)*slotSize, e)
}

// WriteQueueCursor stages the ring indices of the data point queue.
func (a *ArchiveRecord) WriteQueueCursor(start, end, size int) error {
	if size < 0 || size > a.queueCap || start < 0 || start >= a.queueCap || end < 0 || end >= a.queueCap {
		return fmt.Errorf("queue cursor (%d, %d, %d) out of range for capacity %d", start, end, size, a.queueCap)
	}
	e := newEncoder(12)
	e.u32(uint32(size))
	e.u32(uint32(start))
	e.u32(uint32(end))
	return a.rec.update(a.queuePos()+4, e)
}

// WriteDataPoint stages the i-th (0-based, physical) data point slot.
func (a *ArchiveRecord) WriteDataPoint(i int, s Slot) error {
	if i < 0 || i >= a.queueCap {
		return fmt.Errorf("data point slot %d out of range [0, %d)", i, a.queueCap)
	}
	e := newEncoder(slotSize)
	e.slot(s)
	return a.rec.update(a.queuePos()+queueHeaderSize+int64(i)*slotSize, e)
}

func encodeArchive(a *Archive, readingCap, queueCap int) *encoder {
	e := newEncoder(int(archiveSize(int64(readingCap), int64(queueCap))))
	e.u32(a.Seq)
	e.i64(a.SlotExpiry)
	e.u32(uint32(readingCap))
	e.u32(a.ReadingCount)
	for i := 0; i < readingCap; i++ {
		if i < len(a.Readings) {
			e.slot(a.Readings[i])
		} else {
			e.slot(Slot{})
		}
	}
	e.u32(uint32(queueCap))
	e.u32(a.QueueSize)
	e.u32(a.QueueStart)
	e.u32(a.QueueEnd)
	for i := 0; i < queueCap; i++ {
		if i < len(a.DataPoints) {
			e.slot(a.DataPoints[i])
		} else {
			e.slot(Slot{})
		}
	}
	return e
}

func decodeArchive(d *decoder, readingCap, queueCap int) (Archive, error) {
	var a Archive
	a.Seq = d.u32()
	a.SlotExpiry = d.i64()
	if rc := d.u32(); d.err == nil && int(rc) != readingCap {
		return a, fmt.Errorf("%w: archive %d reading capacity %d, template says %d", ErrCorrupt, a.Seq, rc, readingCap)
	}
	a.ReadingCount = d.u32()
	a.Readings = make([]Slot, readingCap)
	for i := range a.Readings {
		a.Readings[i] = d.slot()
	}
	if qc := d.u32(); d.err == nil && int(qc) != queueCap {
		return a, fmt.Errorf("%w: archive %d queue capacity %d, template says %d", ErrCorrupt, a.Seq, qc, queueCap)
	}
	a.QueueSize = d.u32()
	a.QueueStart = d.u32()
	a.QueueEnd = d.u32()
	a.DataPoints = make([]Slot, queueCap)
	for i := range a.DataPoints {
		a.DataPoints[i] = d.slot()
	}
	if d.err != nil {
		return a, d.err
	}
	if int(a.ReadingCount) > readingCap {
		return a, fmt.Errorf("%w: archive %d has %d readings, capacity %d", ErrCorrupt, a.Seq, a.ReadingCount, readingCap)
	}
	if int(a.QueueSize) > queueCap || int(a.QueueStart) >= queueCap || int(a.QueueEnd) >= queueCap {
		return a, fmt.Errorf("%w: archive %d queue cursor (%d, %d, %d) out of range for capacity %d",
			ErrCorrupt, a.Seq, a.QueueStart, a.QueueEnd, a.QueueSize, queueCap)
	}
	return a, nil
}
