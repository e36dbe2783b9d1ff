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
	"fmt"
	"io"
	"os"
	"sort"
)

// File is an open database file. Writes are not performed right
// away, they are staged and then written all at once by Commit.
type File struct {
	f        *os.File
	path     string
	readOnly bool
	sync     bool
	end      int64 // allocation cursor
	pending  []write
}

type write struct {
	off int64
	b   []byte
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// ReadOnly tells whether updates are refused.
func (f *File) ReadOnly() bool { return f.readOnly }

// Pending returns the number of staged writes.
func (f *File) Pending() int { return len(f.pending) }

// alloc reserves size bytes at the end of the file and returns the
// Record which owns them from now on.
func (f *File) alloc(size int64) *Record {
	r := &Record{f: f, off: f.end, size: size}
	f.end += size
	return r
}

// record returns a Record for an already existing region.
func (f *File) record(off, size int64) *Record {
	return &Record{f: f, off: off, size: size}
}

func (f *File) stage(off int64, b []byte) {
	f.pending = append(f.pending, write{off: off, b: b})
}

// Commit writes all staged writes to the file. Writes are sorted by
// offset and adjacent ones are merged, so that a typical push ends up
// being a handful of WriteAt calls. When two staged writes overlap,
// the one staged later wins.
func (f *File) Commit() error {
	if len(f.pending) == 0 {
		return nil
	}
	if f.f == nil {
		f.pending = nil
		return ErrClosed
	}
	if f.readOnly {
		f.pending = nil
		return ErrReadOnly
	}

	ws := coalesce(f.pending)
	f.pending = nil

	for _, w := range ws {
		if _, err := f.f.WriteAt(w.b, w.off); err != nil {
			return fmt.Errorf("writing %d bytes at %d: %w", len(w.b), w.off, err)
		}
	}
	if f.sync {
		return f.f.Sync()
	}
	return nil
}

// Discard drops all staged writes.
func (f *File) Discard() { f.pending = nil }

// Close closes the underlying file. Staged writes are lost.
func (f *File) Close() error {
	f.pending = nil
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

func coalesce(pending []write) []write {
	ws := make([]write, len(pending))
	copy(ws, pending)
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].off < ws[j].off })

	result := make([]write, 0, len(ws))
	for _, w := range ws {
		if n := len(result); n > 0 {
			last := &result[n-1]
			lastEnd := last.off + int64(len(last.b))
			if w.off <= lastEnd {
				if end := w.off + int64(len(w.b)); end > lastEnd {
					grown := make([]byte, end-last.off)
					copy(grown, last.b)
					last.b = grown
				}
				copy(last.b[w.off-last.off:], w.b)
				continue
			}
		}
		b := make([]byte, len(w.b))
		copy(b, w.b)
		result = append(result, write{off: w.off, b: b})
	}
	return result
}

// Record is a fixed-size region of the file. Its offset is decided
// when it is allocated (or found in the fixup table) and stays the
// same for the life of the file.
type Record struct {
	f    *File
	off  int64
	size int64
}

// Offset of the record within the file.
func (r *Record) Offset() int64 { return r.off }

// Size of the record in bytes.
func (r *Record) Size() int64 { return r.size }

// create stages the entire content of a new record.
func (r *Record) create(e *encoder) error {
	if e.err != nil {
		return e.err
	}
	if int64(len(e.b)) != r.size {
		return fmt.Errorf("record at %d: encoded %d bytes, record size is %d", r.off, len(e.b), r.size)
	}
	r.f.stage(r.off, e.b)
	return nil
}

// update stages an in-place overwrite at pos bytes into the record.
func (r *Record) update(pos int64, e *encoder) error {
	if e.err != nil {
		return e.err
	}
	if r.f.readOnly {
		return ErrReadOnly
	}
	if pos < 0 || pos+int64(len(e.b)) > r.size {
		return fmt.Errorf("record at %d: update of %d bytes at %d overflows size %d", r.off, len(e.b), pos, r.size)
	}
	r.f.stage(r.off+pos, e.b)
	return nil
}

// read loads the entire record.
func (r *Record) read() (*decoder, error) {
	if r.f.f == nil {
		return nil, ErrClosed
	}
	if r.off < 0 || r.size < 0 || r.off+r.size > r.f.end {
		return nil, fmt.Errorf("%w: record at %d (%d bytes) is past the end of file (%d)", ErrCorrupt, r.off, r.size, r.f.end)
	}
	b := make([]byte, r.size)
	if _, err := r.f.f.ReadAt(b, r.off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: record at %d (%d bytes) is past the end of file", ErrCorrupt, r.off, r.size)
		}
		return nil, err
	}
	return newDecoder(b), nil
}
