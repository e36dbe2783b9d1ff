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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DefaultLockTimeout is used when Options.LockTimeout is zero.
const DefaultLockTimeout = 5 * time.Second

// Options control how a database file is opened.
type Options struct {
	ReadOnly    bool
	LockTimeout time.Duration // negative means do not wait at all
	Sync        bool          // fsync after every Commit
}

func (o Options) lockTimeout() time.Duration {
	switch {
	case o.LockTimeout == 0:
		return DefaultLockTimeout
	case o.LockTimeout < 0:
		return 0
	}
	return o.LockTimeout
}

// DB is an open database file together with the handles of all its
// records. Handles are parallel to the Image returned along with the
// DB: DataSources[i].Archives[j] is where Image.DataSources[i].Archives[j]
// lives.
type DB struct {
	*File
	lock        *Lock
	Header      *HeaderRecord
	Templates   []*TemplateRecord
	DataSources []*DataSourceRecord
}

// Close closes the file and releases the lock, if any.
func (db *DB) Close() error {
	var result error
	if err := db.File.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if db.lock != nil {
		if err := db.lock.Release(); err != nil {
			result = multierror.Append(result, err)
		}
		db.lock = nil
	}
	return result
}

// Create writes img to a new file at path and opens it for
// writing. The file is first written under a temporary name and
// renamed into place only once complete, so a failed Create never
// leaves a partial database behind.
func Create(path string, img *Image, opts Options) (*DB, *Image, error) {
	if opts.ReadOnly {
		return nil, nil, ErrReadOnly
	}
	if err := checkImage(img); err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrExists, path)
	}
	lock, err := AcquireLock(path, true, opts.lockTimeout())
	if err != nil {
		return nil, nil, err
	}

	// someone may have created it while we waited for the lock
	if _, err := os.Stat(path); err == nil {
		lock.Release()
		return nil, nil, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		lock.Release()
		return nil, nil, err
	}

	tmp := path + ".tmp"
	if err := writeImage(tmp, img); err != nil {
		os.Remove(tmp)
		lock.Release()
		return nil, nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		lock.Release()
		return nil, nil, err
	}

	osf, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		os.Remove(path)
		lock.Release()
		return nil, nil, err
	}
	db, result, err := load(osf, path, opts)
	if err != nil {
		osf.Close()
		os.Remove(path)
		lock.Release()
		return nil, nil, err
	}
	db.lock = lock
	return db, result, nil
}

// Open opens an existing database file. A read-write open holds an
// exclusive lock until Close. A read-only open holds a shared lock
// only while the file is being loaded.
func Open(path string, opts Options) (*DB, *Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}
	lock, err := AcquireLock(path, !opts.ReadOnly, opts.lockTimeout())
	if err != nil {
		return nil, nil, err
	}

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	osf, err := os.OpenFile(path, flag, 0)
	if err != nil {
		lock.Release()
		return nil, nil, err
	}

	db, img, err := load(osf, path, opts)
	if err != nil {
		osf.Close()
		lock.Release()
		return nil, nil, err
	}

	if opts.ReadOnly {
		if err := lock.Release(); err != nil {
			db.Close()
			return nil, nil, err
		}
	} else {
		db.lock = lock
	}
	return db, img, nil
}

// Remove deletes the database file and its lock file. It takes the
// exclusive lock first so that a database in use is not removed from
// under its owner, and unlinks the lock file before letting go of it.
func Remove(path string, lockTimeout time.Duration) error {
	lock, err := AcquireLock(path, true, lockTimeout)
	if err != nil {
		return err
	}
	defer lock.Release()
	err = os.Remove(path)
	if rerr := os.Remove(LockPath(path)); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}

func checkImage(img *Image) error {
	if !NameFits(img.Header.Title) {
		return fmt.Errorf("title: %w", ErrNameTooLong)
	}
	for i, t := range img.Templates {
		if t.Seq != uint32(i) {
			return fmt.Errorf("template %q: sequence number %d at position %d", t.Name, t.Seq, i)
		}
		if t.ReadingsPerDataPoint == 0 || t.MaxDataPoints == 0 {
			return fmt.Errorf("template %q: zero capacity", t.Name)
		}
	}
	for _, ds := range img.DataSources {
		if len(ds.Archives) != len(img.Templates) {
			return fmt.Errorf("data source %q: %d archives for %d templates", ds.Name, len(ds.Archives), len(img.Templates))
		}
		for j, a := range ds.Archives {
			t := img.Templates[j]
			if a.Seq != t.Seq {
				return fmt.Errorf("data source %q: archive %d has sequence number %d", ds.Name, j, a.Seq)
			}
			if len(a.Readings) > int(t.ReadingsPerDataPoint) || int(a.ReadingCount) > int(t.ReadingsPerDataPoint) {
				return fmt.Errorf("data source %q archive %q: too many readings", ds.Name, t.Name)
			}
			if len(a.DataPoints) > int(t.MaxDataPoints) || int(a.QueueSize) > int(t.MaxDataPoints) {
				return fmt.Errorf("data source %q archive %q: too many data points", ds.Name, t.Name)
			}
		}
	}
	return nil
}

// writeImage lays out the records and writes them. All offsets are
// allocated first, which is what lets the fixup table (which comes
// before the records) point at them.
func writeImage(path string, img *Image) error {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	f := &File{f: osf, path: path}

	hdr := f.alloc(headerSize)
	tfix := make([]*Record, len(img.Templates))
	for i := range tfix {
		tfix[i] = f.alloc(fixupSize)
	}
	dfix := make([]*Record, len(img.DataSources))
	for i := range dfix {
		dfix[i] = f.alloc(fixupSize)
	}
	trecs := make([]*Record, len(img.Templates))
	for i := range trecs {
		trecs[i] = f.alloc(templateSize)
	}
	drecs := make([]*Record, len(img.DataSources))
	arecs := make([][]*Record, len(img.DataSources))
	for i := range img.DataSources {
		drecs[i] = f.alloc(dsSize)
		arecs[i] = make([]*Record, len(img.Templates))
		for j, t := range img.Templates {
			arecs[i][j] = f.alloc(archiveSize(int64(t.ReadingsPerDataPoint), int64(t.MaxDataPoints)))
		}
	}

	var result error
	check := func(err error) {
		if err != nil && result == nil {
			result = err
		}
	}

	check(hdr.create(encodeHeader(img.Header, len(img.Templates), len(img.DataSources))))
	for i, t := range img.Templates {
		check(tfix[i].create(encodeFixup(trecs[i].off, t.Name)))
		check(trecs[i].create(encodeTemplate(t)))
	}
	for i := range img.DataSources {
		ds := &img.DataSources[i]
		check(dfix[i].create(encodeFixup(drecs[i].off, ds.Name)))
		check(drecs[i].create(encodeDataSource(ds)))
		for j, t := range img.Templates {
			check(arecs[i][j].create(encodeArchive(&ds.Archives[j], int(t.ReadingsPerDataPoint), int(t.MaxDataPoints))))
		}
	}
	if result == nil {
		result = f.Commit()
	}
	if result == nil {
		result = osf.Sync()
	}
	if err := osf.Close(); err != nil && result == nil {
		result = err
	}
	return result
}

func load(osf *os.File, path string, opts Options) (*DB, *Image, error) {
	fi, err := osf.Stat()
	if err != nil {
		return nil, nil, err
	}
	f := &File{f: osf, path: path, readOnly: opts.ReadOnly, sync: opts.Sync, end: fi.Size()}
	db := &DB{File: f}
	img := &Image{}

	if f.end < headerSize {
		return nil, nil, fmt.Errorf("%w: file is %d bytes, shorter than a header", ErrCorrupt, f.end)
	}
	hrec := f.record(0, headerSize)
	d, err := hrec.read()
	if err != nil {
		return nil, nil, err
	}
	var nt, nd int
	if img.Header, nt, nd, err = decodeHeader(d); err != nil {
		return nil, nil, err
	}
	db.Header = &HeaderRecord{rec: hrec}

	if int64(headerSize)+int64(nt+nd)*fixupSize > f.end {
		return nil, nil, fmt.Errorf("%w: fixup table for %d templates and %d data sources does not fit", ErrCorrupt, nt, nd)
	}
	fixups := make([]*FixupEntry, nt+nd)
	names := make([]string, nt+nd)
	for i := range fixups {
		rec := f.record(headerSize+int64(i)*fixupSize, fixupSize)
		d, err := rec.read()
		if err != nil {
			return nil, nil, err
		}
		target, name, err := decodeFixup(d)
		if err != nil {
			return nil, nil, err
		}
		fixups[i] = &FixupEntry{rec: rec, target: target}
		names[i] = name
	}

	img.Templates = make([]Template, nt)
	db.Templates = make([]*TemplateRecord, nt)
	for i := 0; i < nt; i++ {
		rec := f.record(fixups[i].target, templateSize)
		d, err := rec.read()
		if err != nil {
			return nil, nil, err
		}
		t, err := decodeTemplate(d)
		if err != nil {
			return nil, nil, err
		}
		if t.Seq != uint32(i) {
			return nil, nil, fmt.Errorf("%w: template %q at position %d has sequence number %d", ErrCorrupt, names[i], i, t.Seq)
		}
		t.Name = names[i]
		img.Templates[i] = t
		db.Templates[i] = &TemplateRecord{rec: rec, fixup: fixups[i]}
	}

	img.DataSources = make([]DataSource, nd)
	db.DataSources = make([]*DataSourceRecord, nd)
	for i := 0; i < nd; i++ {
		fx := fixups[nt+i]
		rec := f.record(fx.target, dsSize)
		d, err := rec.read()
		if err != nil {
			return nil, nil, err
		}
		ds, err := decodeDataSource(d)
		if err != nil {
			return nil, nil, err
		}
		ds.Name = names[nt+i]
		dsr := &DataSourceRecord{rec: rec, fixup: fx}

		off := fx.target + dsSize
		ds.Archives = make([]Archive, nt)
		dsr.Archives = make([]*ArchiveRecord, nt)
		for j, t := range img.Templates {
			rcap, qcap := int(t.ReadingsPerDataPoint), int(t.MaxDataPoints)
			arec := f.record(off, archiveSize(int64(rcap), int64(qcap)))
			d, err := arec.read()
			if err != nil {
				return nil, nil, err
			}
			a, err := decodeArchive(d, rcap, qcap)
			if err != nil {
				return nil, nil, err
			}
			if a.Seq != t.Seq {
				return nil, nil, fmt.Errorf("%w: data source %q archive %d has sequence number %d", ErrCorrupt, ds.Name, j, a.Seq)
			}
			ds.Archives[j] = a
			dsr.Archives[j] = &ArchiveRecord{rec: arec, readingCap: rcap, queueCap: qcap}
			off += arec.size
		}
		img.DataSources[i] = ds
		db.DataSources[i] = dsr
	}

	return db, img, nil
}
