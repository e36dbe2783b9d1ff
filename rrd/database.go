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
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tgres/rrdb/logging"
	"github.com/tgres/rrdb/serde"
)

// Mode in which a database is opened.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

type options struct {
	lockTimeout time.Duration
	sync        bool
	log         *zerolog.Logger
}

// Option modifies how a database file is created or opened.
type Option func(*options)

// WithLockTimeout sets how long to wait for a database locked by
// someone else. Negative means do not wait.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// WithSync makes every commit fsync the file.
func WithSync(sync bool) Option {
	return func(o *options) { o.sync = sync }
}

// WithLogger sets the logger, the default is logging.Get().
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{lockTimeout: serde.DefaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Get()
	}
	return o
}

func (o options) serde(mode Mode) serde.Options {
	return serde.Options{ReadOnly: mode == ReadOnly, LockTimeout: o.lockTimeout, Sync: o.sync}
}

// Database is a set of data sources sharing the same archive
// templates. It is not safe for concurrent use.
type Database struct {
	path  string
	mode  Mode
	opts  options
	store databaseStore

	title       string
	start       time.Time
	templates   []*ArchiveTemplate
	dataSources []*DataSource
	byName      map[string]*DataSource // lower case name
	closed      bool
}

// Create creates a new database file at path. The file must not
// exist. The database is returned open read-write.
func Create(path string, spec *DatabaseSpec, opts ...Option) (*Database, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	f, img, err := serde.Create(path, imageFromSpec(spec), o.serde(ReadWrite))
	if err != nil {
		return nil, fileErr("create", path, err)
	}
	db := fromImage(img, f, path, ReadWrite, o)
	o.log.Info().Str("path", path).Int("dataSources", len(db.dataSources)).Int("archives", len(db.templates)).Msg("created database")
	return db, nil
}

// Open opens an existing database file.
func Open(path string, mode Mode, opts ...Option) (*Database, error) {
	o := buildOptions(opts)
	f, img, err := serde.Open(path, o.serde(mode))
	if err != nil {
		return nil, fileErr("open", path, err)
	}
	if err := checkImage(img); err != nil {
		f.Close()
		return nil, storageErr("open "+path, fmt.Errorf("%w: %v", serde.ErrCorrupt, err))
	}
	db := fromImage(img, f, path, mode, o)
	o.log.Debug().Str("path", path).Stringer("mode", mode).Msg("opened database")
	return db, nil
}

// NewMemory returns a database which is not backed by a file.
func NewMemory(spec *DatabaseSpec, opts ...Option) (*Database, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return fromImage(imageFromSpec(spec), nil, "", ReadWrite, buildOptions(opts)), nil
}

// Import creates a new database file at path with the content of
// snap. Either the whole database is created or nothing is.
func Import(path string, snap *Snapshot, opts ...Option) (*Database, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	f, img, err := serde.Create(path, snap.image(), o.serde(ReadWrite))
	if err != nil {
		return nil, fileErr("import", path, err)
	}
	db := fromImage(img, f, path, ReadWrite, o)
	o.log.Info().Str("path", path).Int("dataSources", len(db.dataSources)).Msg("imported database")
	return db, nil
}

// Remove deletes the database file at path along with its lock file.
func Remove(path string, opts ...Option) error {
	o := buildOptions(opts)
	timeout := o.lockTimeout
	if timeout < 0 {
		timeout = 0
	}
	if err := serde.Remove(path, timeout); err != nil {
		return fileErr("remove", path, err)
	}
	o.log.Info().Str("path", path).Msg("removed database")
	return nil
}

func fileErr(op, path string, err error) error {
	if errors.Is(err, serde.ErrExists) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	return storageErr(op+" "+path, err)
}

// checkImage makes sure what was read from a file describes a valid
// database.
func checkImage(img *serde.Image) error {
	spec := &DatabaseSpec{Title: img.Header.Title, Start: fromNanos(img.Header.Start)}
	for _, t := range img.Templates {
		spec.Archives = append(spec.Archives, ArchiveSpec{
			Name:                 t.Name,
			Function:             Consolidation(t.Function),
			XFF:                  int(t.XFF),
			ReadingsPerDataPoint: int(t.ReadingsPerDataPoint),
			MaxDataPoints:        int(t.MaxDataPoints),
		})
	}
	for _, ds := range img.DataSources {
		spec.DataSources = append(spec.DataSources, DataSourceSpec{
			Name:       ds.Name,
			Conversion: Conversion(ds.Conversion),
			Interval:   time.Duration(ds.Interval),
			Min:        ds.Min,
			Max:        ds.Max,
		})
	}
	return spec.Validate()
}

// Path of the database file, empty for an in-memory database.
func (db *Database) Path() string { return db.path }

// Mode the database was opened in.
func (db *Database) Mode() Mode { return db.mode }

// Connected is true until Close or a storage error.
func (db *Database) Connected() bool { return !db.closed }

// Title of the database.
func (db *Database) Title() string { return db.title }

// Start is the time before which no reading is accepted.
func (db *Database) Start() time.Time { return db.start }

// DataSources in creation order.
func (db *Database) DataSources() []*DataSource { return db.dataSources }

// Templates in sequence order.
func (db *Database) Templates() []*ArchiveTemplate { return db.templates }

// DataSource returns the data source with the given name, compared
// case-insensitively, or nil.
func (db *Database) DataSource(name string) *DataSource {
	return db.byName[strings.ToLower(name)]
}

// Template returns the archive template with the given name, compared
// case-insensitively, or nil.
func (db *Database) Template(name string) *ArchiveTemplate {
	for _, t := range db.templates {
		if strings.EqualFold(t.name, name) {
			return t
		}
	}
	return nil
}

// Stats is the sum of the stats of all data sources.
func (db *Database) Stats() Stats {
	var s Stats
	for _, ds := range db.dataSources {
		s = s.add(ds.stats)
	}
	return s
}

func (db *Database) writable() error {
	if db.closed {
		return ErrClosed
	}
	if db.mode == ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// commit makes staged changes durable. On any storage error what was
// staged is dropped and the database is disconnected: the objects in
// memory may be ahead of the file from then on.
func (db *Database) commit(staged error) error {
	op, err := "update ", staged
	if err == nil {
		op, err = "commit ", db.store.commit()
	}
	if err == nil {
		return nil
	}
	db.store.discard()
	db.closed = true
	if cerr := db.store.close(); cerr != nil {
		db.opts.log.Warn().Err(cerr).Str("path", db.path).Msg("closing after storage error")
	}
	db.opts.log.Error().Err(err).Str("path", db.path).Msg("storage error, database disconnected")
	return storageErr(op+db.path, err)
}

// Push processes readings for the named data source. Readings that
// are out of range or too old are not an error, they are counted as
// discarded.
func (db *Database) Push(name string, readings ...Reading) error {
	return db.PushPayloads(Payload{DataSource: name, Readings: readings})
}

// PushPayloads processes readings for several data sources and
// commits the changes in one go.
func (db *Database) PushPayloads(payloads ...Payload) error {
	if err := db.writable(); err != nil {
		return err
	}
	dss := make([]*DataSource, len(payloads))
	for i, p := range payloads {
		if dss[i] = db.DataSource(p.DataSource); dss[i] == nil {
			return fmt.Errorf("%w: %q", ErrUnknownDataSource, p.DataSource)
		}
	}
	var staged error
	for i, p := range payloads {
		if staged = dss[i].push(p.Readings); staged != nil {
			break
		}
	}
	return db.commit(staged)
}

// SetTitle changes the title.
func (db *Database) SetTitle(title string) error {
	if title == db.title {
		return nil
	}
	if err := db.writable(); err != nil {
		return err
	}
	if !serde.NameFits(title) {
		return fmt.Errorf("%w: title %q is longer than %d characters", ErrNameTooLong, title, MaxNameLength)
	}
	if err := db.commit(db.store.setTitle(title)); err != nil {
		return err
	}
	db.title = title
	return nil
}

func (db *Database) checkRename(name string) error {
	if err := db.writable(); err != nil {
		return err
	}
	return validateName(name)
}

func (db *Database) renameDataSource(ds *DataSource, name string) error {
	if err := db.checkRename(name); err != nil {
		return err
	}
	if other := db.DataSource(name); other != nil && other != ds {
		return fmt.Errorf("%w: data source %q", ErrDuplicateName, name)
	}
	if err := db.commit(ds.store.setName(name)); err != nil {
		return err
	}
	delete(db.byName, strings.ToLower(ds.name))
	db.byName[strings.ToLower(name)] = ds
	db.opts.log.Debug().Str("path", db.path).Str("from", ds.name).Str("to", name).Msg("renamed data source")
	ds.name = name
	return nil
}

func (db *Database) renameTemplate(t *ArchiveTemplate, name string) error {
	if err := db.checkRename(name); err != nil {
		return err
	}
	if other := db.Template(name); other != nil && other != t {
		return fmt.Errorf("%w: archive %q", ErrDuplicateName, name)
	}
	if err := db.commit(t.store.setName(name)); err != nil {
		return err
	}
	db.opts.log.Debug().Str("path", db.path).Str("from", t.name).Str("to", name).Msg("renamed archive")
	t.name = name
	return nil
}

// Close releases the file and its lock. Closing a closed database is
// a no-op.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.store.close(); err != nil {
		return storageErr("close "+db.path, err)
	}
	db.opts.log.Debug().Str("path", db.path).Msg("closed database")
	return nil
}

// Delete closes the database and removes its file.
func (db *Database) Delete() error {
	if err := db.Close(); err != nil {
		return err
	}
	if db.path == "" {
		return nil
	}
	return Remove(db.path, WithLockTimeout(db.opts.lockTimeout), WithLogger(db.opts.log))
}
