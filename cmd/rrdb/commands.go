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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/time/rate"

	"github.com/tgres/rrdb/config"
	"github.com/tgres/rrdb/logging"
	"github.com/tgres/rrdb/misc"
	"github.com/tgres/rrdb/receiver"
	"github.com/tgres/rrdb/rrd"
	"github.com/tgres/rrdb/snapshot"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != nargs {
		return errUsage
	}
	return nil
}

func cmdCreate(e *env, args []string) error {
	fs := newFlagSet("create")
	tmpl := fs.String("t", "", "database template (TOML)")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if *tmpl == "" {
		return errUsage
	}
	spec, err := config.ReadTemplate(*tmpl)
	if err != nil {
		return err
	}
	db, err := rrd.Create(e.dbPath(fs.Arg(0)), spec, e.dbOptions()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "created %s\n", db.Path())
	return db.Close()
}

func (e *env) open(arg string, mode rrd.Mode) (*rrd.Database, error) {
	return rrd.Open(e.dbPath(arg), mode, e.dbOptions()...)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func cmdInfo(e *env, args []string) error {
	fs := newFlagSet("info")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	db, err := e.open(fs.Arg(0), rrd.ReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()
	printInfo(e.stdout, db)
	return nil
}

func printInfo(out io.Writer, db *rrd.Database) {
	st := db.Stats()
	fmt.Fprintf(out, "path:    %s\n", db.Path())
	fmt.Fprintf(out, "title:   %s\n", db.Title())
	fmt.Fprintf(out, "start:   %s\n", formatTime(db.Start()))
	fmt.Fprintf(out, "total:   %d\n", st.Total)
	fmt.Fprintf(out, "discard: %d\n\n", st.Discarded)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RRA\tCF\tXFF\tREADINGS/DP\tDPS")
	for _, t := range db.Templates() {
		fmt.Fprintf(w, "%s\t%v\t%d\t%d\t%d\n", t.Name(), t.Function(), t.XFF(), t.ReadingsPerDataPoint(), t.MaxDataPoints())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DS\tTYPE\tINTERVAL\tMIN\tMAX\tTOTAL\tDISCARDED\tLAST")
	for _, ds := range db.DataSources() {
		last := "-"
		if r, ok := ds.LastReading(); ok {
			last = fmt.Sprintf("%v@%s", r.Value, formatTime(r.Time))
		}
		rng, st := ds.Range(), ds.Stats()
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%d\t%d\t%s\n", ds.Name(), ds.Conversion(), ds.Interval(), rng.Min, rng.Max, st.Total, st.Discarded, last)
	}
	w.Flush()
}

// parseReading parses "value" or "value@time".
func parseReading(s string) (rrd.Reading, error) {
	v, ts := s, ""
	if i := strings.IndexByte(s, '@'); i >= 0 {
		v, ts = s[:i], s[i+1:]
	}
	value, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return rrd.Reading{}, fmt.Errorf("invalid value %q", v)
	}
	t, err := misc.ParseTime(ts)
	if err != nil {
		return rrd.Reading{}, err
	}
	return rrd.Reading{Value: value, Time: t}, nil
}

func cmdPush(e *env, args []string) error {
	fs := newFlagSet("push")
	if err := fs.Parse(args); err != nil || fs.NArg() < 3 {
		return errUsage
	}
	readings := make([]rrd.Reading, 0, fs.NArg()-2)
	for _, arg := range fs.Args()[2:] {
		r, err := parseReading(arg)
		if err != nil {
			return err
		}
		readings = append(readings, r)
	}
	db, err := e.open(fs.Arg(0), rrd.ReadWrite)
	if err != nil {
		return err
	}
	defer db.Close()

	ds := db.DataSource(fs.Arg(1))
	if ds == nil {
		return fmt.Errorf("%w: %q", rrd.ErrUnknownDataSource, fs.Arg(1))
	}
	before := ds.Stats()
	if err := db.Push(ds.Name(), readings...); err != nil {
		return err
	}
	after := ds.Stats()
	fmt.Fprintf(e.stdout, "accepted %d, discarded %d\n", after.Total-before.Total, after.Discarded-before.Discarded)
	return db.Close()
}

func cmdFetch(e *env, args []string) error {
	fs := newFlagSet("fetch")
	from := fs.String("from", "", "earliest time (default: everything)")
	to := fs.String("to", "", "latest time (default: now)")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	db, err := e.open(fs.Arg(0), rrd.ReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()

	ds := db.DataSource(fs.Arg(1))
	if ds == nil {
		return fmt.Errorf("%w: %q", rrd.ErrUnknownDataSource, fs.Arg(1))
	}
	a := ds.Archive(fs.Arg(2))
	if a == nil {
		return fmt.Errorf("%w: %q", rrd.ErrUnknownArchive, fs.Arg(2))
	}

	var dps []rrd.DataPoint
	if *from == "" && *to == "" {
		dps = a.DataPoints().All()
	} else {
		fromTime := time.Unix(0, 0)
		if *from != "" {
			if fromTime, err = misc.ParseTime(*from); err != nil {
				return err
			}
		}
		toTime, err := misc.ParseTime(*to)
		if err != nil {
			return err
		}
		if dps, err = a.DataPoints().FilterByTime(fromTime, toTime); err != nil {
			return err
		}
	}
	w := bufio.NewWriter(e.stdout)
	for _, dp := range dps {
		fmt.Fprintf(w, "%s %v\n", formatTime(dp.Time), dp.Value)
	}
	return w.Flush()
}

func cmdExport(e *env, args []string) error {
	fs := newFlagSet("export")
	compress := fs.Bool("z", false, "snappy compress")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	db, err := e.open(fs.Arg(0), rrd.ReadOnly)
	if err != nil {
		return err
	}
	defer db.Close()
	if fs.Arg(1) == "-" {
		return snapshot.Write(e.stdout, db.Export(), *compress)
	}
	return snapshot.WriteFile(fs.Arg(1), db.Export(), *compress)
}

func cmdImport(e *env, args []string) error {
	fs := newFlagSet("import")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	var (
		snap *rrd.Snapshot
		err  error
	)
	if fs.Arg(1) == "-" {
		snap, err = snapshot.Read(e.stdin)
	} else {
		snap, err = snapshot.ReadFile(fs.Arg(1))
	}
	if err != nil {
		return err
	}
	db, err := rrd.Import(e.dbPath(fs.Arg(0)), snap, e.dbOptions()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "imported %s\n", db.Path())
	return db.Close()
}

// update opens a database read-write, applies fn and closes it.
func (e *env) update(arg string, fn func(db *rrd.Database) error) error {
	db, err := e.open(arg, rrd.ReadWrite)
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

func cmdRenameDS(e *env, args []string) error {
	fs := newFlagSet("rename-ds")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	return e.update(fs.Arg(0), func(db *rrd.Database) error {
		ds := db.DataSource(fs.Arg(1))
		if ds == nil {
			return fmt.Errorf("%w: %q", rrd.ErrUnknownDataSource, fs.Arg(1))
		}
		return ds.SetName(fs.Arg(2))
	})
}

func cmdRenameRRA(e *env, args []string) error {
	fs := newFlagSet("rename-rra")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	return e.update(fs.Arg(0), func(db *rrd.Database) error {
		t := db.Template(fs.Arg(1))
		if t == nil {
			return fmt.Errorf("%w: %q", rrd.ErrUnknownArchive, fs.Arg(1))
		}
		return t.SetName(fs.Arg(2))
	})
}

func cmdTitle(e *env, args []string) error {
	fs := newFlagSet("title")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	return e.update(fs.Arg(0), func(db *rrd.Database) error {
		return db.SetTitle(fs.Arg(1))
	})
}

func cmdIngest(e *env, args []string) error {
	fs := newFlagSet("ingest")
	format := fs.String("format", "text", "input format: text, pickle or whisper")
	whisperRoot := fs.String("whisper-root", "", "whisper files are named after their path under this directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	router, err := receiver.NewRouter(e.settings.DataDir, e.settings.MaxOpen, e.dbOptions()...)
	if err != nil {
		return err
	}
	in := make(chan *receiver.IncomingDP, 1024)
	done := make(chan struct{})
	go func() {
		router.Run(e.ctx, in, rate.NewLimiter(rate.Every(time.Second), 1))
		close(done)
	}()
	add := func(dp *receiver.IncomingDP) {
		select {
		case in <- dp:
		case <-done:
		}
	}

	err = ingest(e, *format, *whisperRoot, fs.Args(), add)
	close(in)
	<-done
	router.Close()

	st := router.Stats()
	logging.Get().Info().Uint64("received", st.Received).Uint64("routed", st.Routed).
		Uint64("dropped", st.Dropped).Uint64("failed", st.Failed).Msg("ingest done")
	fmt.Fprintf(e.stdout, "received %d, routed %d, dropped %d, failed %d\n", st.Received, st.Routed, st.Dropped, st.Failed)
	return err
}

func ingest(e *env, format, whisperRoot string, files []string, add func(*receiver.IncomingDP)) error {
	switch format {
	case "text", "pickle":
		read := func(r io.Reader) error {
			if format == "pickle" {
				return receiver.ReadGraphitePickle(r, add)
			}
			bad, err := receiver.ReadGraphiteText(r, add)
			if bad > 0 {
				logging.Get().Warn().Int("lines", bad).Msg("skipped malformed lines")
			}
			return err
		}
		if len(files) == 0 {
			return read(e.stdin)
		}
		for _, path := range files {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			err = read(bufio.NewReader(f))
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	case "whisper":
		if whisperRoot == "" {
			return fmt.Errorf("%w: -whisper-root is required", errUsage)
		}
		if len(files) == 0 {
			files = []string{whisperRoot}
		}
		for _, root := range files {
			err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
				if err != nil || info.IsDir() || !strings.HasSuffix(path, ".wsp") {
					return err
				}
				name, err := receiver.WhisperName(whisperRoot, path)
				if err != nil {
					return err
				}
				dps, err := receiver.ReadWhisper(path, name)
				if err != nil {
					logging.Get().Warn().Err(err).Str("path", path).Msg("skipping whisper file")
					return nil
				}
				for _, dp := range dps {
					add(dp)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown format %q", errUsage, format)
}

func cmdCollect(e *env, args []string) error {
	fs := newFlagSet("collect")
	count := fs.Int("n", 0, "number of samples, 0 means until interrupted")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	db, err := e.open(fs.Arg(0), rrd.ReadWrite)
	if err != nil {
		return err
	}
	defer db.Close()
	c, err := receiver.NewCollector(db)
	if err != nil {
		return err
	}
	n, err := c.Run(e.ctx, *count)
	fmt.Fprintf(e.stdout, "collected %d samples\n", n)
	if err != nil {
		return err
	}
	return db.Close()
}

func cmdDelete(e *env, args []string) error {
	fs := newFlagSet("delete")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	path := e.dbPath(fs.Arg(0))
	if err := rrd.Remove(path, e.dbOptions()...); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "deleted %s\n", path)
	return nil
}
