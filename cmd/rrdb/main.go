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

// Rrdb is a command line tool for round-robin database files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tgres/rrdb/config"
	"github.com/tgres/rrdb/logging"
	"github.com/tgres/rrdb/receiver"
	"github.com/tgres/rrdb/rrd"
)

var (
	buildTime, gitRevision string
)

// env is what every command gets to work with.
type env struct {
	ctx      context.Context
	settings *config.Settings
	stdin    io.Reader
	stdout   io.Writer
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands = map[string]command{
	"create":     {"create -t template.toml <db>", cmdCreate},
	"info":       {"info <db>", cmdInfo},
	"push":       {"push <db> <ds> <value>[@time] ...", cmdPush},
	"fetch":      {"fetch [-from time] [-to time] <db> <ds> <rra>", cmdFetch},
	"export":     {"export [-z] <db> <file>", cmdExport},
	"import":     {"import <db> <file>", cmdImport},
	"rename-ds":  {"rename-ds <db> <old> <new>", cmdRenameDS},
	"rename-rra": {"rename-rra <db> <old> <new>", cmdRenameRRA},
	"title":      {"title <db> <title>", cmdTitle},
	"ingest":     {"ingest [-format text|pickle|whisper] [-whisper-root dir] [file ...]", cmdIngest},
	"collect":    {"collect [-n count] <db>", cmdCollect},
	"delete":     {"delete <db>", cmdDelete},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: rrdb [-c rrdb.toml] [-log-level level] <command> [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rrdb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath, logLevel string
		version           bool
	)
	fs.StringVar(&cfgPath, "c", "", "path to settings file (default rrdb.toml in . or $HOME/.rrdb)")
	fs.StringVar(&logLevel, "log-level", "", "log level, overrides the log-level setting")
	fs.BoolVar(&version, "version", false, "print version and exit")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if version {
		fmt.Fprintf(stdout, "rrdb %s (%s)\n", gitRevision, buildTime)
		return nil
	}

	if fs.NArg() == 0 {
		usage(stderr)
		return errUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(stderr)
		return errUsage
	}

	settings, err := config.LoadSettings(cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	closeLog, err := setupLogging(settings, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	e := &env{ctx: ctx, settings: settings, stdin: stdin, stdout: stdout}
	if err := cmd.run(e, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: rrdb %s\n", cmd.usage)
		}
		return err
	}
	return nil
}

// setupLogging logs to the log-file setting if there is one, to
// stderr otherwise.
func setupLogging(s *config.Settings, stderr io.Writer) (func(), error) {
	if s.LogFile == "" {
		l, err := logging.NewConsole(stderr, s.LogLevel)
		if err != nil {
			return nil, err
		}
		logging.SetGlobal(l)
		return func() {}, nil
	}
	f, err := logging.OpenFile(s.LogFile)
	if err != nil {
		return nil, err
	}
	l, err := logging.New(f, s.LogLevel)
	if err != nil {
		f.Close()
		return nil, err
	}
	logging.SetGlobal(l)
	return func() { f.Close() }, nil
}

// dbOptions are the options for opening databases per the settings.
func (e *env) dbOptions() []rrd.Option {
	return []rrd.Option{
		rrd.WithLockTimeout(e.settings.LockTimeout),
		rrd.WithSync(e.settings.Fsync),
		rrd.WithLogger(logging.Get()),
	}
}

// dbPath resolves a database argument. A name such as "web1" means
// <data-dir>/web1.rrdb, a path is taken as is.
func (e *env) dbPath(arg string) string {
	if strings.ContainsRune(arg, os.PathSeparator) || strings.HasSuffix(arg, receiver.Extension) {
		return arg
	}
	return filepath.Join(e.settings.DataDir, arg+receiver.Extension)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "rrdb: %v\n", err)
		}
		os.Exit(1)
	}
}
