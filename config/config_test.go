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

package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tgres/rrdb/rrd"
)

func Test_RRASpec_UnmarshalText(t *testing.T) {
	for in, out := range map[string]RRASpec{
		"AVERAGE:50:1:288": {rrd.AVERAGE, 50, 1, 288},
		"max:12:24":        {rrd.MAX, 50, 12, 24},
		"WMEAN:90:6:700":   {rrd.AVERAGE, 90, 6, 700},
		"1:288":            {rrd.AVERAGE, 50, 1, 288},
		"25:3:10":          {rrd.AVERAGE, 25, 3, 10},
		"last:1:1":         {rrd.LAST, 50, 1, 1},
	} {
		var r RRASpec
		if err := r.UnmarshalText([]byte(in)); err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if r != out {
			t.Errorf("%q: got %v, expected %v", in, r, out)
		}
	}
	for _, in := range []string{"", "AVERAGE", "MEDIAN:1:2", "MAX:x:1", "MAX:1:y", "MAX:a:1:2", "1:2:3:4:5"} {
		var r RRASpec
		if err := r.UnmarshalText([]byte(in)); err == nil {
			t.Errorf("%q: expected an error, got %v", in, r)
		}
	}
}

const routerTemplate = `
title = "router"
start = "2016-05-23T00:00:00Z"

[[ds]]
name = "ifInOctets"
conversion = "counter"
interval = "5min"
min = 0
max = 1e12

[[ds]]
name = "temp"
interval = "30s"
max = 150

[[rra]]
spec = "AVERAGE:50:1:288"
name = "daily"

[[rra]]
spec = "MAX:12:700"
`

func Test_ParseTemplate(t *testing.T) {
	spec, err := ParseTemplate(routerTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	if spec.Title != "router" || !spec.Start.Equal(time.Date(2016, 5, 23, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("header: %q %v", spec.Title, spec.Start)
	}
	if len(spec.DataSources) != 2 || len(spec.Archives) != 2 {
		t.Fatalf("got %d data sources and %d archives", len(spec.DataSources), len(spec.Archives))
	}
	in := spec.DataSources[0]
	if in.Name != "ifInOctets" || in.Conversion != rrd.COUNTER || in.Interval != 5*time.Minute || in.Min != 0 || in.Max != 1e12 {
		t.Errorf("ifInOctets: %+v", in)
	}
	temp := spec.DataSources[1]
	if temp.Conversion != rrd.GAUGE || temp.Interval != 30*time.Second || !math.IsInf(temp.Min, -1) || temp.Max != 150 {
		t.Errorf("temp: %+v", temp)
	}
	if a := spec.Archives[0]; a != (rrd.ArchiveSpec{Name: "daily", Function: rrd.AVERAGE, XFF: 50, ReadingsPerDataPoint: 1, MaxDataPoints: 288}) {
		t.Errorf("daily: %+v", a)
	}
	if a := spec.Archives[1]; a.Name != "max_12_700" || a.XFF != 50 {
		t.Errorf("unnamed archive: %+v", a)
	}
	if err := spec.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func Test_ParseTemplate_defaultStart(t *testing.T) {
	saveTimeNow := timeNow
	defer func() { timeNow = saveTimeNow }()
	now := time.Unix(1464000000, 0)
	timeNow = func() time.Time { return now }

	spec, err := ParseTemplate("[[ds]]\nname = \"x\"\ninterval = \"10s\"\n[[rra]]\nspec = \"1:10\"\n")
	if err != nil {
		t.Fatal(err)
	}
	if !spec.Start.Equal(now) {
		t.Errorf("start: %v, expected %v", spec.Start, now)
	}

	spec, err = ParseTemplate("start = 1464000000\n")
	if err != nil {
		t.Fatal(err)
	}
	if !spec.Start.Equal(now) {
		t.Errorf("start from unix seconds: %v, expected %v", spec.Start, now)
	}
}

func Test_ParseTemplate_errors(t *testing.T) {
	for name, tmpl := range map[string]string{
		"syntax":      "title = ",
		"unknown key": "title = \"x\"\nsize = 12\n",
		"conversion":  "[[ds]]\nconversion = \"gauge-ish\"\n",
		"interval":    "[[ds]]\ninterval = \"often\"\n",
		"rra":         "[[rra]]\nspec = \"MEDIAN:1:2\"\n",
		"min":         "[[ds]]\nmin = \"low\"\n",
	} {
		if _, err := ParseTemplate(tmpl); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func Test_ReadTemplate(t *testing.T) {
	saveReadFile := readFile
	defer func() { readFile = saveReadFile }()

	var readPath string
	readFile = func(path string) ([]byte, error) {
		readPath = path
		return []byte(routerTemplate), nil
	}
	spec, err := ReadTemplate("/etc/rrdb/router.toml")
	if err != nil || readPath != "/etc/rrdb/router.toml" || spec.Title != "router" {
		t.Errorf("ReadTemplate: %v %q %v", spec, readPath, err)
	}

	readFile = func(string) ([]byte, error) { return []byte("title = "), nil }
	if _, err := ReadTemplate("bad.toml"); err == nil || !strings.HasPrefix(err.Error(), "bad.toml: ") {
		t.Errorf("ReadTemplate error should name the file: %v", err)
	}
}

func Test_LoadSettings(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "rrdb.toml")
	if err := os.WriteFile(cfg, []byte("data-dir = \"/var/lib/rrdb\"\nmax-open = 8\nlock-timeout = \"250ms\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RRDB_LOG_LEVEL", "debug")
	t.Setenv("RRDB_FSYNC", "true")

	s, err := LoadSettings(cfg)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	expect := Settings{
		LogLevel:    "debug",
		LockTimeout: 250 * time.Millisecond,
		Fsync:       true,
		DataDir:     "/var/lib/rrdb",
		MaxOpen:     8,
	}
	if *s != expect {
		t.Errorf("settings: %+v, expected %+v", *s, expect)
	}

	if _, err := LoadSettings(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("LoadSettings of a missing explicit file: expected an error")
	}

	if err := os.WriteFile(cfg, []byte("max-open = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(cfg); err == nil {
		t.Errorf("max-open = 0: expected an error")
	}
}
