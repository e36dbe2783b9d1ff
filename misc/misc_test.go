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

package misc

import (
	"testing"
	"time"
)

func Test_SanitizeName(t *testing.T) {
	for in, out := range map[string]string{
		"foo.bar":         "foo.bar",
		"foo bar\tbaz":    "foo_bar_baz",
		"eth0/in":         "eth0-in",
		"cpu%idle!":       "cpuidle",
		"Mixed-Case_1.ok": "Mixed-Case_1.ok",
	} {
		if got := SanitizeName(in); got != out {
			t.Errorf("SanitizeName(%q) = %q, expected %q", in, got, out)
		}
	}
}

func Test_BetterParseDuration(t *testing.T) {
	for in, out := range map[string]time.Duration{
		"10s":   10 * time.Second,
		"5min":  5 * time.Minute,
		"2hour": 2 * time.Hour,
		"1d":    24 * time.Hour,
		"2w":    14 * 24 * time.Hour,
		"1mon":  30 * 24 * time.Hour,
		"1y":    365 * 24 * time.Hour,
		"-1d":   -24 * time.Hour,
		"1.5h":  90 * time.Minute,
	} {
		if got, err := BetterParseDuration(in); err != nil || got != out {
			t.Errorf("BetterParseDuration(%q) = %v, %v; expected %v", in, got, err, out)
		}
	}
	for _, in := range []string{"", "xd", "5 bananas"} {
		if _, err := BetterParseDuration(in); err == nil {
			t.Errorf("BetterParseDuration(%q): expected an error", in)
		}
	}
}

func Test_ParseTime(t *testing.T) {
	saveTimeNow := timeNow
	defer func() { timeNow = saveTimeNow }()
	now := time.Date(2016, 5, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }

	for in, out := range map[string]time.Time{
		"now":                  now,
		"-1h":                  now.Add(-time.Hour),
		"-2d":                  now.Add(-48 * time.Hour),
		"1462104000":           now,
		"2016-05-01T12:00:00Z": now,
	} {
		if got, err := ParseTime(in); err != nil || !got.Equal(out) {
			t.Errorf("ParseTime(%q) = %v, %v; expected %v", in, got, err, out)
		}
	}
	if got, err := ParseTime("2016-05-01"); err != nil || got.Day() != 1 || got.Hour() != 0 {
		t.Errorf("ParseTime(date): %v %v", got, err)
	}
	if _, err := ParseTime("yesterday-ish"); err == nil {
		t.Errorf("ParseTime: expected an error")
	}
}
