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

// Package misc is misc stuff.
package misc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	sanitizeRegexSpace       = regexp.MustCompile("\\s+")
	sanitizeRegexSlash       = regexp.MustCompile("/")
	sanitizeRegexNonAlphaNum = regexp.MustCompile("[^a-zA-Z_\\-0-9\\.]")
)

// SanitizeName makes a metric name safe: whitespace becomes "_", a
// slash becomes "-", anything else that is not alphanumeric, "_", "-"
// or "." is dropped.
func SanitizeName(name string) string {
	name = sanitizeRegexSpace.ReplaceAllString(name, "_")
	name = sanitizeRegexSlash.ReplaceAllString(name, "-")
	return sanitizeRegexNonAlphaNum.ReplaceAllString(name, "")
}

// BetterParseDuration is time.ParseDuration which also understands
// "min", "hour", "d" (days), "w" (weeks), "mon" (30 days) and "y"
// (365 days).
func BetterParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	multiple := func(suffix string, unit time.Duration) (time.Duration, bool, error) {
		if !strings.HasSuffix(s, suffix) {
			return 0, false, nil
		}
		n, err := strconv.ParseFloat(s[0:len(s)-len(suffix)], 64)
		if err != nil {
			return 0, true, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n * float64(unit)), true, nil
	}

	switch {
	case strings.HasSuffix(s, "min"):
		s = s[0 : len(s)-2] // min -> m
	case strings.HasSuffix(s, "hour"):
		s = s[0 : len(s)-3] // hour -> h
	default:
		for _, u := range []struct {
			suffix string
			unit   time.Duration
		}{
			{"mon", 30 * 24 * time.Hour},
			{"d", 24 * time.Hour},
			{"w", 168 * time.Hour},
			{"y", 8760 * time.Hour},
		} {
			if d, ok, err := multiple(u.suffix, u.unit); ok {
				return d, err
			}
		}
	}
	return time.ParseDuration(s)
}

var timeNow = func() time.Time {
	return time.Now()
}

// ParseTime understands "now", a duration relative to now ("-1h",
// "-2d"), Unix seconds, RFC3339 and "2006-01-02 15:04:05" / "2006-01-02"
// in local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "now" {
		return timeNow(), nil
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		if d, err := BetterParseDuration(s); err == nil {
			return timeNow().Add(d), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
