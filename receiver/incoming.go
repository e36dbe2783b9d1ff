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

// Package receiver gets data points into databases: it decodes
// graphite text and pickle streams and whisper files, routes the
// resulting data points to database files, and samples host metrics.
package receiver

import (
	"strings"
	"time"
)

// IncomingDP is a data point as received, before it is routed. Name
// is "<database>.<datasource>".
type IncomingDP struct {
	Name  string
	Time  time.Time
	Value float64
}

// SplitName splits a metric name at the last dot into a database and
// a data source name, so "servers.web1.cpu" is data source "cpu" of
// database "servers.web1".
func SplitName(name string) (db, ds string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

var timeNow = func() time.Time {
	return time.Now()
}
