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

package receiver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kisielk/whisper-go/whisper"
)

// WhisperName is the metric name of a whisper file under root, with
// slashes turned into dots: root/servers/web1/cpu.wsp becomes
// "servers.web1.cpu".
func WhisperName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%q is not under %q", path, root)
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".wsp")
	return strings.Replace(rel, "/", ".", -1), nil
}

// ReadWhisper returns every point stored in the whisper file at path
// as data points named name, oldest first. Archives are read from
// high to low resolution and a lower resolution archive only
// contributes points older than everything seen so far, so there are
// never two points with the same time.
func ReadWhisper(path, name string) ([]*IncomingDP, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	w, err := whisper.OpenWhisper(fd)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("whisper file %q: %w", path, err)
	}
	defer w.Close()

	points := make(map[uint32]float64)
	var earliestArchiveTimestamp uint32

	for i, archive := range w.Header.Archives {
		allPoints, err := w.DumpArchive(i)
		if err != nil {
			return nil, fmt.Errorf("whisper file %q archive %d: %w", path, i, err)
		}

		var earliest, latest uint32
		for _, p := range allPoints {
			// a zero timestamp is a slot that was never written
			if p.Timestamp == 0 {
				continue
			}
			if earliestArchiveTimestamp != 0 && p.Timestamp >= earliestArchiveTimestamp {
				continue
			}
			points[p.Timestamp] = p.Value
			if earliest == 0 || p.Timestamp < earliest {
				earliest = p.Timestamp
			}
			if p.Timestamp > latest {
				latest = p.Timestamp
			}
		}
		if earliest == 0 {
			continue
		}

		// points older than the retention of the archive are leftovers
		retention := archive.SecondsPerPoint * archive.Points
		if latest > retention && earliest < latest-retention {
			earliest = latest - retention
			for ts := range points {
				if ts < earliest {
					delete(points, ts)
				}
			}
		}
		if earliestArchiveTimestamp == 0 || earliest < earliestArchiveTimestamp {
			earliestArchiveTimestamp = earliest
		}
	}

	keys := make([]uint32, 0, len(points))
	for ts := range points {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	result := make([]*IncomingDP, len(keys))
	for i, ts := range keys {
		result[i] = &IncomingDP{Name: name, Time: time.Unix(int64(ts), 0), Value: points[ts]}
	}
	return result, nil
}
