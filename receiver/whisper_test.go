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
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

type whisperPoint struct {
	Timestamp uint32
	Value     float64
}

// writeWhisper writes a whisper file with one archive per element of
// archives, each holding exactly the points given.
func writeWhisper(t *testing.T, path string, secondsPerPoint []uint32, archives [][]whisperPoint) {
	t.Helper()
	var b bytes.Buffer
	be := binary.BigEndian
	headerSize := 16 + 12*len(archives)
	binary.Write(&b, be, uint32(1))                           // aggregation: average
	binary.Write(&b, be, secondsPerPoint[len(archives)-1]*10) // max retention
	binary.Write(&b, be, float32(0.5))                        // xff
	binary.Write(&b, be, uint32(len(archives)))
	offset := uint32(headerSize)
	for i, pts := range archives {
		binary.Write(&b, be, offset)
		binary.Write(&b, be, secondsPerPoint[i])
		binary.Write(&b, be, uint32(len(pts)))
		offset += uint32(12 * len(pts))
	}
	for _, pts := range archives {
		for _, p := range pts {
			binary.Write(&b, be, p)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func Test_WhisperName(t *testing.T) {
	name, err := WhisperName("/opt/graphite/whisper", "/opt/graphite/whisper/servers/web1/cpu.wsp")
	if err != nil || name != "servers.web1.cpu" {
		t.Errorf("WhisperName: %q %v", name, err)
	}
	if _, err := WhisperName("/opt/graphite/whisper", "/tmp/cpu.wsp"); err == nil {
		t.Errorf("WhisperName outside of root: expected an error")
	}
}

func Test_ReadWhisper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web1", "cpu.wsp")
	writeWhisper(t, path, []uint32{10, 60}, [][]whisperPoint{
		{{1010, 2}, {1000, 1}, {0, 0}},
		{{900, 9}, {1020, 5}},
	})

	dps, err := ReadWhisper(path, "web1.cpu")
	if err != nil {
		t.Fatalf("ReadWhisper: %v", err)
	}
	expect := []whisperPoint{{900, 9}, {1000, 1}, {1010, 2}}
	if len(dps) != len(expect) {
		t.Fatalf("got %d data points, expected %d: %v", len(dps), len(expect), dps)
	}
	for i, dp := range dps {
		if dp.Name != "web1.cpu" || dp.Time.Unix() != int64(expect[i].Timestamp) || dp.Value != expect[i].Value {
			t.Errorf("%d: %+v, expected %+v", i, dp, expect[i])
		}
	}

	if _, err := ReadWhisper(filepath.Join(t.TempDir(), "missing.wsp"), "x.y"); err == nil {
		t.Errorf("missing file: expected an error")
	}
}
