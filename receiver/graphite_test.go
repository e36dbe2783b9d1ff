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
	"math"
	"strings"
	"testing"
	"time"
)

func Test_SplitName(t *testing.T) {
	for in, out := range map[string][2]string{
		"web1.cpu":         {"web1", "cpu"},
		"servers.web1.cpu": {"servers.web1", "cpu"},
	} {
		db, ds, ok := SplitName(in)
		if !ok || db != out[0] || ds != out[1] {
			t.Errorf("SplitName(%q) = %q, %q, %v", in, db, ds, ok)
		}
	}
	for _, in := range []string{"", "cpu", ".cpu", "web1."} {
		if _, _, ok := SplitName(in); ok {
			t.Errorf("SplitName(%q): expected not ok", in)
		}
	}
}

func Test_ParseGraphiteLine(t *testing.T) {
	saveTimeNow := timeNow
	defer func() { timeNow = saveTimeNow }()
	now := time.Unix(1464000123, 0)
	timeNow = func() time.Time { return now }

	dp, err := ParseGraphiteLine("web1.cpu 12.5 1464000000")
	if err != nil {
		t.Fatal(err)
	}
	if dp.Name != "web1.cpu" || dp.Value != 12.5 || !dp.Time.Equal(time.Unix(1464000000, 0)) {
		t.Errorf("dp: %+v", dp)
	}

	dp, err = ParseGraphiteLine("web1.load/avg 3 -1")
	if err != nil {
		t.Fatal(err)
	}
	if dp.Name != "web1.load-avg" || !dp.Time.Equal(now) {
		t.Errorf("sanitized name and now: %+v", dp)
	}

	for _, line := range []string{"", "web1.cpu", "web1.cpu x 1464000000", "web1.cpu 1 yesterday"} {
		if _, err := ParseGraphiteLine(line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}
}

func Test_ReadGraphiteText(t *testing.T) {
	in := "a.x 1 1464000000\n\nnonsense\na.y 2 1464000010\r\n  \na.x NaN 1464000020\n"
	var got []*IncomingDP
	bad, err := ReadGraphiteText(strings.NewReader(in), func(dp *IncomingDP) { got = append(got, dp) })
	if err != nil {
		t.Fatal(err)
	}
	if bad != 1 {
		t.Errorf("bad lines: %d, expected 1", bad)
	}
	if len(got) != 3 || got[0].Name != "a.x" || got[1].Name != "a.y" || !math.IsNaN(got[2].Value) {
		t.Errorf("got %v", got)
	}
}

type pickleItem struct {
	name  string
	ts    int32
	value interface{} // float64 or int32
}

// picklePayload builds what graphite sends: a protocol 2 pickle of
// [(name, (ts, value)), ...], prefixed by its length.
func picklePayload(items ...pickleItem) []byte {
	var p bytes.Buffer
	p.Write([]byte{0x80, 2}) // PROTO 2
	p.WriteByte(']')         // EMPTY_LIST
	p.WriteByte('(')         // MARK
	for _, it := range items {
		p.WriteByte('X') // BINUNICODE
		binary.Write(&p, binary.LittleEndian, uint32(len(it.name)))
		p.WriteString(it.name)
		p.WriteByte('J') // BININT
		binary.Write(&p, binary.LittleEndian, it.ts)
		switch v := it.value.(type) {
		case float64:
			p.WriteByte('G') // BINFLOAT
			binary.Write(&p, binary.BigEndian, v)
		case int32:
			p.WriteByte('J')
			binary.Write(&p, binary.LittleEndian, v)
		}
		p.WriteByte(0x86) // TUPLE2 (ts, value)
		p.WriteByte(0x86) // TUPLE2 (name, (ts, value))
	}
	p.WriteByte('e') // APPENDS
	p.WriteByte('.') // STOP

	var frame bytes.Buffer
	binary.Write(&frame, binary.BigEndian, uint32(p.Len()))
	frame.Write(p.Bytes())
	return frame.Bytes()
}

func Test_ReadGraphitePickle(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(picklePayload(
		pickleItem{"web1.cpu", 1464000000, 12.5},
		pickleItem{"web1.mem", 1464000000, int32(4096)},
	))
	stream.Write(picklePayload(pickleItem{"web 2.cpu", 1464000010, 1.0}))

	var got []*IncomingDP
	if err := ReadGraphitePickle(&stream, func(dp *IncomingDP) { got = append(got, dp) }); err != nil {
		t.Fatalf("ReadGraphitePickle: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d data points, expected 3", len(got))
	}
	if got[0].Name != "web1.cpu" || got[0].Value != 12.5 || got[0].Time.Unix() != 1464000000 {
		t.Errorf("0: %+v", got[0])
	}
	if got[1].Name != "web1.mem" || got[1].Value != 4096 {
		t.Errorf("integer value: %+v", got[1])
	}
	if got[2].Name != "web_2.cpu" || got[2].Time.Unix() != 1464000010 {
		t.Errorf("second frame: %+v", got[2])
	}
}

func Test_ReadGraphitePickle_errors(t *testing.T) {
	full := picklePayload(pickleItem{"web1.cpu", 1464000000, 12.5})
	for name, in := range map[string][]byte{
		"truncated frame":  full[:len(full)-3],
		"truncated length": {0, 0},
		"too large":        {0xff, 0xff, 0xff, 0xff},
		"not a pickle":     append([]byte{0, 0, 0, 3}, "abc"...),
	} {
		err := ReadGraphitePickle(bytes.NewReader(in), func(*IncomingDP) {})
		if err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
