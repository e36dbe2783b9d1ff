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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	pickle "github.com/hydrogen18/stalecucumber"

	"github.com/tgres/rrdb/misc"
)

// ParseGraphiteLine parses one line of the graphite plaintext
// protocol: "name value timestamp". A timestamp of -1 means now.
func ParseGraphiteLine(line string) (*IncomingDP, error) {
	var (
		name   string
		tstamp int64
		value  float64
	)

	if n, err := fmt.Sscanf(line, "%s %f %d", &name, &value, &tstamp); n != 3 || err != nil {
		return nil, fmt.Errorf("error %v scanning input: %q", err, line)
	}

	var t time.Time
	if tstamp == -1 { // https://github.com/graphite-project/carbon/issues/54
		t = timeNow()
	} else {
		t = time.Unix(tstamp, 0)
	}
	return &IncomingDP{Name: misc.SanitizeName(name), Time: t, Value: value}, nil
}

// ReadGraphiteText calls fn for every well-formed line read from r
// and returns the number of lines it could not parse. Blank lines are
// skipped.
func ReadGraphiteText(r io.Reader, fn func(*IncomingDP)) (bad int, err error) {
	// We use Scanner, becase it has a MaxScanTokenSize of 64K
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		dp, err := ParseGraphiteLine(string(line))
		if err != nil {
			logger().Debug().Err(err).Msg("bad graphite line")
			bad++
			continue
		}
		fn(dp)
	}
	return bad, sc.Err()
}

// maxPickleFrame is the largest pickle frame accepted.
const maxPickleFrame = 1 << 24

// ReadGraphitePickle reads graphite pickle frames from r until EOF.
// Every frame is a big-endian uint32 length followed by a pickled
// list of (name, (timestamp, value)) tuples.
func ReadGraphitePickle(r io.Reader, fn func(*IncomingDP)) error {
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if length > maxPickleFrame {
			return fmt.Errorf("pickle frame of %d bytes is too large", length)
		}
		buff := make([]byte, length)
		if _, err := io.ReadFull(r, buff); err != nil {
			return fmt.Errorf("incomplete pickle frame: %w", err)
		}
		dps, err := parsePickle(buff)
		if err != nil {
			return err
		}
		for _, dp := range dps {
			fn(dp)
		}
	}
}

func parsePickle(buff []byte) ([]*IncomingDP, error) {
	var (
		name             string
		tstamp, intValue int64
		value            float64
		err              error
		items, itemSlice []interface{}
		dp               []interface{}
	)

	if items, err = pickle.ListOrTuple(pickle.Unpickle(bytes.NewBuffer(buff))); err != nil {
		return nil, err
	}

	result := make([]*IncomingDP, 0, len(items))
	for _, item := range items {
		if itemSlice, err = pickle.ListOrTuple(item, nil); err != nil {
			return nil, err
		}
		if len(itemSlice) != 2 {
			return nil, fmt.Errorf("item wrong length: %d", len(itemSlice))
		}
		name, err = pickle.String(itemSlice[0], nil)
		dp, err = pickle.ListOrTuple(itemSlice[1], err)
		if err != nil {
			return nil, err
		}
		if len(dp) != 2 {
			return nil, fmt.Errorf("dp wrong length: %d", len(dp))
		}
		if tstamp, err = pickle.Int(dp[0], nil); err != nil {
			return nil, err
		}
		if value, err = pickle.Float(dp[1], nil); err != nil {
			var wrongType pickle.WrongTypeError
			if !errors.As(err, &wrongType) {
				return nil, err
			}
			if intValue, err = pickle.Int(dp[1], nil); err != nil {
				return nil, err
			}
			value = float64(intValue)
		}
		result = append(result, &IncomingDP{Name: misc.SanitizeName(name), Time: time.Unix(tstamp, 0), Value: value})
	}
	return result, nil
}
