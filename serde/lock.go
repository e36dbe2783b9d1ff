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

package serde

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tgres/rrdb/logging"
)

// LockPath is the sidecar file used to lock the database at path.
func LockPath(path string) string { return path + ".lock" }

// Lock is a held lock on a database file. An exclusive lock writes
// the pid of the holder and a random token into the lock file, which
// is only informational.
type Lock struct {
	f         *os.File
	path      string
	exclusive bool
	Token     string
}

// AcquireLock locks the database at path, retrying until timeout has
// passed. A zero timeout means a single attempt.
func AcquireLock(path string, exclusive bool, timeout time.Duration) (*Lock, error) {
	lp := LockPath(path)
	deadline := time.Now().Add(timeout)
	wait := 5 * time.Millisecond
	attempts := 0
	for {
		f, ok, err := tryLock(lp, exclusive)
		if err != nil {
			return nil, err
		}
		if ok {
			l := &Lock{f: f, path: lp, exclusive: exclusive}
			if exclusive {
				l.Token = uuid.NewString()
				if err := l.stamp(); err != nil {
					l.Release()
					return nil, err
				}
			}
			return l, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		if attempts++; attempts == 1 {
			logging.Get().Debug().Str("path", path).Dur("timeout", timeout).Msg("database is locked, waiting")
		}
		time.Sleep(wait)
		if wait < 100*time.Millisecond {
			wait *= 2
		}
	}
}

func (l *Lock) stamp() error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	_, err := l.f.WriteAt([]byte(fmt.Sprintf("%d %s\n", os.Getpid(), l.Token)), 0)
	return err
}

// Release gives up the lock. The lock file itself is left in place.
// Calling Release more than once is harmless.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	err := release(l.f, l.path)
	l.f = nil
	return err
}
