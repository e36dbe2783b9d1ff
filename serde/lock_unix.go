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

//go:build unix

package serde

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// tryLock takes an advisory flock on the lock file without blocking.
// flock locks belong to the open file, so two opens within the same
// process exclude each other just like two processes do.
func tryLock(lp string, exclusive bool) (*os.File, bool, error) {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		f, err := os.OpenFile(lp, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, false, err
		}
		if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
				return nil, false, nil
			}
			return nil, false, err
		}
		// Remove unlinks the lock file while holding the lock. A lock
		// on an unlinked file excludes no one, start over.
		stale, err := replaced(f, lp)
		if err != nil || stale {
			release(f, lp)
			if err != nil {
				return nil, false, err
			}
			continue
		}
		return f, true, nil
	}
}

// replaced tells whether lp no longer names the open file f.
func replaced(f *os.File, lp string) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	pi, err := os.Stat(lp)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !os.SameFile(fi, pi), nil
}

func release(f *os.File, _ string) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
