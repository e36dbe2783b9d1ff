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
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func Test_RemoveUnlinksHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rrdb")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	// a process that opened the lock file and is about to flock it
	waiter, err := os.OpenFile(LockPath(path), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer waiter.Close()

	if err := Remove(path, 0); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	l, err := AcquireLock(path, true, -1)
	if err != nil {
		t.Fatalf("AcquireLock after Remove: %v", err)
	}
	defer l.Release()

	// the old file is no longer locked by anyone, but it is not the
	// lock file either
	if err := unix.Flock(int(waiter.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		t.Fatalf("flock of the unlinked file: %v", err)
	}
	if stale, err := replaced(waiter, LockPath(path)); err != nil || !stale {
		t.Errorf("unlinked lock file not detected: %v %v", stale, err)
	}
	if stale, err := replaced(l.f, LockPath(path)); err != nil || stale {
		t.Errorf("current lock file reported as replaced: %v %v", stale, err)
	}

	if _, err := AcquireLock(path, true, -1); !errors.Is(err, ErrLocked) {
		t.Errorf("second exclusive lock: %v", err)
	}
}
