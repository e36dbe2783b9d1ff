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

package rrd

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("invalid database definition")
	ErrReadOnly           = errors.New("database is open read-only")
	ErrClosed             = errors.New("database is closed")
	ErrNameTooLong        = errors.New("name too long")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrUnknownDataSource  = errors.New("no such data source")
	ErrUnknownArchive     = errors.New("no such archive")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrExists             = errors.New("database already exists")
)

// storageError wraps an I/O problem so that it matches both
// ErrStorageUnavailable and the underlying cause.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrStorageUnavailable, e.err)
}

func (e *storageError) Is(target error) bool { return target == ErrStorageUnavailable }

func (e *storageError) Unwrap() error { return e.err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}
