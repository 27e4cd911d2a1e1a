// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a log that was torn down.
	ErrClosed = errors.New("tracelog: log closed")

	// ErrNotAttached is returned when a client detaches without a matching attach.
	ErrNotAttached = errors.New("tracelog: detach without attach")

	// ErrRecordSize is returned when a pushed record does not match the entry size.
	ErrRecordSize = errors.New("tracelog: record size mismatch")

	// ErrShortBuffer is returned when a read buffer cannot hold a single record.
	ErrShortBuffer = errors.New("tracelog: buffer smaller than one record")

	// ErrDuplicateName is returned when registering two logs with the same name.
	ErrDuplicateName = errors.New("tracelog: duplicate log name")
)

// ResourceError reports a failure to acquire storage for a log.
// No usable log exists after a ResourceError.
type ResourceError struct {
	Name string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("tracelog %q: %v", e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
