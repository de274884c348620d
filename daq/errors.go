// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a read with a zero-capacity destination,
	// a read before any start, or a start on a running device.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInterrupted reports a blocking read cancelled by its caller.
	ErrInterrupted = errors.New("interrupted")

	// ErrHardwareFault reports a failure of the hardware collaborator.
	// A hardware fault terminates the acquisition session.
	ErrHardwareFault = errors.New("hardware fault")
)

// Error describes a failed device operation.
type Error struct {
	Op   string // operation that failed (read, start, poll, ...)
	Kind error  // one of ErrInvalidArgument, ErrInterrupted, ErrHardwareFault
	Err  error  // underlying error, if any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("daq: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("daq: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }
