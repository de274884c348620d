// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"sync/atomic"
)

// State is the state of an acquisition session.
type State int32

const (
	Idle    State = iota // no acquisition, trigger disarmed
	Running              // trigger armed, events are buffered
	Hanging              // ring found full, events are not produced until drained
)

func (st State) String() string {
	switch st {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Hanging:
		return "hanging"
	default:
		return fmt.Sprintf("State(%d)", int32(st))
	}
}

// stateVar is a State shared between the trigger context, the reader and
// the control functions.
type stateVar struct {
	v atomic.Int32
}

func (sv *stateVar) load() State    { return State(sv.v.Load()) }
func (sv *stateVar) store(st State) { sv.v.Store(int32(st)) }

func (sv *stateVar) cas(old, st State) bool {
	return sv.v.CompareAndSwap(int32(old), int32(st))
}

func (sv *stateVar) swap(st State) State {
	return State(sv.v.Swap(int32(st)))
}
