// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"errors"
	"reflect"
	"runtime"
	"testing"
)

func evtOf(i int) Event {
	return Event{Sec: int32(i), USec: int32(i % 1000000), Value: uint32(i)}
}

func TestNewRing(t *testing.T) {
	for _, tc := range []struct {
		n   int
		err bool
	}{
		{n: -1, err: true},
		{n: 0, err: true},
		{n: 1, err: true},
		{n: 2},
		{n: DefaultBufferSize},
	} {
		p, c, err := NewRing(tc.n)
		switch {
		case tc.err:
			if err == nil {
				t.Fatalf("n=%d: expected an error", tc.n)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("n=%d: invalid error: %+v", tc.n, err)
			}
			continue
		case err != nil:
			t.Fatalf("n=%d: could not create ring: %+v", tc.n, err)
		}
		if got, want := p.Cap(), tc.n-1; got != want {
			t.Fatalf("n=%d: invalid producer capacity: got=%d, want=%d", tc.n, got, want)
		}
		if got, want := c.Cap(), tc.n-1; got != want {
			t.Fatalf("n=%d: invalid consumer capacity: got=%d, want=%d", tc.n, got, want)
		}
		if !p.Empty() || !c.Empty() {
			t.Fatalf("n=%d: new ring should be empty", tc.n)
		}
	}
}

func TestRingFIFO(t *testing.T) {
	// ops: positive values push that many events, negative values drain
	// with a destination of that many slots.
	for _, tc := range []struct {
		name string
		size int
		ops  []int
	}{
		{name: "simple", size: 8, ops: []int{3, -3}},
		{name: "partial", size: 8, ops: []int{5, -2, 2, -1, -10}},
		{name: "wrap", size: 5, ops: []int{4, -3, 3, -4, 2, -1, 3, -5}},
		{name: "wrap-one", size: 2, ops: []int{1, -1, 1, -2, 1, -1}},
		{name: "overrun", size: 4, ops: []int{6, -1, 2, -3, 5, -2, -2}},
		{name: "many", size: 7, ops: []int{
			6, -4, 3, -1, 2, -6, 5, -5, 1, -1, 6, -2, 2, -9,
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, c, err := NewRing(tc.size)
			if err != nil {
				t.Fatalf("could not create ring: %+v", err)
			}
			var (
				next  = 0
				model []Event
			)
			for i, op := range tc.ops {
				switch {
				case op > 0:
					for j := 0; j < op; j++ {
						evt := evtOf(next)
						next++
						full := len(model) == p.Cap()
						if got, want := p.TryPush(evt), !full; got != want {
							t.Fatalf("op[%d]: invalid push status: got=%v, want=%v", i, got, want)
						}
						if !full {
							model = append(model, evt)
						}
					}
				default:
					dst := make([]Event, -op)
					n := c.Drain(dst)
					want := len(model)
					if want > len(dst) {
						want = len(dst)
					}
					if n != want {
						t.Fatalf("op[%d]: invalid drain count: got=%d, want=%d", i, n, want)
					}
					if got, want := dst[:n], model[:n]; !reflect.DeepEqual(got, want) {
						t.Fatalf("op[%d]: invalid events:\ngot= %v\nwant=%v", i, got, want)
					}
					model = model[n:]
				}
				if got, want := c.Len(), len(model); got != want {
					t.Fatalf("op[%d]: invalid occupancy: got=%d, want=%d", i, got, want)
				}
				if got, want := p.Full(), len(model) == p.Cap(); got != want {
					t.Fatalf("op[%d]: invalid full status: got=%v, want=%v", i, got, want)
				}
			}
		})
	}
}

func TestRingFull(t *testing.T) {
	p, c, err := NewRing(4)
	if err != nil {
		t.Fatalf("could not create ring: %+v", err)
	}
	for i := 0; i < 3; i++ {
		if !p.TryPush(evtOf(i)) {
			t.Fatalf("could not push event %d", i)
		}
	}
	if !p.Full() || !c.Full() {
		t.Fatalf("ring should be full")
	}
	if p.TryPush(evtOf(42)) {
		t.Fatalf("push into a full ring should fail")
	}

	dst := make([]Event, 10)
	n := c.Drain(dst)
	if got, want := dst[:n], []Event{evtOf(0), evtOf(1), evtOf(2)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("full ring was overwritten:\ngot= %v\nwant=%v", got, want)
	}
}

func TestRingDrainEmpty(t *testing.T) {
	p, c, err := NewRing(8)
	if err != nil {
		t.Fatalf("could not create ring: %+v", err)
	}
	dst := make([]Event, 4)
	if got, want := c.Drain(dst), 0; got != want {
		t.Fatalf("invalid drain count: got=%d, want=%d", got, want)
	}

	for i := 0; i < 3; i++ {
		p.TryPush(evtOf(i))
	}
	dst = make([]Event, 16)
	if got, want := c.Drain(dst), 3; got != want {
		t.Fatalf("invalid drain count: got=%d, want=%d", got, want)
	}
	if !c.Empty() {
		t.Fatalf("ring should be empty")
	}
}

func TestRingRoundTrip(t *testing.T) {
	const n = 1024
	p, c, err := NewRing(n)
	if err != nil {
		t.Fatalf("could not create ring: %+v", err)
	}

	// move the cursors away from the start of the slots.
	for i := 0; i < n/3; i++ {
		p.TryPush(Event{})
	}
	c.Drain(make([]Event, n))

	want := make([]Event, n-1)
	for i := range want {
		want[i] = evtOf(i)
		if !p.TryPush(want[i]) {
			t.Fatalf("could not push event %d", i)
		}
	}
	if !p.Full() {
		t.Fatalf("ring should be full")
	}

	dst := make([]Event, n)
	if got, want := c.Drain(dst), n-1; got != want {
		t.Fatalf("invalid drain count: got=%d, want=%d", got, want)
	}
	if !reflect.DeepEqual(dst[:n-1], want) {
		t.Fatalf("round trip failed")
	}
}

func TestRingConcurrent(t *testing.T) {
	const total = 20000
	p, c, err := NewRing(64)
	if err != nil {
		t.Fatalf("could not create ring: %+v", err)
	}

	go func() {
		for i := 0; i < total; {
			if !p.TryPush(evtOf(i)) {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()

	var (
		dst  = make([]Event, 17)
		next = 0
	)
	for next < total {
		n := c.Drain(dst)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		for _, evt := range dst[:n] {
			if got, want := evt, evtOf(next); got != want {
				t.Fatalf("invalid event: got=%v, want=%v", got, want)
			}
			next++
		}
	}
}
