// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adc

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestSimValues(t *testing.T) {
	gen := func(seed uint64, n int) []uint32 {
		sim := NewSim(seed, time.Millisecond)
		vs := make([]uint32, n)
		for i := range vs {
			v, err := sim.Poll()
			if err != nil {
				t.Fatalf("could not poll: %+v", err)
			}
			vs[i] = v
			_ = sim.Ack()
		}
		return vs
	}

	vs1 := gen(1234, 1000)
	vs2 := gen(1234, 1000)
	if !reflect.DeepEqual(vs1, vs2) {
		t.Fatalf("simulator is not reproducible")
	}

	var peak int
	for _, v := range vs1 {
		if v > 0x1fff {
			t.Fatalf("value out of range: 0x%x", v)
		}
		if 1500 < v && v < 2600 {
			peak++
		}
	}
	if peak < len(vs1)/2 {
		t.Fatalf("invalid spectrum: %d/%d events in peak", peak, len(vs1))
	}
}

func TestSimPending(t *testing.T) {
	sim := NewSim(1, time.Millisecond)
	v1, _ := sim.Poll()
	v2, _ := sim.Poll()
	if v1 != v2 {
		t.Fatalf("pending conversion changed without ack: %d != %d", v1, v2)
	}
}

func TestSimArm(t *testing.T) {
	sim := NewSim(1, 100*time.Microsecond)

	var n atomic.Int64
	err := sim.Arm(func() { n.Add(1) })
	if err != nil {
		t.Fatalf("could not arm simulator: %+v", err)
	}
	if err := sim.Arm(func() {}); err == nil {
		t.Fatalf("expected an error arming twice")
	}

	deadline := time.Now().Add(5 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	err = sim.Disarm()
	if err != nil {
		t.Fatalf("could not disarm simulator: %+v", err)
	}
	if n.Load() < 3 {
		t.Fatalf("too few triggers: %d", n.Load())
	}

	cur := n.Load()
	time.Sleep(2 * time.Millisecond)
	if got := n.Load(); got != cur {
		t.Fatalf("trigger invoked after disarm")
	}

	if err := NewSim(1, 0).Arm(func() {}); err == nil {
		t.Fatalf("expected an error for an invalid period")
	}
}

func TestSimReady(t *testing.T) {
	sim := NewSim(1, 100*time.Microsecond)
	if ready, _ := sim.Ready(); ready {
		t.Fatalf("new simulator should not have a pending conversion")
	}

	fired := make(chan struct{}, 1)
	err := sim.Arm(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("could not arm simulator: %+v", err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("simulator did not trigger")
	}
	if err := sim.Disarm(); err != nil {
		t.Fatalf("could not disarm simulator: %+v", err)
	}

	if ready, _ := sim.Ready(); !ready {
		t.Fatalf("unacknowledged conversion should be pending")
	}
	v1, _ := sim.Poll()
	v2, _ := sim.Poll()
	if v1 != v2 {
		t.Fatalf("pending conversion changed without ack: %d != %d", v1, v2)
	}

	_ = sim.Ack()
	if ready, _ := sim.Ready(); ready {
		t.Fatalf("acknowledged conversion should not be pending")
	}
}
