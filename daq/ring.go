// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"sync/atomic"
)

// ring is a fixed-capacity circular store of events.
//
// One slot is always left unused so that r == w means empty and
// (w+1)%n == r means full.
// w is only stored by the producer, r only by the consumer.
type ring struct {
	evts []Event
	w    atomic.Uint32 // write cursor
	r    atomic.Uint32 // read cursor
}

// NewRing creates a ring of n slots (n-1 usable) and returns its only
// producer and consumer handles.
func NewRing(n int) (*Producer, *Consumer, error) {
	if n < 2 {
		return nil, nil, &Error{
			Op:   "new ring",
			Kind: ErrInvalidArgument,
			Err:  fmt.Errorf("ring size %d < 2", n),
		}
	}
	rb := &ring{evts: make([]Event, n)}
	return &Producer{rb: rb}, &Consumer{rb: rb}, nil
}

func (rb *ring) size() uint32 { return uint32(len(rb.evts)) }

func (rb *ring) occupancy() int {
	var (
		n = rb.size()
		w = rb.w.Load()
		r = rb.r.Load()
	)
	return int((w + n - r) % n)
}

func (rb *ring) full() bool {
	return (rb.w.Load()+1)%rb.size() == rb.r.Load()
}

func (rb *ring) empty() bool {
	return rb.r.Load() == rb.w.Load()
}

// reset discards the content of the ring.
// It must only be called while neither handle is in use.
func (rb *ring) reset() {
	rb.r.Store(0)
	rb.w.Store(0)
}

// Producer is the write side of a ring.
// A Producer must not be used from more than one goroutine at a time.
type Producer struct {
	rb *ring
}

// TryPush stores evt at the write cursor and publishes it.
// TryPush returns false, leaving the ring untouched, if the ring is full.
func (p *Producer) TryPush(evt Event) bool {
	var (
		rb = p.rb
		w  = rb.w.Load()
		nw = (w + 1) % rb.size()
	)
	if nw == rb.r.Load() {
		return false
	}
	rb.evts[w] = evt
	rb.w.Store(nw)
	return true
}

// Len returns the number of events stored in the ring.
func (p *Producer) Len() int { return p.rb.occupancy() }

// Cap returns the number of usable slots of the ring.
func (p *Producer) Cap() int { return len(p.rb.evts) - 1 }

// Full reports whether the next push would be rejected.
func (p *Producer) Full() bool { return p.rb.full() }

// Empty reports whether the ring holds no event.
func (p *Producer) Empty() bool { return p.rb.empty() }

// Consumer is the read side of a ring.
// A Consumer must not be used from more than one goroutine at a time.
type Consumer struct {
	rb *ring
}

// Drain copies min(Len(), len(dst)) events, oldest first, into dst and
// releases their slots.
// Drain never blocks and returns 0 on an empty ring.
func (c *Consumer) Drain(dst []Event) int {
	var (
		rb = c.rb
		n  = rb.size()
		r  = rb.r.Load()
		w  = rb.w.Load()

		avail = (w + n - r) % n
		count = uint32(len(dst))
	)
	if avail < count {
		count = avail
	}
	if count == 0 {
		return 0
	}

	if r+count <= n {
		copy(dst[:count], rb.evts[r:r+count])
	} else {
		// copy range wraps past the end of the slots.
		head := n - r
		copy(dst[:head], rb.evts[r:])
		copy(dst[head:count], rb.evts[:count-head])
	}

	rb.r.Store((r + count) % n)
	return int(count)
}

// Len returns the number of events stored in the ring.
func (c *Consumer) Len() int { return c.rb.occupancy() }

// Cap returns the number of usable slots of the ring.
func (c *Consumer) Cap() int { return len(c.rb.evts) - 1 }

// Full reports whether the ring has no free slot.
func (c *Consumer) Full() bool { return c.rb.full() }

// Empty reports whether the ring holds no event.
func (c *Consumer) Empty() bool { return c.rb.empty() }
