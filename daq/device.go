// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Device buffers the events produced by a Hardware collaborator until they
// are read by a consumer.
//
// Start, Stop, State, Len and Cap may be called from any goroutine.
// Read calls are serialized.
type Device struct {
	name    string
	msg     *log.Logger
	now     func() time.Time
	hw      Hardware
	onFault func(err error)
	metrics *metrics

	mu    sync.Mutex // guards start/stop and the hardware resource
	armed bool       // whether the trigger is installed on hw

	rmu  sync.Mutex // serializes consumers
	prod *Producer  // used by the trigger, and by the reader during recovery
	cons *Consumer

	state   stateVar
	started atomic.Bool
	notify  chan struct{}
	fault   atomic.Pointer[Error]
}

// New creates a new idle device acquiring from hw.
//
// When WithMetrics is used, the metrics of the device are registered with
// the provided registerer, labeled with the device name.
func New(hw Hardware, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if hw == nil {
		return nil, &Error{
			Op:   "new",
			Kind: ErrInvalidArgument,
			Err:  errors.New("nil hardware"),
		}
	}

	prod, cons, err := NewRing(cfg.size)
	if err != nil {
		return nil, err
	}

	dev := &Device{
		name:    cfg.name,
		msg:     cfg.msg,
		now:     cfg.now,
		hw:      hw,
		onFault: cfg.onFault,
		prod:    prod,
		cons:    cons,
		notify:  make(chan struct{}, 1),
	}
	dev.metrics = newMetrics(cfg.reg, cfg.name, func() float64 {
		return float64(dev.cons.Len())
	})

	return dev, nil
}

// Name returns the name of the device.
func (dev *Device) Name() string { return dev.name }

// State returns the current acquisition state.
func (dev *Device) State() State { return dev.state.load() }

// Len returns the number of buffered events.
func (dev *Device) Len() int { return dev.cons.Len() }

// Cap returns the maximum number of buffered events.
func (dev *Device) Cap() int { return dev.cons.Cap() }

// Err returns the hardware fault that aborted the last session, if any.
func (dev *Device) Err() error {
	if err := dev.fault.Load(); err != nil {
		return err
	}
	return nil
}

// Start starts a new acquisition session.
// Buffered events of a previous session are discarded.
func (dev *Device) Start() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if st := dev.state.load(); st != Idle {
		return &Error{
			Op:   "start",
			Kind: ErrInvalidArgument,
			Err:  fmt.Errorf("device is %v", st),
		}
	}

	if dev.armed {
		// the previous session was aborted by a hardware fault.
		err := dev.hw.Disarm()
		dev.armed = false
		if err != nil {
			return &Error{Op: "start", Kind: ErrHardwareFault, Err: err}
		}
	}

	dev.rmu.Lock()
	dev.prod.rb.reset()
	dev.drainNotify()
	dev.fault.Store(nil)
	dev.started.Store(true)
	dev.state.store(Running)
	dev.rmu.Unlock()

	err := dev.hw.Arm(dev.trigger)
	if err != nil {
		dev.state.store(Idle)
		dev.wake()
		return &Error{Op: "start", Kind: ErrHardwareFault, Err: err}
	}
	dev.armed = true
	dev.msg.Printf("%s: acquisition started (capacity=%d)", dev.name, dev.Cap())

	return nil
}

// Stop stops the current acquisition session.
// Events buffered so far can still be read.
// Stop returns the hardware fault that aborted the session, if any.
func (dev *Device) Stop() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var err error
	if dev.armed {
		e := dev.hw.Disarm()
		dev.armed = false
		if e != nil {
			err = &Error{Op: "stop", Kind: ErrHardwareFault, Err: e}
		}
	}

	if prev := dev.state.swap(Idle); prev != Idle {
		dev.msg.Printf("%s: acquisition stopped (buffered=%d)", dev.name, dev.Len())
	}
	dev.wake()

	if err != nil {
		return err
	}
	return dev.Err()
}

// Close stops the device and closes its hardware, if it is an io.Closer.
func (dev *Device) Close() error {
	err := dev.Stop()
	if c, ok := dev.hw.(io.Closer); ok {
		e := c.Close()
		if e != nil && err == nil {
			err = fmt.Errorf("daq: could not close hardware: %w", e)
		}
	}
	return err
}

// Read copies up to len(dst) buffered events, oldest first, into dst.
// Read blocks until at least one event is available, the session ends or
// ctx is done.
//
// Read returns the number of copied events and the number of events still
// buffered right after the copy.
// Once a session is over and all its events were read, Read returns io.EOF,
// or the hardware fault that aborted the session.
func (dev *Device) Read(ctx context.Context, dst []Event) (n, occupancy int, err error) {
	if len(dst) == 0 {
		return 0, 0, &Error{
			Op:   "read",
			Kind: ErrInvalidArgument,
			Err:  errors.New("zero-capacity destination"),
		}
	}

	dev.rmu.Lock()
	defer dev.rmu.Unlock()

	if !dev.started.Load() {
		return 0, 0, &Error{
			Op:   "read",
			Kind: ErrInvalidArgument,
			Err:  errors.New("device was never started"),
		}
	}

	for dev.cons.Empty() {
		switch dev.state.load() {
		case Hanging:
			// the ring was drained before the producer flagged it full.
			dev.recoverPoll()
			continue
		case Idle:
			if err := dev.Err(); err != nil {
				return 0, 0, err
			}
			return 0, 0, io.EOF
		}

		select {
		case <-dev.notify:
		case <-ctx.Done():
			return 0, dev.cons.Len(), &Error{
				Op:   "read",
				Kind: ErrInterrupted,
				Err:  ctx.Err(),
			}
		}
	}

	n = dev.cons.Drain(dst)
	occupancy = dev.cons.Len()

	if dev.state.load() == Hanging && !dev.cons.Full() {
		dev.recoverPoll()
	}

	return n, occupancy, nil
}

// trigger is the producer path, invoked by the hardware once per event.
func (dev *Device) trigger() {
	switch dev.state.load() {
	case Running:
		evt, err := dev.sample()
		if err != nil {
			dev.abort(err)
			return
		}
		dev.produce(evt)
	case Hanging:
		// the sample is left in the peripheral for the recovery poll.
		dev.wake()
	}
}

// sample reads and acknowledges the current ADC conversion.
func (dev *Device) sample() (Event, *Error) {
	var (
		now     = dev.now()
		v, perr = dev.hw.Poll()
		aerr    = dev.hw.Ack()
	)
	switch {
	case perr != nil:
		return Event{}, &Error{Op: "poll", Kind: ErrHardwareFault, Err: perr}
	case aerr != nil:
		return Event{}, &Error{Op: "ack", Kind: ErrHardwareFault, Err: aerr}
	}
	return NewEvent(now, v), nil
}

func (dev *Device) produce(evt Event) {
	if !dev.prod.TryPush(evt) {
		if dev.state.cas(Running, Hanging) {
			dev.msg.Printf("%s: ring full, dropping %v", dev.name, evt)
		}
		dev.metrics.drops.Inc()
		dev.wake()
		return
	}
	dev.metrics.events.Inc()
	dev.wake()
}

// recoverPoll fetches the sample left pending while hanging and resumes
// the production of events.
// Hardware implementing Readier is only polled when a conversion is pending.
// recoverPoll must only be called by the reader, while hanging.
func (dev *Device) recoverPoll() {
	if hw, ok := dev.hw.(Readier); ok {
		pending, err := hw.Ready()
		if err != nil {
			dev.abort(&Error{Op: "ready", Kind: ErrHardwareFault, Err: err})
			return
		}
		if !pending {
			dev.resume()
			return
		}
	}

	evt, err := dev.sample()
	if err != nil {
		dev.abort(err)
		return
	}
	if dev.prod.TryPush(evt) {
		dev.metrics.events.Inc()
	}
	dev.resume()
}

func (dev *Device) resume() {
	if dev.state.cas(Hanging, Running) {
		dev.metrics.recoveries.Inc()
	}
}

// abort terminates the session after a hardware fault.
func (dev *Device) abort(err *Error) {
	if !dev.fault.CompareAndSwap(nil, err) {
		return
	}
	dev.state.store(Idle)
	dev.metrics.faults.Inc()
	dev.msg.Printf("%s: acquisition aborted: %+v", dev.name, err)
	dev.wake()

	if dev.onFault != nil {
		go dev.onFault(err)
	}
}

// wake notifies the reader, without blocking.
func (dev *Device) wake() {
	select {
	case dev.notify <- struct{}{}:
	default:
	}
}

func (dev *Device) drainNotify() {
	for {
		select {
		case <-dev.notify:
		default:
			return
		}
	}
}
