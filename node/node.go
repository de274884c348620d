// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node exposes a Silena acquisition device as a run-control
// process.
package node // import "github.com/go-lpc/silena/node"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/silena/adc"
	"github.com/go-lpc/silena/daq"
)

// Sim is the hardware name of the simulated ADC.
const Sim = "sim"

// OpenHardware opens the hardware collaborator named name: the simulated
// ADC for Sim, or the Silena ADC wired to the GPIO register block of the
// device file name.
func OpenHardware(name string, cfg adc.Config) (daq.Hardware, error) {
	if name == Sim {
		return adc.NewSim(uint64(time.Now().UnixNano()), 10*time.Millisecond), nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("node: could not find hardware %q: %w", name, err)
	}
	return adc.Open(name, cfg)
}

// Node is a run-control process driving one acquisition device.
// Events are published on the /adc output as bulks in wire layout.
type Node struct {
	name string
	open func() (daq.Hardware, error)
	opts []daq.Option
	idle time.Duration // polling period while no session is running

	mu  sync.RWMutex
	dev *daq.Device

	buf   []daq.Event
	fault error // fault already reported on the output
}

// New creates a node for the hardware created by open.
func New(name string, open func() (daq.Hardware, error), opts ...daq.Option) *Node {
	return &Node{
		name: name,
		open: open,
		opts: append([]daq.Option{daq.WithName(name)}, opts...),
		idle: 100 * time.Millisecond,
		buf:  make([]daq.Event, 1024),
	}
}

func (n *Node) device() *daq.Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dev
}

func (n *Node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dev != nil {
		err := n.dev.Close()
		n.dev = nil
		if err != nil {
			ctx.Msg.Errorf("could not close previous device: %+v", err)
		}
	}

	hw, err := n.open()
	if err != nil {
		ctx.Msg.Errorf("could not open hardware: %+v", err)
		return fmt.Errorf("node: could not open hardware: %w", err)
	}

	dev, err := daq.New(hw, n.opts...)
	if err != nil {
		if c, ok := hw.(io.Closer); ok {
			_ = c.Close()
		}
		ctx.Msg.Errorf("could not create device: %+v", err)
		return fmt.Errorf("node: could not create device: %w", err)
	}
	n.dev = dev
	ctx.Msg.Infof("device %q configured (capacity=%d)", n.name, dev.Cap())

	return nil
}

func (n *Node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if n.device() == nil {
		return fmt.Errorf("node: device %q not configured", n.name)
	}
	return nil
}

func (n *Node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev := n.device()
	if dev == nil {
		return nil
	}
	err := dev.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop device: %+v", err)
	}
	return nil
}

func (n *Node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	dev := n.device()
	if dev == nil {
		return fmt.Errorf("node: device %q not configured", n.name)
	}
	err := dev.Start()
	if err != nil {
		ctx.Msg.Errorf("could not start acquisition: %+v", err)
		return fmt.Errorf("node: could not start acquisition: %w", err)
	}
	return nil
}

func (n *Node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev := n.device()
	if dev == nil {
		ctx.Msg.Debugf("received /stop command...")
		return nil
	}
	ctx.Msg.Debugf("received /stop command... -> buffered=%d", dev.Len())
	err := dev.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop acquisition: %+v", err)
		return fmt.Errorf("node: could not stop acquisition: %w", err)
	}
	return nil
}

func (n *Node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dev == nil {
		return nil
	}
	err := n.dev.Close()
	n.dev = nil
	if err != nil && !errors.Is(err, daq.ErrHardwareFault) {
		return fmt.Errorf("node: could not close device: %w", err)
	}
	return nil
}

// ADC publishes the next bulk of events.
// The body of dst is empty when no event could be read.
func (n *Node) ADC(ctx tdaq.Context, dst *tdaq.Frame) error {
	dst.Body = nil

	dev := n.device()
	if dev == nil {
		n.wait(ctx)
		return nil
	}

	nevts, _, err := dev.Read(ctx.Ctx, n.buf)
	switch {
	case err == nil:
		n.fault = nil
		dst.Body = daq.AppendEvents(make([]byte, 0, nevts*daq.EventSize), n.buf[:nevts]...)
		return nil
	case errors.Is(err, daq.ErrInterrupted):
		return nil
	case errors.Is(err, daq.ErrHardwareFault):
		if n.fault != err {
			ctx.Msg.Errorf("acquisition aborted: %+v", err)
			n.fault = err
		}
	case errors.Is(err, io.EOF), errors.Is(err, daq.ErrInvalidArgument):
		// no session running.
	default:
		return fmt.Errorf("node: could not read events: %w", err)
	}

	n.wait(ctx)
	return nil
}

// Run periodically reports the occupancy of the device ring.
func (n *Node) Run(ctx tdaq.Context) error {
	tck := time.NewTicker(10 * time.Second)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tck.C:
			dev := n.device()
			if dev == nil {
				continue
			}
			ctx.Msg.Infof("device %q: state=%v, buffered=%d/%d", n.name, dev.State(), dev.Len(), dev.Cap())
		}
	}
}

func (n *Node) wait(ctx tdaq.Context) {
	tmr := time.NewTimer(n.idle)
	defer tmr.Stop()
	select {
	case <-ctx.Ctx.Done():
	case <-tmr.C:
	}
}
