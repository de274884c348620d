// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adc provides hardware collaborators for the acquisition device:
// a Silena ADC wired to the GPIO header, and a simulated ADC.
package adc // import "github.com/go-lpc/silena/adc"

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-lpc/silena/daq"
	"github.com/go-lpc/silena/gpio"
)

// Pins is the GPIO interface needed to drive a Silena ADC.
type Pins interface {
	SetMode(pin int, mode gpio.Mode) error
	Write(pin int, high bool) error
	Levels() (uint32, error)
}

// Silena is a Silena ADC read out through GPIO pins.
type Silena struct {
	cfg  Config
	pins Pins

	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}
	err  error // error of the watch loop
}

// Open opens the Silena ADC wired to the GPIO register block of the
// device file fname.
func Open(fname string, cfg Config) (*Silena, error) {
	chip, err := gpio.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("adc: could not open gpio: %w", err)
	}
	adc, err := New(chip, cfg)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}
	return adc, nil
}

// New configures the GPIO pins of a Silena ADC.
// All outputs are driven low.
func New(pins Pins, cfg Config) (*Silena, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	adc := &Silena{cfg: cfg, pins: pins}

	for _, pin := range append([]int{cfg.Live, cfg.Ready}, cfg.Data...) {
		err = pins.SetMode(pin, gpio.Input)
		if err != nil {
			return nil, fmt.Errorf("adc: could not configure input pin %d: %w", pin, err)
		}
	}
	for _, pin := range []int{cfg.Run, cfg.Enable, cfg.Ack} {
		err = pins.Write(pin, false)
		if err != nil {
			return nil, fmt.Errorf("adc: could not reset output pin %d: %w", pin, err)
		}
		err = pins.SetMode(pin, gpio.Output)
		if err != nil {
			return nil, fmt.Errorf("adc: could not configure output pin %d: %w", pin, err)
		}
	}

	return adc, nil
}

// Poll returns the value presented on the data lines.
func (adc *Silena) Poll() (uint32, error) {
	lv, err := adc.pins.Levels()
	if err != nil {
		return 0, fmt.Errorf("adc: could not read data lines: %w", err)
	}
	return adc.cfg.decode(lv), nil
}

// Ack pulses the acknowledge line.
func (adc *Silena) Ack() error {
	err := adc.pins.Write(adc.cfg.Ack, true)
	if err != nil {
		return fmt.Errorf("adc: could not raise ACK: %w", err)
	}
	err = adc.pins.Write(adc.cfg.Ack, false)
	if err != nil {
		return fmt.Errorf("adc: could not lower ACK: %w", err)
	}
	return nil
}

// Live reports whether the converter is in its dead time.
func (adc *Silena) Live() (bool, error) {
	lv, err := adc.pins.Levels()
	if err != nil {
		return false, fmt.Errorf("adc: could not read LVE: %w", err)
	}
	return lv&(1<<uint(adc.cfg.Live)) != 0, nil
}

// Ready reports whether a conversion is waiting to be acknowledged,
// ie whether the ready line is low.
func (adc *Silena) Ready() (bool, error) {
	lv, err := adc.pins.Levels()
	if err != nil {
		return false, fmt.Errorf("adc: could not read RDY: %w", err)
	}
	return lv&(1<<uint(adc.cfg.Ready)) == 0, nil
}

// Arm enables the converter and invokes trigger on each falling edge of
// the ready line.
func (adc *Silena) Arm(trigger func()) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	if adc.quit != nil {
		return errors.New("adc: already armed")
	}

	for _, pin := range []int{adc.cfg.Run, adc.cfg.Enable} {
		err := adc.pins.Write(pin, true)
		if err != nil {
			_ = adc.lower()
			return fmt.Errorf("adc: could not raise pin %d: %w", pin, err)
		}
	}

	adc.err = nil
	adc.quit = make(chan struct{})
	adc.done = make(chan struct{})
	go adc.watch(trigger, adc.quit, adc.done)

	return nil
}

// Disarm disables the converter and waits for the watch loop to finish.
func (adc *Silena) Disarm() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	if adc.quit == nil {
		return nil
	}

	err := adc.lower()
	close(adc.quit)
	<-adc.done
	adc.quit = nil
	adc.done = nil

	if err != nil {
		return err
	}
	if adc.err != nil {
		return fmt.Errorf("adc: watch loop failed: %w", adc.err)
	}
	return nil
}

// Close disarms the converter and releases the GPIO pins.
func (adc *Silena) Close() error {
	err := adc.Disarm()
	if c, ok := adc.pins.(io.Closer); ok {
		e := c.Close()
		if e != nil && err == nil {
			err = fmt.Errorf("adc: could not close gpio: %w", e)
		}
	}
	return err
}

func (adc *Silena) lower() error {
	var err error
	for _, pin := range []int{adc.cfg.Run, adc.cfg.Enable} {
		e := adc.pins.Write(pin, false)
		if e != nil && err == nil {
			err = fmt.Errorf("adc: could not lower pin %d: %w", pin, e)
		}
	}
	return err
}

func (adc *Silena) watch(trigger func(), quit, done chan struct{}) {
	defer close(done)

	tck := time.NewTicker(adc.cfg.Period)
	defer tck.Stop()

	var (
		mask = uint32(1) << uint(adc.cfg.Ready)
		prev = true
	)
	for {
		select {
		case <-quit:
			return
		case <-tck.C:
			lv, err := adc.pins.Levels()
			if err != nil {
				adc.err = err
				// let the device report the failure through Poll.
				trigger()
				return
			}
			rdy := lv&mask != 0
			if prev && !rdy {
				trigger()
			}
			prev = rdy
		}
	}
}

var (
	_ daq.Hardware = (*Silena)(nil)
	_ daq.Readier  = (*Silena)(nil)
	_ io.Closer    = (*Silena)(nil)
)
