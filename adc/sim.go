// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adc

import (
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/go-lpc/silena/daq"
)

// Sim is a simulated 13-bit ADC, converting one event per period.
//
// The spectrum is made of a gaussian peak over a flat background.
type Sim struct {
	period time.Duration

	mu    sync.Mutex
	rnd   *rand.Rand
	peak  distuv.Normal
	bkg   distuv.Uniform
	frac  float64 // fraction of background events
	value uint32  // value of the pending conversion
	acked bool

	quit chan struct{}
	done chan struct{}
}

// NewSim creates a simulated ADC seeded with seed.
func NewSim(seed uint64, period time.Duration) *Sim {
	src := rand.NewSource(seed)
	sim := &Sim{
		period: period,
		rnd:    rand.New(src),
		peak:   distuv.Normal{Mu: 2048, Sigma: 120, Src: src},
		bkg:    distuv.Uniform{Min: 0, Max: 8192, Src: src},
		frac:   0.2,
		acked:  true,
	}
	return sim
}

// Poll returns the value of the pending conversion.
func (sim *Sim) Poll() (uint32, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if sim.acked {
		sim.convert()
	}
	return sim.value, nil
}

// Ready reports whether a conversion is pending.
func (sim *Sim) Ready() (bool, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return !sim.acked, nil
}

// Ack releases the pending conversion.
func (sim *Sim) Ack() error {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.acked = true
	return nil
}

func (sim *Sim) convert() {
	var x float64
	switch {
	case sim.rnd.Float64() < sim.frac:
		x = sim.bkg.Rand()
	default:
		x = sim.peak.Rand()
	}
	x = math.Max(0, math.Min(x, 0x1fff))
	sim.value = uint32(x)
	sim.acked = false
}

// tick starts a new conversion, unless one is still pending.
func (sim *Sim) tick() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if sim.acked {
		sim.convert()
	}
}

// Arm starts the conversions, invoking trigger once per period.
func (sim *Sim) Arm(trigger func()) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if sim.quit != nil {
		return errors.New("adc: simulator already armed")
	}
	if sim.period <= 0 {
		return errors.New("adc: invalid simulator period")
	}

	sim.quit = make(chan struct{})
	sim.done = make(chan struct{})
	go func(quit, done chan struct{}) {
		defer close(done)
		tck := time.NewTicker(sim.period)
		defer tck.Stop()
		for {
			select {
			case <-quit:
				return
			case <-tck.C:
				sim.tick()
				trigger()
			}
		}
	}(sim.quit, sim.done)

	return nil
}

// Disarm stops the conversions.
func (sim *Sim) Disarm() error {
	sim.mu.Lock()
	quit, done := sim.quit, sim.done
	sim.quit = nil
	sim.done = nil
	sim.mu.Unlock()

	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return nil
}

var (
	_ daq.Hardware = (*Sim)(nil)
	_ daq.Readier  = (*Sim)(nil)
)
