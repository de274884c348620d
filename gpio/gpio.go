// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpio drives the GPIO register block of a BCM283x SoC through a
// memory-mapped window.
package gpio // import "github.com/go-lpc/silena/gpio"

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/go-lpc/silena/internal/mmap"
)

const (
	// DevMem is the device file exposing the GPIO register block.
	DevMem = "/dev/gpiomem"

	// Size is the size of the GPIO register block.
	Size = 4096

	NumPins = 54
)

// Register offsets.
const (
	GPFSEL0 = 0x00 // function select, 10 pins per register
	GPSET0  = 0x1c // output set, pins 0-31
	GPCLR0  = 0x28 // output clear, pins 0-31
	GPLEV0  = 0x34 // pin level, pins 0-31
)

// Mode is the function of a GPIO pin.
type Mode uint32

const (
	Input  Mode = 0x0
	Output Mode = 0x1
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("alt(0x%x)", uint32(m))
	}
}

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// Chip is a GPIO register block.
type Chip struct {
	mu sync.Mutex
	rw rwer
}

// Open maps the GPIO register block from the device file fname.
func Open(fname string) (*Chip, error) {
	h, err := mmap.Open(fname, 0, Size)
	if err != nil {
		return nil, fmt.Errorf("gpio: could not open register block: %w", err)
	}
	return New(h), nil
}

// New creates a GPIO chip over the register window rw.
func New(rw rwer) *Chip {
	return &Chip{rw: rw}
}

// Close releases the register window, if it is an io.Closer.
func (chip *Chip) Close() error {
	if c, ok := chip.rw.(io.Closer); ok {
		err := c.Close()
		if err != nil {
			return fmt.Errorf("gpio: could not close register block: %w", err)
		}
	}
	return nil
}

// SetMode sets the function of the provided pin.
func (chip *Chip) SetMode(pin int, mode Mode) error {
	if pin < 0 || pin >= NumPins {
		return fmt.Errorf("gpio: invalid pin %d", pin)
	}
	if mode > 0x7 {
		return fmt.Errorf("gpio: invalid mode 0x%x", uint32(mode))
	}

	chip.mu.Lock()
	defer chip.mu.Unlock()

	var (
		off   = int64(GPFSEL0 + 4*(pin/10))
		shift = uint(3 * (pin % 10))
	)
	v, err := chip.readU32(off)
	if err != nil {
		return err
	}
	v &^= 0x7 << shift
	v |= uint32(mode) << shift
	return chip.writeU32(off, v)
}

// Mode returns the function of the provided pin.
func (chip *Chip) Mode(pin int) (Mode, error) {
	if pin < 0 || pin >= NumPins {
		return 0, fmt.Errorf("gpio: invalid pin %d", pin)
	}

	chip.mu.Lock()
	defer chip.mu.Unlock()

	v, err := chip.readU32(int64(GPFSEL0 + 4*(pin/10)))
	if err != nil {
		return 0, err
	}
	return Mode((v >> uint(3*(pin%10))) & 0x7), nil
}

// Write drives the provided output pin high or low.
func (chip *Chip) Write(pin int, high bool) error {
	if pin < 0 || pin >= 32 {
		return fmt.Errorf("gpio: invalid pin %d", pin)
	}

	chip.mu.Lock()
	defer chip.mu.Unlock()

	off := int64(GPCLR0)
	if high {
		off = GPSET0
	}
	return chip.writeU32(off, 1<<uint(pin))
}

// Set drives the provided output pin high.
func (chip *Chip) Set(pin int) error { return chip.Write(pin, true) }

// Clear drives the provided output pin low.
func (chip *Chip) Clear(pin int) error { return chip.Write(pin, false) }

// Levels returns the levels of pins 0-31, one bit per pin.
func (chip *Chip) Levels() (uint32, error) {
	chip.mu.Lock()
	defer chip.mu.Unlock()

	return chip.readU32(GPLEV0)
}

// Level reports whether the provided pin is high.
func (chip *Chip) Level(pin int) (bool, error) {
	if pin < 0 || pin >= 32 {
		return false, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	v, err := chip.Levels()
	if err != nil {
		return false, err
	}
	return v&(1<<uint(pin)) != 0, nil
}

func (chip *Chip) readU32(off int64) (uint32, error) {
	var buf [4]byte
	_, err := chip.rw.ReadAt(buf[:], off)
	if err != nil {
		return 0, fmt.Errorf("gpio: could not read register 0x%x: %w", off, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (chip *Chip) writeU32(off int64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := chip.rw.WriteAt(buf[:], off)
	if err != nil {
		return fmt.Errorf("gpio: could not write register 0x%x: %w", off, err)
	}
	return nil
}
