// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpio

import (
	"encoding/binary"
	"testing"

	"github.com/go-lpc/silena/internal/mmap"
)

func newTestChip() (*Chip, []byte) {
	mem := make([]byte, Size)
	return New(mmap.HandleFrom(mem)), mem
}

func u32(mem []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(mem[off : off+4])
}

func TestSetMode(t *testing.T) {
	chip, mem := newTestChip()

	for _, tc := range []struct {
		pin  int
		mode Mode
		off  int
		want uint32
	}{
		{pin: 4, mode: Output, off: GPFSEL0, want: 0x1 << 12},
		{pin: 5, mode: Output, off: GPFSEL0, want: 0x1<<12 | 0x1<<15},
		{pin: 4, mode: Input, off: GPFSEL0, want: 0x1 << 15},
		{pin: 23, mode: Output, off: GPFSEL0 + 8, want: 0x1 << 9},
		{pin: 27, mode: Output, off: GPFSEL0 + 8, want: 0x1<<9 | 0x1<<21},
		{pin: 53, mode: Mode(0x4), off: GPFSEL0 + 20, want: 0x4 << 9},
	} {
		err := chip.SetMode(tc.pin, tc.mode)
		if err != nil {
			t.Fatalf("could not set mode of pin %d: %+v", tc.pin, err)
		}
		if got, want := u32(mem, tc.off), tc.want; got != want {
			t.Fatalf("pin %d: invalid GPFSEL: got=0x%x, want=0x%x", tc.pin, got, want)
		}
		mode, err := chip.Mode(tc.pin)
		if err != nil {
			t.Fatalf("could not get mode of pin %d: %+v", tc.pin, err)
		}
		if got, want := mode, tc.mode; got != want {
			t.Fatalf("pin %d: invalid mode: got=%v, want=%v", tc.pin, got, want)
		}
	}

	for _, pin := range []int{-1, NumPins} {
		if err := chip.SetMode(pin, Output); err == nil {
			t.Fatalf("pin %d: expected an error", pin)
		}
	}
	if err := chip.SetMode(4, Mode(8)); err == nil {
		t.Fatalf("expected an error for an invalid mode")
	}
}

func TestWrite(t *testing.T) {
	chip, mem := newTestChip()

	err := chip.Set(23)
	if err != nil {
		t.Fatalf("could not set pin: %+v", err)
	}
	if got, want := u32(mem, GPSET0), uint32(1<<23); got != want {
		t.Fatalf("invalid GPSET0: got=0x%x, want=0x%x", got, want)
	}

	err = chip.Clear(27)
	if err != nil {
		t.Fatalf("could not clear pin: %+v", err)
	}
	if got, want := u32(mem, GPCLR0), uint32(1<<27); got != want {
		t.Fatalf("invalid GPCLR0: got=0x%x, want=0x%x", got, want)
	}

	if err := chip.Write(32, true); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestLevels(t *testing.T) {
	chip, mem := newTestChip()
	binary.LittleEndian.PutUint32(mem[GPLEV0:], 1<<26|1<<4)

	v, err := chip.Levels()
	if err != nil {
		t.Fatalf("could not read levels: %+v", err)
	}
	if got, want := v, uint32(1<<26|1<<4); got != want {
		t.Fatalf("invalid levels: got=0x%x, want=0x%x", got, want)
	}

	for _, tc := range []struct {
		pin  int
		want bool
	}{
		{4, true},
		{5, false},
		{26, true},
		{27, false},
	} {
		got, err := chip.Level(tc.pin)
		if err != nil {
			t.Fatalf("could not read level of pin %d: %+v", tc.pin, err)
		}
		if got != tc.want {
			t.Fatalf("pin %d: invalid level: got=%v, want=%v", tc.pin, got, tc.want)
		}
	}

	err = chip.Close()
	if err != nil {
		t.Fatalf("could not close chip: %+v", err)
	}
	_, err = chip.Levels()
	if err == nil {
		t.Fatalf("expected an error reading a closed chip")
	}
}
