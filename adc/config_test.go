// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adc

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	f, err := os.Open("testdata/silena.yaml")
	if err != nil {
		t.Fatalf("could not open config: %+v", err)
	}
	defer f.Close()

	cfg, err := LoadConfig(f)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	want := DefaultConfig()
	want.Data = []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 16, 18}
	want.Ready = 21
	want.Invert = false
	want.Period = 100 * time.Microsecond

	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", cfg, want)
	}
	if got, want := cfg.Mask(), uint32(0xfff); got != want {
		t.Fatalf("invalid mask: got=0x%x, want=0x%x", got, want)
	}

	cfg, err = LoadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("could not load empty config: %+v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("empty config should yield the default one:\ngot= %+v", cfg)
	}
}

func TestConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		err  string
	}{
		{
			name: "yaml",
			yaml: "data: {",
			err:  "adc: could not decode config",
		},
		{
			name: "no-data",
			yaml: "data: []",
			err:  "adc: invalid number of data lines 0",
		},
		{
			name: "period",
			yaml: "period: 0s",
			err:  "adc: invalid sampling period 0s",
		},
		{
			name: "pin-range",
			yaml: "ack: 32",
			err:  "adc: invalid pin 32 for ACK",
		},
		{
			name: "pin-dup",
			yaml: "ready: 4",
			err:  "adc: pin 4 assigned to D00 and RDY",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := err.Error(), tc.err; !strings.HasPrefix(got, want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestConfigDecode(t *testing.T) {
	cfg := DefaultConfig()

	levels := func(v uint32) uint32 {
		var lv uint32
		for i, pin := range cfg.Data {
			lv |= ((v >> uint(i)) & 1) << uint(pin)
		}
		return lv
	}

	for _, tc := range []struct {
		invert bool
		raw    uint32
		want   uint32
	}{
		{invert: false, raw: 0, want: 0},
		{invert: false, raw: 0x1fff, want: 0x1fff},
		{invert: false, raw: 0x1234, want: 0x1234},
		{invert: true, raw: 0, want: 0x1fff},
		{invert: true, raw: 0x1fff, want: 0},
		{invert: true, raw: 0x0a5a, want: 0x15a5},
	} {
		cfg.Invert = tc.invert
		lv := levels(tc.raw)
		// unrelated pins must not leak into the value.
		lv |= 1<<uint(cfg.Ready) | 1<<uint(cfg.Live) | 1<<31

		if got, want := cfg.decode(lv), tc.want; got != want {
			t.Fatalf("invert=%v raw=0x%x: got=0x%x, want=0x%x", tc.invert, tc.raw, got, want)
		}
	}
}
