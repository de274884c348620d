// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes how a Silena ADC is wired to the GPIO header.
type Config struct {
	Data   []int         `yaml:"data"`   // data lines, least significant bit first
	Run    int           `yaml:"run"`    // output: acquisition active
	Enable int           `yaml:"enable"` // output: conversions enabled
	Live   int           `yaml:"live"`   // input: converter dead time
	Ready  int           `yaml:"ready"`  // input: data ready, active low
	Ack    int           `yaml:"ack"`    // output: data received
	Invert bool          `yaml:"invert"` // whether data lines are active low
	Period time.Duration `yaml:"period"` // sampling period of the ready line
}

// DefaultConfig returns the configuration of the reference wiring.
func DefaultConfig() Config {
	return Config{
		Data:   []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 16, 18, 19},
		Run:    23,
		Enable: 24,
		Live:   25,
		Ready:  26,
		Ack:    27,
		Invert: true,
		Period: 20 * time.Microsecond,
	}
}

// LoadConfig reads a YAML configuration from r.
// Fields missing from r keep their default value.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	err := yaml.NewDecoder(r).Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("adc: could not decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the pin assignment of the configuration.
func (cfg Config) Validate() error {
	if n := len(cfg.Data); n < 1 || n > 31 {
		return fmt.Errorf("adc: invalid number of data lines %d", n)
	}
	if cfg.Period <= 0 {
		return fmt.Errorf("adc: invalid sampling period %v", cfg.Period)
	}

	used := make(map[int]string)
	check := func(name string, pin int) error {
		if pin < 0 || pin >= 32 {
			return fmt.Errorf("adc: invalid pin %d for %s", pin, name)
		}
		if prev, dup := used[pin]; dup {
			return fmt.Errorf("adc: pin %d assigned to %s and %s", pin, prev, name)
		}
		used[pin] = name
		return nil
	}
	for i, pin := range cfg.Data {
		if err := check(fmt.Sprintf("D%02d", i), pin); err != nil {
			return err
		}
	}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"RUN", cfg.Run},
		{"ENB", cfg.Enable},
		{"LVE", cfg.Live},
		{"RDY", cfg.Ready},
		{"ACK", cfg.Ack},
	} {
		if err := check(p.name, p.pin); err != nil {
			return err
		}
	}
	return nil
}

// Mask returns the mask of the converter bit width.
func (cfg Config) Mask() uint32 {
	return 1<<uint(len(cfg.Data)) - 1
}

// decode gathers the ADC value from the levels of the GPIO pins.
func (cfg Config) decode(levels uint32) uint32 {
	var v uint32
	for i, pin := range cfg.Data {
		v |= ((levels >> uint(pin)) & 1) << uint(i)
	}
	if cfg.Invert {
		v ^= cfg.Mask()
	}
	return v
}
