// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type config struct {
	size    int
	name    string
	msg     *log.Logger
	now     func() time.Time
	reg     prometheus.Registerer
	onFault func(err error)
}

func newConfig() config {
	return config{
		size: DefaultBufferSize,
		name: "silena",
		msg:  log.New(os.Stdout, "daq: ", 0),
		now:  time.Now,
	}
}

// Option configures a Device.
type Option func(*config)

// WithBufferSize sets the number of slots of the event ring.
// The ring holds at most n-1 events.
func WithBufferSize(n int) Option {
	return func(cfg *config) {
		cfg.size = n
	}
}

// WithName sets the device name used in logs and metric labels.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// WithLogger sets the logger of the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithClock sets the clock used to timestamp events.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}

// WithMetrics registers the device metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.reg = reg
	}
}

// WithFaultHandler sets a function to be called, on its own goroutine,
// when a hardware fault terminates an acquisition session.
func WithFaultHandler(f func(err error)) Option {
	return func(cfg *config) {
		cfg.onFault = f
	}
}
