// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-hep.org/x/hep/hbook"

	"github.com/go-lpc/silena/adc"
	"github.com/go-lpc/silena/bridge"
	"github.com/go-lpc/silena/daq"
)

func TestRun(t *testing.T) {
	dev, err := daq.New(
		adc.NewSim(1234, 100*time.Microsecond),
		daq.WithLogger(log.New(io.Discard, "daq: ", 0)),
		daq.WithBufferSize(256),
	)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	defer dev.Close()

	srv, err := bridge.NewServer(
		"inproc://silena-hist-run", dev,
		bridge.WithLogger(log.New(io.Discard, "bridge: ", 0)),
	)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	cli, err := bridge.Dial(srv.Addr())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	defer cli.Close()

	oname := filepath.Join(t.TempDir(), "out.yoda")
	err = run(cli, 50, 10, oname)
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	raw, err := os.ReadFile(oname)
	if err != nil {
		t.Fatalf("could not read output file: %+v", err)
	}

	var h hbook.H1D
	err = h.UnmarshalYODA(raw)
	if err != nil {
		t.Fatalf("could not unmarshal histogram: %+v", err)
	}
	if got, want := h.Entries(), int64(50); got != want {
		t.Fatalf("invalid number of entries: got=%d, want=%d", got, want)
	}
	if got, want := h.Len(), nbins; got != want {
		t.Fatalf("invalid number of bins: got=%d, want=%d", got, want)
	}
}

type faultyClient struct {
	stops int
}

func (c *faultyClient) Start() error { return nil }
func (c *faultyClient) Stop() error  { c.stops++; return nil }
func (c *faultyClient) Read() (daq.Event, error) {
	return daq.Event{}, fmt.Errorf("boom")
}

func TestRunReadError(t *testing.T) {
	cli := &faultyClient{}
	err := run(cli, 10, 0, filepath.Join(t.TempDir(), "out.yoda"))
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := cli.stops, 1; got != want {
		t.Fatalf("acquisition was not stopped: stops=%d", got)
	}
}
