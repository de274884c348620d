// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command silena-hist acquires events from a silena-srv bridge server and
// fills the ADC spectrum, saved as a YODA histogram.
//
// Example:
//
//	$> silena-hist -addr tcp://10.0.42.22:5555 -n 100000 -every 1000 -o spectrum.yoda
package main // import "github.com/go-lpc/silena/cmd/silena-hist"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go-hep.org/x/hep/hbook"

	"github.com/go-lpc/silena/bridge"
	"github.com/go-lpc/silena/daq"
)

const (
	nbins = 8192
)

func main() {
	log.SetPrefix("silena-hist: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", "tcp://127.0.0.1:5555", "address of the bridge server")
		nevts = flag.Int("n", 10000, "number of events to acquire")
		every = flag.Int("every", 1000, "save a snapshot of the histogram every n events (0 to disable)")
		oname = flag.String("o", "silena.yoda", "path to the output YODA file")
	)

	flag.Parse()

	cli, err := bridge.Dial(*addr)
	if err != nil {
		log.Fatalf("could not dial bridge server: %+v", err)
	}
	defer cli.Close()

	err = run(cli, *nevts, *every, *oname)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type client interface {
	Start() error
	Stop() error
	Read() (daq.Event, error)
}

func run(cli client, nevts, every int, oname string) (err error) {
	h := hbook.NewH1D(nbins, 0, nbins)
	h.Annotation()["name"] = "silena"
	h.Annotation()["title"] = "Silena ADC spectrum"

	err = cli.Start()
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}
	defer func() {
		e := cli.Stop()
		if e != nil && err == nil {
			err = fmt.Errorf("could not stop acquisition: %w", e)
		}
	}()

	for i := 0; i < nevts; i++ {
		evt, err := cli.Read()
		if err != nil {
			return fmt.Errorf("could not read event %d: %w", i, err)
		}
		h.Fill(float64(evt.Value), 1)

		if every > 0 && (i+1)%every == 0 {
			log.Printf("events: %d/%d", i+1, nevts)
			err = save(oname, h)
			if err != nil {
				return err
			}
		}
	}

	return save(oname, h)
}

func save(oname string, h *hbook.H1D) error {
	raw, err := h.MarshalYODA()
	if err != nil {
		return fmt.Errorf("could not marshal histogram: %w", err)
	}

	err = os.WriteFile(oname, raw, 0644)
	if err != nil {
		return fmt.Errorf("could not save histogram: %w", err)
	}
	return nil
}
