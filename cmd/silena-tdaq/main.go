// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command silena-tdaq starts a TDAQ server for a Silena ADC.
//
// The first argument names the hardware: "sim" for the simulated ADC, or
// the gpiomem device file the ADC is wired to.
//
// Example:
//
//	$> silena-tdaq -id silena-01 -rc tcp://localhost:44000 /dev/gpiomem
package main // import "github.com/go-lpc/silena/cmd/silena-tdaq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-lpc/silena/adc"
	"github.com/go-lpc/silena/daq"
	"github.com/go-lpc/silena/node"
)

func main() {
	cmd := flags.New()

	hw := node.Sim
	if len(cmd.Args) > 0 {
		hw = cmd.Args[0]
	}

	dev := node.New(
		cmd.Name,
		func() (daq.Hardware, error) {
			return node.OpenHardware(hw, adc.DefaultConfig())
		},
		daq.WithLogger(log.New(os.Stdout, "silena-tdaq: ", 0)),
	)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/adc", dev.ADC)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
