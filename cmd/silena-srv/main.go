// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command silena-srv serves a Silena acquisition device over a REQ/REP
// bridge.
//
// Usage:
//
//	$> silena-srv [OPTIONS]
//
// Example:
//
//	$> silena-srv -addr=tcp://*:5555 -hw=/dev/gpiomem -metrics=:9100
//	$> silena-srv -hw=sim -pmon
package main // import "github.com/go-lpc/silena/cmd/silena-srv"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/silena"
	"github.com/go-lpc/silena/adc"
	"github.com/go-lpc/silena/bridge"
	"github.com/go-lpc/silena/daq"
	"github.com/go-lpc/silena/gpio"
	"github.com/go-lpc/silena/node"
)

func main() {
	log.SetPrefix("silena-srv: ")
	log.SetFlags(0)

	var (
		addr    = flag.String("addr", bridge.DefaultAddr, "address to listen on for bridge commands")
		hw      = flag.String("hw", gpio.DevMem, "hardware to acquire from (sim or a gpiomem device file)")
		hwcfg   = flag.String("cfg", "", "path to a YAML pin configuration")
		size    = flag.Int("size", daq.DefaultBufferSize, "number of slots of the event ring")
		timeout = flag.Duration("timeout", 0, "timeout of read requests (0 waits for events)")
		metrics = flag.String("metrics", "", "[ip]:port to serve prometheus metrics on")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		doFreq  = flag.Duration("freq", 1*time.Second, "pmon frequency")
		vers    = flag.Bool("version", false, "print version and exit")
	)

	flag.Parse()

	if *vers {
		v, sum := silena.Version()
		fmt.Printf("silena-srv %s %s\n", v, sum)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, config{
		addr:    *addr,
		hw:      *hw,
		hwcfg:   *hwcfg,
		size:    *size,
		timeout: *timeout,
		metrics: *metrics,
		pmon:    *doMon,
		freq:    *doFreq,
		dir:     os.Getenv("SILENA_LOGDIR"),
	})
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type config struct {
	addr    string
	hw      string
	hwcfg   string
	size    int
	timeout time.Duration
	metrics string
	pmon    bool
	freq    time.Duration
	dir     string // directory of the pmon log file
}

func run(ctx context.Context, cfg config) error {
	pins, err := loadConfig(cfg.hwcfg)
	if err != nil {
		return err
	}

	hw, err := node.OpenHardware(cfg.hw, pins)
	if err != nil {
		return fmt.Errorf("could not open hardware: %w", err)
	}

	reg := prometheus.NewRegistry()
	dev, err := daq.New(
		hw,
		daq.WithName(filepath.Base(cfg.hw)),
		daq.WithBufferSize(cfg.size),
		daq.WithMetrics(reg),
		daq.WithFaultHandler(func(err error) {
			alertMail(cfg.hw, err)
		}),
	)
	if err != nil {
		if c, ok := hw.(io.Closer); ok {
			_ = c.Close()
		}
		return fmt.Errorf("could not create device: %w", err)
	}
	defer dev.Close()

	srv, err := bridge.NewServer(cfg.addr, dev, bridge.WithReadTimeout(cfg.timeout))
	if err != nil {
		return fmt.Errorf("could not create bridge server: %w", err)
	}
	defer srv.Close()

	if cfg.pmon {
		p, err := pmon.Monitor(os.Getpid())
		if err != nil {
			return fmt.Errorf("could not start monitoring (pid=%d): %w", os.Getpid(), err)
		}
		f, err := os.Create(filepath.Join(cfg.dir, "silena-srv-pmon.log"))
		if err != nil {
			return fmt.Errorf("could not create pmon log file: %w", err)
		}
		defer f.Close()
		p.W = f
		p.Freq = cfg.freq

		go func() {
			log.Printf("run pmon...")
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring: %+v", err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring: %+v", err)
			}
		}()
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return srv.Serve(ctx)
	})

	if cfg.metrics != "" {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		hsrv := newMetricsServer(cfg.metrics, reg)
		grp.Go(func() error {
			log.Printf("serving metrics on %q...", cfg.metrics)
			err := hsrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("could not serve metrics: %w", err)
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			return hsrv.Close()
		})
	}

	return grp.Wait()
}

func loadConfig(fname string) (adc.Config, error) {
	if fname == "" {
		return adc.DefaultConfig(), nil
	}

	f, err := os.Open(fname)
	if err != nil {
		return adc.Config{}, fmt.Errorf("could not open pin configuration: %w", err)
	}
	defer f.Close()

	cfg, err := adc.LoadConfig(f)
	if err != nil {
		return cfg, fmt.Errorf("could not load pin configuration %q: %w", fname, err)
	}
	return cfg, nil
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
