// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command silena-ctl is an interactive shell controlling a silena-srv
// bridge server.
//
// Example:
//
//	$> silena-ctl -addr tcp://10.0.42.22:5555
//	silena> start
//	silena> read 4
//	silena> stop
//	silena> quit
package main // import "github.com/go-lpc/silena/cmd/silena-ctl"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-lpc/silena/bridge"
	"github.com/go-lpc/silena/daq"
)

func main() {
	log.SetPrefix("silena-ctl: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", "tcp://127.0.0.1:5555", "address of the bridge server")
		hist = flag.String("history", defaultHistory(), "path to the history file")
	)

	flag.Parse()

	cli, err := bridge.Dial(*addr)
	if err != nil {
		log.Fatalf("could not dial bridge server: %+v", err)
	}
	defer cli.Close()

	err = run(cli, *hist)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func defaultHistory() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".silena-ctl.history")
}

type client interface {
	Start() error
	Stop() error
	ReadN(n int) ([]daq.Event, error)
	Do(request []byte) ([]byte, error)
}

var cmds = []string{"help", "quit", "raw", "read", "start", "stop"}

func run(cli client, hist string) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		var o []string
		for _, cmd := range cmds {
			if strings.HasPrefix(cmd, line) {
				o = append(o, cmd)
			}
		}
		return o
	})

	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = term.ReadHistory(f)
			f.Close()
		}
		defer func() {
			f, err := os.Create(hist)
			if err != nil {
				log.Printf("could not save history: %+v", err)
				return
			}
			defer f.Close()
			_, _ = term.WriteHistory(f)
		}()
	}

	sh := shell{cli: cli, w: os.Stdout}
	for {
		line, err := term.Prompt("silena> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return nil
		}
	}
}

type shell struct {
	cli client
	w   io.Writer
}

func (sh *shell) exec(line string) (quit bool, err error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}

	switch cmd, args := toks[0], toks[1:]; cmd {
	case "start":
		err = sh.cli.Start()
		if err != nil {
			return false, fmt.Errorf("could not start acquisition: %w", err)
		}
		fmt.Fprintf(sh.w, "acquisition started\n")

	case "stop":
		err = sh.cli.Stop()
		if err != nil {
			return false, fmt.Errorf("could not stop acquisition: %w", err)
		}
		fmt.Fprintf(sh.w, "acquisition stopped\n")

	case "read":
		n := 1
		if len(args) > 0 {
			n, err = strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return false, fmt.Errorf("invalid number of events %q", args[0])
			}
		}
		evts, err := sh.cli.ReadN(n)
		if err != nil {
			return false, fmt.Errorf("could not read events: %w", err)
		}
		for _, evt := range evts {
			fmt.Fprintf(sh.w, "%v\n", evt)
		}

	case "raw":
		if len(args) == 0 {
			return false, fmt.Errorf("missing raw request")
		}
		reply, err := sh.cli.Do([]byte(strings.Join(args, " ")))
		if err != nil {
			return false, fmt.Errorf("could not send raw request: %w", err)
		}
		fmt.Fprintf(sh.w, "%q\n", reply)

	case "help":
		fmt.Fprintf(sh.w, `commands:
 start     start the acquisition
 stop      stop the acquisition
 read [n]  read up to n events (default: 1)
 raw <req> send a raw request to the server
 help      print this help message
 quit      exit the shell
`)

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}

	return false, nil
}
