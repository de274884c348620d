// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	_ "go.nanomsg.org/mangos/v3/transport/all" // register transports

	"github.com/go-lpc/silena/daq"
)

// Device is the acquisition device served by the bridge.
type Device interface {
	Start() error
	Stop() error
	Read(ctx context.Context, dst []daq.Event) (n, occupancy int, err error)
}

// Option configures a bridge server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(msg *log.Logger) Option {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// WithReadTimeout bounds the time a read request waits for events.
// A zero timeout waits until events are available.
func WithReadTimeout(d time.Duration) Option {
	return func(srv *Server) {
		srv.timeout = d
	}
}

// WithMaxBulk sets the maximum number of events sent in one reply.
func WithMaxBulk(n int) Option {
	return func(srv *Server) {
		srv.maxBulk = n
	}
}

// Server serves the commands of one REQ/REP socket, one at a time.
type Server struct {
	msg     *log.Logger
	addr    string
	dev     Device
	sock    mangos.Socket
	timeout time.Duration
	maxBulk int

	running bool
	evts    []daq.Event
}

// NewServer creates a bridge server for dev, listening on addr.
func NewServer(addr string, dev Device, opts ...Option) (*Server, error) {
	srv := &Server{
		msg:     log.New(os.Stdout, "bridge: ", 0),
		addr:    addr,
		dev:     dev,
		maxBulk: 1024,
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.maxBulk < 1 {
		return nil, fmt.Errorf("bridge: invalid max bulk size %d", srv.maxBulk)
	}
	srv.evts = make([]daq.Event, srv.maxBulk)

	sock, err := rep.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("bridge: could not create socket: %w", err)
	}

	err = sock.Listen(addr)
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("bridge: could not listen on %q: %w", addr, err)
	}
	srv.sock = sock

	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() string { return srv.addr }

// Serve serves requests until ctx is done.
// A running acquisition is stopped when Serve returns.
func (srv *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.sock.Close()
		case <-done:
		}
	}()
	defer srv.shutdown()

	srv.msg.Printf("serving on %q...", srv.addr)
	for {
		req, err := srv.sock.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			return fmt.Errorf("bridge: could not receive request: %w", err)
		}

		err = srv.sock.Send(srv.handle(ctx, req))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			return fmt.Errorf("bridge: could not send reply: %w", err)
		}
	}
}

// Close closes the server socket.
func (srv *Server) Close() error {
	err := srv.sock.Close()
	if err != nil && !errors.Is(err, mangos.ErrClosed) {
		return fmt.Errorf("bridge: could not close socket: %w", err)
	}
	return nil
}

func (srv *Server) shutdown() {
	if !srv.running {
		return
	}
	srv.running = false
	err := srv.dev.Stop()
	if err != nil {
		srv.msg.Printf("could not stop acquisition: %+v", err)
	}
}

func (srv *Server) handle(ctx context.Context, req []byte) []byte {
	if len(req) == 0 {
		return errReply(CodeUnknown)
	}

	switch req[0] {
	case 'S':
		err := srv.dev.Start()
		if err != nil {
			srv.msg.Printf("could not start acquisition: %+v", err)
			return errReply(CodeStart)
		}
		srv.running = true
		return replyOK

	case 'E':
		srv.running = false
		err := srv.dev.Stop()
		if err != nil {
			srv.msg.Printf("could not stop acquisition: %+v", err)
			return errReply(CodeStop)
		}
		return replyOK

	case 'R':
		n := 1
		if arg := bytes.TrimSpace(req[1:]); len(arg) > 0 {
			v, err := strconv.Atoi(string(arg))
			if err != nil || v < 1 {
				srv.msg.Printf("invalid read request %q", req)
				return errReply(CodeInvalid)
			}
			n = v
		}
		if n > srv.maxBulk {
			n = srv.maxBulk
		}

		if !srv.running {
			srv.msg.Printf("data requested but acquisition is not running")
			return errReply(CodeNotRunning)
		}

		evts, err := srv.read(ctx, srv.evts[:n])
		if err != nil {
			srv.msg.Printf("could not read events: %+v", err)
			return errReply(CodeRead)
		}
		return okReply(evts)

	default:
		srv.msg.Printf("unknown command %q", req)
		return errReply(CodeUnknown)
	}
}

func (srv *Server) read(ctx context.Context, dst []daq.Event) ([]daq.Event, error) {
	if srv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, srv.timeout)
		defer cancel()
	}
	n, _, err := srv.dev.Read(ctx, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
