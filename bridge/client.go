// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"fmt"
	"strconv"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	"github.com/go-lpc/silena/daq"
)

// Client sends commands to a bridge server.
type Client struct {
	sock mangos.Socket
}

// Dial connects to the bridge server at addr.
func Dial(addr string) (*Client, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("bridge: could not create socket: %w", err)
	}

	err = sock.Dial(addr)
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("bridge: could not dial %q: %w", addr, err)
	}

	return &Client{sock: sock}, nil
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	err := c.sock.Close()
	if err != nil {
		return fmt.Errorf("bridge: could not close socket: %w", err)
	}
	return nil
}

// Do sends the raw request to the server and returns its raw reply.
func (c *Client) Do(request []byte) ([]byte, error) {
	err := c.sock.Send(request)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not send request %q: %w", request, err)
	}

	reply, err := c.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("bridge: could not receive reply to %q: %w", request, err)
	}
	return reply, nil
}

func (c *Client) cmd(request string) ([]byte, error) {
	reply, err := c.Do([]byte(request))
	if err != nil {
		return nil, err
	}
	return parseReply(reply)
}

// Start starts the acquisition.
func (c *Client) Start() error {
	_, err := c.cmd("S")
	return err
}

// Stop stops the acquisition.
func (c *Client) Stop() error {
	_, err := c.cmd("E")
	return err
}

// Read reads one event.
func (c *Client) Read() (daq.Event, error) {
	evts, err := c.read("R")
	if err != nil {
		return daq.Event{}, err
	}
	if len(evts) != 1 {
		return daq.Event{}, fmt.Errorf("bridge: invalid number of events: got=%d, want=1", len(evts))
	}
	return evts[0], nil
}

// ReadN reads up to n events.
func (c *Client) ReadN(n int) ([]daq.Event, error) {
	if n < 1 {
		return nil, fmt.Errorf("bridge: invalid number of events %d", n)
	}
	return c.read("R " + strconv.Itoa(n))
}

func (c *Client) read(request string) ([]daq.Event, error) {
	raw, err := c.cmd(request)
	if err != nil {
		return nil, err
	}
	evts, err := daq.DecodeEvents(raw)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not decode reply: %w", err)
	}
	return evts, nil
}
