// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bridge exposes an acquisition device over a REQ/REP socket.
//
// Requests are single commands:
//
//	S      start the acquisition
//	E      stop the acquisition
//	R      read one event
//	R <n>  read up to n events
//
// Replies are "OK", "OK " followed by the events in wire layout, or
// "ERR <code>".
package bridge // import "github.com/go-lpc/silena/bridge"

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-lpc/silena/daq"
)

// DefaultAddr is the default address of the bridge server.
const DefaultAddr = "tcp://*:5555"

// Error codes of the bridge protocol.
const (
	CodeStart      = 1 // start failed
	CodeStop       = 2 // stop failed
	CodeNotRunning = 3 // read while the acquisition is not running
	CodeRead       = 4 // read failed or timed out
	CodeUnknown    = 5 // unknown command
	CodeInvalid    = 6 // invalid command argument
)

func codeText(code int) string {
	switch code {
	case CodeStart:
		return "could not start acquisition"
	case CodeStop:
		return "could not stop acquisition"
	case CodeNotRunning:
		return "acquisition not running"
	case CodeRead:
		return "could not read events"
	case CodeUnknown:
		return "unknown command"
	case CodeInvalid:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// Error is an error reply of the bridge server.
type Error struct {
	Code int
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge: server error %d: %s", e.Code, codeText(e.Code))
}

var (
	replyOK   = []byte("OK")
	prefixOK  = []byte("OK ")
	prefixErr = []byte("ERR ")
)

func okReply(evts []daq.Event) []byte {
	rep := make([]byte, 0, len(prefixOK)+len(evts)*daq.EventSize)
	rep = append(rep, prefixOK...)
	return daq.AppendEvents(rep, evts...)
}

func errReply(code int) []byte {
	return []byte("ERR " + strconv.Itoa(code))
}

// parseReply returns the payload of an OK reply, or the error of an ERR reply.
func parseReply(rep []byte) ([]byte, error) {
	switch {
	case bytes.Equal(rep, replyOK):
		return nil, nil
	case bytes.HasPrefix(rep, prefixOK):
		return rep[len(prefixOK):], nil
	case bytes.HasPrefix(rep, prefixErr):
		code, err := strconv.Atoi(string(rep[len(prefixErr):]))
		if err != nil {
			return nil, fmt.Errorf("bridge: invalid error reply %q: %w", rep, err)
		}
		return nil, &Error{Code: code}
	default:
		return nil, fmt.Errorf("bridge: invalid reply %q", rep)
	}
}
