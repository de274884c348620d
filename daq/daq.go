// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq holds the event buffering core of the Silena acquisition:
// a single-producer/single-consumer ring of timestamped ADC events, filled
// from the hardware trigger context and drained by a blocking reader.
package daq // import "github.com/go-lpc/silena/daq"

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// EventSize is the size in bytes of an event in wire layout.
	EventSize = 12

	// DefaultBufferSize is the default number of slots of the event ring.
	DefaultBufferSize = 10000
)

// Event is one timestamped sample produced by the ADC.
type Event struct {
	Sec   int32  // event timestamp, seconds field
	USec  int32  // event timestamp, microseconds field
	Value uint32 // ADC value
}

// NewEvent creates an event for the ADC value v, stamped at t.
func NewEvent(t time.Time, v uint32) Event {
	return Event{
		Sec:   int32(t.Unix()),
		USec:  int32(t.Nanosecond() / 1000),
		Value: v,
	}
}

// Time returns the timestamp of the event.
func (evt Event) Time() time.Time {
	return time.Unix(int64(evt.Sec), int64(evt.USec)*1000)
}

func (evt Event) String() string {
	return fmt.Sprintf("Event{t=%d.%06d, v=%d}", evt.Sec, evt.USec, evt.Value)
}

// AppendEvents appends the wire layout of evts to p and returns the
// extended buffer.
// Each event is encoded as 12 little-endian bytes (sec, usec, value),
// without any padding between events.
func AppendEvents(p []byte, evts ...Event) []byte {
	var buf [EventSize]byte
	for _, evt := range evts {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(evt.Sec))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(evt.USec))
		binary.LittleEndian.PutUint32(buf[8:12], evt.Value)
		p = append(p, buf[:]...)
	}
	return p
}

// DecodeEvents decodes a bulk of events in wire layout.
func DecodeEvents(p []byte) ([]Event, error) {
	if len(p)%EventSize != 0 {
		return nil, fmt.Errorf(
			"daq: invalid events payload size %d (not a multiple of %d)",
			len(p), EventSize,
		)
	}
	evts := make([]Event, len(p)/EventSize)
	for i := range evts {
		buf := p[i*EventSize : (i+1)*EventSize]
		evts[i] = Event{
			Sec:   int32(binary.LittleEndian.Uint32(buf[0:4])),
			USec:  int32(binary.LittleEndian.Uint32(buf[4:8])),
			Value: binary.LittleEndian.Uint32(buf[8:12]),
		}
	}
	return evts, nil
}
