// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

// Hardware is the collaborator a Device acquires from.
type Hardware interface {
	// Poll returns the ADC value currently presented on the data lines.
	Poll() (uint32, error)

	// Ack acknowledges the sample, releasing the ADC for the next conversion.
	Ack() error

	// Arm registers trigger to be invoked, from the hardware context, on
	// each data-ready edge and enables the acquisition.
	// The trigger callback must not be invoked concurrently with itself.
	Arm(trigger func()) error

	// Disarm disables the acquisition and unregisters the trigger.
	// No trigger invocation is in flight once Disarm returns.
	Disarm() error
}

// Readier is implemented by hardware able to tell whether a conversion is
// waiting to be acknowledged.
// A Device uses it to skip the recovery poll when no sample is pending.
type Readier interface {
	Ready() (bool, error)
}
