// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"fmt"
	"strings"
)

// Capability flags describe what a pin may be used for.
type Capability uint8

const (
	// Pin may be an input.
	CapInput Capability = 1 << iota

	// Pin may be an output.
	CapOutput

	// Pin supports internal pull resistors.
	CapPull

	// Pin supports interrupts.
	CapInterrupt
)

const (
	// CapAll is every capability.
	CapAll = CapInput | CapOutput | CapPull | CapInterrupt
)

func (c Capability) String() string {
	var parts []string
	if c&CapInput != 0 {
		parts = append(parts, "in")
	}
	if c&CapOutput != 0 {
		parts = append(parts, "out")
	}
	if c&CapPull != 0 {
		parts = append(parts, "pull")
	}
	if c&CapInterrupt != 0 {
		parts = append(parts, "irq")
	}
	return strings.Join(parts, "|")
}

// PinHandle identifies a pin bound by a Fixture.
//
// A PinHandle is immutable once bound.
type PinHandle struct {
	port string
	pin  int
	caps Capability
}

// Port returns the port containing the pin.
func (p PinHandle) Port() string {
	return p.port
}

// Pin returns the index of the pin within its port.
func (p PinHandle) Pin() int {
	return p.pin
}

// Caps returns the capabilities declared when the pin was bound.
func (p PinHandle) Caps() Capability {
	return p.caps
}

// Mask returns the PinMask containing only this pin.
func (p PinHandle) Mask() PinMask {
	return MaskOf(p.pin)
}

// IsZero returns true for an unbound PinHandle.
func (p PinHandle) IsZero() bool {
	return p.port == ""
}

func (p PinHandle) String() string {
	return fmt.Sprintf("%s:%d", p.port, p.pin)
}

// Pair is a pair of pins wired together externally.
type Pair struct {
	// The pin driving the wire.
	Output PinHandle

	// The pin observing the wire.
	Input PinHandle
}

func (p Pair) String() string {
	return fmt.Sprintf("%s->%s", p.Output, p.Input)
}
