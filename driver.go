// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"strings"
	"time"
)

// Driver is the capability surface of the GPIO controller under test.
//
// The harness only observes the success or failure of each call and the
// levels reported by Level.  How the driver programs its registers, and how
// it serialises access to them, is its own business.
type Driver interface {
	// PortInfo returns the geometry of the named port.
	//
	// Returns ErrNotReady if the port cannot be used.
	PortInfo(port string) (PortInfo, error)

	// Configure applies the direction, pull and drive flags to the pin.
	Configure(pin PinHandle, flags Flags) error

	// ConfigureInterrupt sets the interrupt trigger for the pin.
	ConfigureInterrupt(pin PinHandle, trigger Trigger) error

	// SetLevel drives an output pin to the given level (0 or 1).
	SetLevel(pin PinHandle, level int) error

	// Level returns the current level of the pin (0 or 1).
	Level(pin PinHandle) (int, error)

	// RegisterCallback adds a handler for interrupts on any of the pins in
	// the mask.
	RegisterCallback(port string, mask PinMask, h Handler) (Registration, error)

	// UnregisterCallback removes a handler added by RegisterCallback.
	UnregisterCallback(r Registration) error
}

// PortInfo describes the geometry of a port.
type PortInfo struct {
	// The name identifying the port to the driver.
	Name string

	// The number of pins on the port.
	NumPins int

	// The number of pins sharing one hardware register word.
	//
	// Pins p and q share a register bank if p/BankWidth == q/BankWidth.
	BankWidth int

	// The capabilities common to all pins on the port.
	Caps Capability
}

// Bank returns the index of the register bank containing the pin.
func (pi PortInfo) Bank(pin int) int {
	if pi.BankWidth <= 0 {
		return 0
	}
	return pin / pi.BankWidth
}

// Flags describe a pin configuration request.
//
// The zero value, Disconnected, releases the pin to a high impedance state.
type Flags uint32

const (
	// Pin is an input.
	Input Flags = 1 << iota

	// Pin is an output.
	Output

	// Output is initialised low.
	OutputInitLow

	// Output is initialised high.
	OutputInitHigh

	// Internal pull-up enabled.
	PullUp

	// Internal pull-down enabled.
	PullDown
)

const (
	// Disconnected releases the pin.
	Disconnected Flags = 0

	// OutputLow is an output initially driven low.
	OutputLow = Output | OutputInitLow

	// OutputHigh is an output initially driven high.
	OutputHigh = Output | OutputInitHigh

	// InputPullUp is an input with the pull-up enabled.
	InputPullUp = Input | PullUp

	// InputPullDown is an input with the pull-down enabled.
	InputPullDown = Input | PullDown
)

// IsOutput returns true if the flags request an output.
func (f Flags) IsOutput() bool {
	return f&Output != 0
}

// IsInput returns true if the flags request an input.
func (f Flags) IsInput() bool {
	return f&Input != 0
}

// InitialLevel returns the level an output is initialised to.
func (f Flags) InitialLevel() int {
	if f&OutputInitHigh != 0 {
		return 1
	}
	return 0
}

// Validate checks the flags do not contradict each other.
//
// Returns ErrRejectedFlags if they do.
func (f Flags) Validate() error {
	switch {
	case f&(Input|Output) == Input|Output,
		f&(PullUp|PullDown) == PullUp|PullDown,
		f&(OutputInitLow|OutputInitHigh) == OutputInitLow|OutputInitHigh,
		f&(OutputInitLow|OutputInitHigh) != 0 && f&Output == 0,
		f&(PullUp|PullDown) != 0 && f&(Input|Output) == 0:
		return ErrRejectedFlags
	}
	return nil
}

func (f Flags) String() string {
	if f == Disconnected {
		return "disconnected"
	}
	var parts []string
	names := []struct {
		f    Flags
		name string
	}{
		{Input, "input"},
		{Output, "output"},
		{OutputInitLow, "init-low"},
		{OutputInitHigh, "init-high"},
		{PullUp, "pull-up"},
		{PullDown, "pull-down"},
	}
	for _, n := range names {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Trigger is the interrupt trigger mode for a pin.
type Trigger int

const (
	// Interrupts disabled.
	TriggerDisabled Trigger = iota

	// Interrupt on the low to high transition.
	TriggerEdgeRising

	// Interrupt on the high to low transition.
	TriggerEdgeFalling

	// Interrupt on either transition.
	TriggerEdgeBoth

	// Interrupt while the pin is high.
	TriggerLevelHigh

	// Interrupt while the pin is low.
	TriggerLevelLow
)

// IsLevel returns true for the level sensitive triggers.
func (t Trigger) IsLevel() bool {
	return t == TriggerLevelHigh || t == TriggerLevelLow
}

func (t Trigger) String() string {
	switch t {
	case TriggerDisabled:
		return "disabled"
	case TriggerEdgeRising:
		return "edge-rising"
	case TriggerEdgeFalling:
		return "edge-falling"
	case TriggerEdgeBoth:
		return "edge-both"
	case TriggerLevelHigh:
		return "level-high"
	case TriggerLevelLow:
		return "level-low"
	default:
		return "unknown"
	}
}

// Triggers returns all trigger modes, starting with TriggerDisabled.
func Triggers() []Trigger {
	return []Trigger{
		TriggerDisabled,
		TriggerEdgeRising,
		TriggerEdgeFalling,
		TriggerEdgeBoth,
		TriggerLevelHigh,
		TriggerLevelLow,
	}
}

// PinMask is a bitmap of pins within a port.
type PinMask uint64

// Has returns true if the pin is set in the mask.
func (m PinMask) Has(pin int) bool {
	return pin >= 0 && pin < 64 && m&(1<<uint(pin)) != 0
}

// MaskOf returns the mask containing the given pins.
func MaskOf(pins ...int) PinMask {
	var m PinMask
	for _, p := range pins {
		m |= 1 << uint(p)
	}
	return m
}

// Event is an interrupt notification delivered to a Handler.
type Event struct {
	// The port the interrupt occurred on.
	Port string

	// The pins that triggered the interrupt.
	Pins PinMask

	// The level of the triggering pin when the interrupt was detected.
	Level int

	// The time the interrupt was detected, if the driver provides one,
	// else zero.
	//
	// The clock is driver specific, e.g. CLOCK_MONOTONIC for cdev.
	Timestamp time.Duration
}

// Handler receives interrupt notifications.
//
// Handlers are called from the driver's dispatch context and must not block.
type Handler func(Event)

// Registration identifies a registered Handler.
type Registration struct {
	id   uint64
	port string
	mask PinMask
}

// Port returns the port the registration applies to.
func (r Registration) Port() string {
	return r.port
}

// Mask returns the pins the registration applies to.
func (r Registration) Mask() PinMask {
	return r.mask
}

// IsZero returns true for the zero Registration.
func (r Registration) IsZero() bool {
	return r.id == 0
}
