// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package memsim

import "github.com/warthog618/go-gpioharness"

// DefaultBankWidth is the number of lines sharing a register word, unless
// overridden with WithBankWidth.
const DefaultBankWidth = 32

// Bank contains the information required to configure a chip in a Sim.
type Bank struct {
	// The number of lines simulated by this bank/chip.
	NumLines int

	// The label of the chip.
	Label string

	// The number of lines sharing each register word.
	Width int

	// The capabilities reported for the chip.
	Caps gpioharness.Capability

	// Lines assigned an identifying name.
	//
	// Line names do not need to be unique.
	Names map[int]string

	// Lines that appear to be already in use by some other entity.
	Hogs map[int]Hog

	// Loopback wiring, mapping each input line to the line driving it.
	Wires map[int]int
}

// NewBank constructs a Bank with the label, numLines and options provided.
//
// The numLines is the number of lines to be simulated, and may not exceed 64.
//
// The label is informational.
// In a testing context the label can be used to identify the role of the chip
// in the test.
//
// The available options are [WithNamedLine], [WithHoggedLine],
// [WithLoopback], [WithBankWidth] and [WithCapabilities].
func NewBank(label string, numLines int, options ...NewBankOption) *Bank {
	b := &Bank{
		Label:    label,
		NumLines: numLines,
		Width:    DefaultBankWidth,
		Caps:     gpioharness.CapAll,
	}
	for _, o := range options {
		o.applyBankOption(b)
	}
	return b
}

// Hog contains the details of a line hog, i.e. some other user of a line.
type Hog struct {
	// The name of the consumer that appears to be using the line.
	Consumer string

	// The requested direction for the hogged line, and if an
	// output then the level it is driven to.
	Direction HogDirection
}

// HogDirection indicates the direction of a hogged line.
type HogDirection int

const (
	// Hogged line is requested as an input.
	HogDirectionInput HogDirection = iota

	// Hogged line is requested as an output driven low.
	HogDirectionOutputLow

	// Hogged line is requested as an output driven high.
	HogDirectionOutputHigh
)
