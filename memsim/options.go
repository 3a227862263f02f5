// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package memsim

import "github.com/warthog618/go-gpioharness"

// NewSimOption defines the interface required to provide an option to NewSim.
type NewSimOption interface {
	applySimOption(*builder)
}

// WithBank returns an option that adds the given bank to the Sim.
func WithBank(b *Bank) Bank {
	return *b
}

func (o Bank) applySimOption(b *builder) {
	b.banks = append(b.banks, Bank(o))
}

// NameOption defines the name for a Sim.
type NameOption string

// WithName returns an option that defines the name of a Sim.
//
// The name prefixes the chip names, so sims with different names may be
// used side by side.
func WithName(name string) NameOption {
	return NameOption(name)
}

func (o NameOption) applySimOption(b *builder) {
	b.name = string(o)
}

// UnlockedBanksOption disables the serialisation of register updates.
type UnlockedBanksOption struct{}

// WithUnlockedBanks returns an option that removes the locking around the
// read-modify-write of the shared bank registers.
//
// This emulates a broken driver, so concurrent configuration of lines in the
// same bank may lose updates.
func WithUnlockedBanks() UnlockedBanksOption {
	return UnlockedBanksOption{}
}

func (o UnlockedBanksOption) applySimOption(b *builder) {
	b.unlocked = true
}

// QueueDepthOption sets the depth of the interrupt event queue.
type QueueDepthOption int

// WithQueueDepth returns an option that sets the number of interrupt events
// that may be pending delivery before further events are dropped.
func WithQueueDepth(depth int) QueueDepthOption {
	return QueueDepthOption(depth)
}

func (o QueueDepthOption) applySimOption(b *builder) {
	b.depth = int(o)
}

// NewBankOption defines the interface required to provide an option to NewBank.
type NewBankOption interface {
	applyBankOption(*Bank)
}

// HoggedLine is an option that hogs a line.
type HoggedLine struct {
	offset int
	Hog
}

// WithHoggedLine returns an option to hog a simulated line.
//
// Hogging the line makes it appear in use by another consumer, so attempts
// to configure it fail with ErrNotReady.
func WithHoggedLine(offset int, consumer string, direction HogDirection) HoggedLine {
	return HoggedLine{offset, Hog{consumer, direction}}
}

func (o HoggedLine) applyBankOption(b *Bank) {
	if b.Hogs == nil {
		b.Hogs = make(map[int]Hog)
	}
	b.Hogs[o.offset] = o.Hog
}

// NamedLine is an option that names a line.
type NamedLine struct {
	Offset int
	Name   string
}

// WithNamedLine returns an option that defines the name of a simulated line.
func WithNamedLine(offset int, name string) NamedLine {
	return NamedLine{offset, name}
}

func (o NamedLine) applyBankOption(b *Bank) {
	if b.Names == nil {
		b.Names = make(map[int]string)
	}
	b.Names[o.Offset] = o.Name
}

// Loopback is an option that wires an output line to an input line.
type Loopback struct {
	Output int
	Input  int
}

// WithLoopback returns an option that wires the output line to the input
// line.
//
// While the output line is configured as an output, the input line reads
// the level it drives, overriding any pull.
func WithLoopback(out, in int) Loopback {
	return Loopback{out, in}
}

func (o Loopback) applyBankOption(b *Bank) {
	if b.Wires == nil {
		b.Wires = make(map[int]int)
	}
	b.Wires[o.Input] = o.Output
}

// BankWidthOption sets the number of lines sharing a register word.
type BankWidthOption int

// WithBankWidth returns an option that sets the number of lines sharing each
// register word.  The width is clamped to the range 1..32.
func WithBankWidth(width int) BankWidthOption {
	return BankWidthOption(width)
}

func (o BankWidthOption) applyBankOption(b *Bank) {
	w := int(o)
	if w < 1 {
		w = 1
	}
	if w > 32 {
		w = 32
	}
	b.Width = w
}

// CapabilitiesOption sets the capabilities reported for a chip.
type CapabilitiesOption gpioharness.Capability

// WithCapabilities returns an option that limits the capabilities reported
// for the chip.
func WithCapabilities(caps gpioharness.Capability) CapabilitiesOption {
	return CapabilitiesOption(caps)
}

func (o CapabilitiesOption) applyBankOption(b *Bank) {
	b.Caps = gpioharness.Capability(o)
}
