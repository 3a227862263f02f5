// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package simwire

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiosim"
)

// Pair identifies a loopback pair by line offset.
type Pair struct {
	Output int
	Input  int
}

// Bench is a gpio-sim chip with loopback pairs wired.
type Bench struct {
	*gpiosim.Sim

	// The wires, in the order the pairs were provided.
	Wires []*Wire
}

// NewBench creates a single chip gpio-sim with numLines lines, and wires the
// loopback pairs.
//
// The wired lines are named after their role, e.g. "out0" and "in0", to
// assist in identifying them with tools such as gpioinfo.
func NewBench(numLines int, pairs []Pair, options ...Option) (*Bench, error) {
	var bopts []gpiosim.NewBankOption
	for i, p := range pairs {
		bopts = append(bopts,
			gpiosim.WithNamedLine(p.Output, fmt.Sprintf("out%d", i)),
			gpiosim.WithNamedLine(p.Input, fmt.Sprintf("in%d", i)))
	}
	s, err := gpiosim.NewSim(gpiosim.WithBank(gpiosim.NewBank("gpioharness", numLines, bopts...)))
	if err != nil {
		return nil, errors.Wrap(err, "create gpio-sim")
	}
	b := &Bench{Sim: s}
	for _, p := range pairs {
		w, err := Connect(&s.Chips[0], p.Output, p.Input, options...)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Wires = append(b.Wires, w)
	}
	return b, nil
}

// Port returns the name of the chip, as used by the cdev driver.
//
// e.g. "gpiochip0"
func (b *Bench) Port() string {
	return b.Chips[0].ChipName()
}

// Chip returns the simulated chip.
func (b *Bench) Chip() *gpiosim.Chip {
	return &b.Chips[0]
}

// Close disconnects the wires and deconstructs the sim.
func (b *Bench) Close() {
	for _, w := range b.Wires {
		w.Close()
	}
	b.Wires = nil
	b.Sim.Close()
}
