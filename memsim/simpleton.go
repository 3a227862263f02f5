// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package memsim

// Simpleton is a Sim with a single chip.
type Simpleton struct {
	*Sim
}

// NewSimpleton creates a Sim with a single chip of numLines lines.
//
// The options are applied to the bank, so the chip may be given loopback
// wiring and the like.
func NewSimpleton(numLines int, options ...NewBankOption) (*Simpleton, error) {
	s, err := NewSim(WithBank(NewBank("simpleton", numLines, options...)))
	if err != nil {
		return nil, err
	}
	return &Simpleton{s}, nil
}

// ChipName returns the name of the chip, which is the port name used to
// access it through the Driver interface.
func (s *Simpleton) ChipName() string {
	return s.Chips[0].chipName
}

// Config returns the configuration used for the Chip.
func (s *Simpleton) Config() Bank {
	return s.Chips[0].cfg
}

// Level returns the level of the line.
func (s *Simpleton) Level(offset int) (int, error) {
	return s.Chips[0].Level(offset)
}

// Pull returns the current external pull of the given line.
func (s *Simpleton) Pull(offset int) (int, error) {
	return s.Chips[0].Pull(offset)
}

// Pulldown sets the external pull of the given line to pull-down.
func (s *Simpleton) Pulldown(offset int) error {
	return s.Chips[0].Pulldown(offset)
}

// Pullup sets the external pull of the given line to pull-up.
func (s *Simpleton) Pullup(offset int) error {
	return s.Chips[0].Pullup(offset)
}

// SetPull sets the external pull of the given line.
func (s *Simpleton) SetPull(offset int, level int) error {
	return s.Chips[0].SetPull(offset, level)
}

// Toggle flips the external pull of the given line.
func (s *Simpleton) Toggle(offset int) error {
	return s.Chips[0].Toggle(offset)
}
