// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package memsim

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpioharness"
)

// field identifies one of the per bank registers.
type field int

const (
	fieldOut field = iota
	fieldDir
	fieldInEn
	fieldPullEn
	fieldPullUp
	numFields
)

// registers is the register file for one bank, with one bit per line.
type registers [numFields]atomic.Uint32

type regWrite struct {
	f field
	v bool
}

// Chip provides the interface to a simulated chip.
//
// Lines are identified by offset into the chip, with offsets
// being in the range 0..Config().NumLines-1.
//
// The driver side of the chip is accessed through the Sim, which implements
// gpioharness.Driver.  The methods of Chip act on the external side of the
// lines, as a test fixture wired to the chip would.
type Chip struct {
	// The name of the chip, used as the port name.
	chipName string

	// The configuration for this chip
	cfg Bank

	// Don't serialise register updates.
	unlocked bool

	disp  *gpioharness.Dispatcher
	clock gpioharness.Timer

	banks  []registers
	bankMu []sync.Mutex

	// external pulls, one bit per line
	ext atomic.Uint64

	// interrupt controller state
	mu    sync.Mutex
	trig  []gpioharness.Trigger
	armed []bool
	last  []int
}

func (c *Chip) init(name string, cfg Bank, unlocked bool, disp *gpioharness.Dispatcher, clock gpioharness.Timer) {
	c.chipName = name
	c.cfg = cfg
	c.unlocked = unlocked
	c.disp = disp
	c.clock = clock
	nb := (cfg.NumLines + cfg.Width - 1) / cfg.Width
	c.banks = make([]registers, nb)
	c.bankMu = make([]sync.Mutex, nb)
	c.trig = make([]gpioharness.Trigger, cfg.NumLines)
	c.armed = make([]bool, cfg.NumLines)
	c.last = make([]int, cfg.NumLines)
	for o := range c.last {
		c.last[o] = c.computeLevel(o)
	}
}

// ChipName returns the name of the chip.
//
// e.g. "memsim-0"
func (c *Chip) ChipName() string {
	return c.chipName
}

// Config returns the configuration used for the Chip.
func (c *Chip) Config() Bank {
	return c.cfg
}

// Level returns the level of the line.
//
// If the line is configured as an output then this is the level it is being
// driven to.  Otherwise it is the level the line would read as an input.
func (c *Chip) Level(offset int) (int, error) {
	if err := c.checkOffset(offset); err != nil {
		return LevelInactive, err
	}
	return c.computeLevel(offset), nil
}

const (
	// Line is inactive.
	LevelInactive int = iota

	// Line is active.
	LevelActive
)

// Pull returns the current external pull of the given line.
func (c *Chip) Pull(offset int) (int, error) {
	if err := c.checkOffset(offset); err != nil {
		return LevelInactive, err
	}
	return int(c.ext.Load()>>uint(offset)) & 1, nil
}

// Pulldown sets the external pull of the given line to pull-down.
func (c *Chip) Pulldown(offset int) error {
	return c.SetPull(offset, LevelInactive)
}

// Pullup sets the external pull of the given line to pull-up.
func (c *Chip) Pullup(offset int) error {
	return c.SetPull(offset, LevelActive)
}

// SetPull sets the external pull of the given line.
//
// The external pull determines the level of an input line that is neither
// wired to an output nor internally pulled.
func (c *Chip) SetPull(offset int, level int) error {
	if err := c.checkOffset(offset); err != nil {
		return err
	}
	bit := uint64(1) << uint(offset)
	for {
		old := c.ext.Load()
		nv := old &^ bit
		if level == LevelActive {
			nv |= bit
		}
		if c.ext.CompareAndSwap(old, nv) {
			break
		}
	}
	c.evaluate()
	return nil
}

// Toggle flips the external pull of the given line.
//
// If it was pull-up it becomes pull-down, and vice versa.
func (c *Chip) Toggle(offset int) error {
	p, err := c.Pull(offset)
	if err != nil {
		return err
	}
	return c.SetPull(offset, p^1)
}

func (c *Chip) checkOffset(offset int) error {
	if offset < 0 || offset >= c.cfg.NumLines {
		return errors.Wrapf(gpioharness.ErrInvalidPin, "%s: offset %d", c.chipName, offset)
	}
	return nil
}

func (c *Chip) checkDriverOffset(offset int) error {
	if err := c.checkOffset(offset); err != nil {
		return err
	}
	if h, ok := c.cfg.Hogs[offset]; ok {
		return errors.Wrapf(gpioharness.ErrNotReady, "%s: offset %d in use by %s", c.chipName, offset, h.Consumer)
	}
	return nil
}

func (c *Chip) info() gpioharness.PortInfo {
	return gpioharness.PortInfo{
		Name:      c.chipName,
		NumPins:   c.cfg.NumLines,
		BankWidth: c.cfg.Width,
		Caps:      c.cfg.Caps,
	}
}

// configure programs the line registers for the flags.
func (c *Chip) configure(offset int, flags gpioharness.Flags) error {
	if err := c.checkDriverOffset(offset); err != nil {
		return err
	}
	if err := flags.Validate(); err != nil {
		return err
	}
	switch {
	case flags.IsOutput() && c.cfg.Caps&gpioharness.CapOutput == 0,
		flags.IsInput() && c.cfg.Caps&gpioharness.CapInput == 0,
		flags&(gpioharness.PullUp|gpioharness.PullDown) != 0 && c.cfg.Caps&gpioharness.CapPull == 0:
		return gpioharness.ErrRejectedFlags
	}
	pullEn := flags&(gpioharness.PullUp|gpioharness.PullDown) != 0
	pullUp := flags&gpioharness.PullUp != 0
	switch {
	case flags.IsOutput():
		// level before direction, so the line never glitches
		c.modify(offset,
			regWrite{fieldOut, flags.InitialLevel() == 1},
			regWrite{fieldPullEn, pullEn},
			regWrite{fieldPullUp, pullUp},
			regWrite{fieldInEn, false},
			regWrite{fieldDir, true})
	case flags.IsInput():
		c.modify(offset,
			regWrite{fieldDir, false},
			regWrite{fieldPullEn, pullEn},
			regWrite{fieldPullUp, pullUp},
			regWrite{fieldInEn, true})
	default:
		c.modify(offset,
			regWrite{fieldDir, false},
			regWrite{fieldInEn, false},
			regWrite{fieldPullEn, false},
			regWrite{fieldPullUp, false})
		c.mu.Lock()
		c.trig[offset] = gpioharness.TriggerDisabled
		c.mu.Unlock()
	}
	c.evaluate()
	return nil
}

// configureInterrupt sets the trigger for the line.
//
// A level trigger armed while its level is already asserted fires
// immediately.
func (c *Chip) configureInterrupt(offset int, trig gpioharness.Trigger) error {
	if err := c.checkDriverOffset(offset); err != nil {
		return err
	}
	if trig < gpioharness.TriggerDisabled || trig > gpioharness.TriggerLevelLow {
		return gpioharness.ErrUnsupportedTrigger
	}
	if trig != gpioharness.TriggerDisabled && c.cfg.Caps&gpioharness.CapInterrupt == 0 {
		return gpioharness.ErrUnsupportedTrigger
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.computeLevel(offset)
	c.trig[offset] = trig
	c.last[offset] = v
	c.armed[offset] = true
	switch trig {
	case gpioharness.TriggerLevelHigh:
		if c.levelFire(offset, v == 1) {
			c.post(offset, v)
		}
	case gpioharness.TriggerLevelLow:
		if c.levelFire(offset, v == 0) {
			c.post(offset, v)
		}
	}
	return nil
}

// setLevel drives an output line.
func (c *Chip) setLevel(offset int, level int) error {
	if err := c.checkDriverOffset(offset); err != nil {
		return err
	}
	if !c.bit(fieldDir, offset) {
		return gpioharness.ErrNotOutput
	}
	c.modify(offset, regWrite{fieldOut, level != 0})
	c.evaluate()
	return nil
}

// read returns the level of a configured line.
func (c *Chip) read(offset int) (int, error) {
	if err := c.checkDriverOffset(offset); err != nil {
		return 0, err
	}
	if !c.bit(fieldDir, offset) && !c.bit(fieldInEn, offset) {
		return 0, errors.Wrapf(gpioharness.ErrNotReady, "%s: offset %d not configured", c.chipName, offset)
	}
	return c.computeLevel(offset), nil
}

// modify performs a read-modify-write of the line's bits in the bank
// registers.
func (c *Chip) modify(offset int, writes ...regWrite) {
	bank := offset / c.cfg.Width
	mask := uint32(1) << uint(offset%c.cfg.Width)
	r := &c.banks[bank]
	if !c.unlocked {
		c.bankMu[bank].Lock()
		defer c.bankMu[bank].Unlock()
	}
	for _, w := range writes {
		old := r[w.f].Load()
		if c.unlocked {
			// widen the window between the read and the write
			runtime.Gosched()
		}
		nv := old &^ mask
		if w.v {
			nv |= mask
		}
		r[w.f].Store(nv)
	}
}

func (c *Chip) bit(f field, offset int) bool {
	bank := offset / c.cfg.Width
	mask := uint32(1) << uint(offset%c.cfg.Width)
	return c.banks[bank][f].Load()&mask != 0
}

func boolToLevel(b bool) int {
	if b {
		return LevelActive
	}
	return LevelInactive
}

// computeLevel determines the level on the line.
//
// In order of precedence, the level is set by a hog, the line's own output,
// the output wired to it, its internal pull, and finally the external pull.
func (c *Chip) computeLevel(offset int) int {
	if h, ok := c.cfg.Hogs[offset]; ok {
		switch h.Direction {
		case HogDirectionOutputHigh:
			return LevelActive
		case HogDirectionOutputLow:
			return LevelInactive
		}
	}
	if c.bit(fieldDir, offset) {
		return boolToLevel(c.bit(fieldOut, offset))
	}
	if src, ok := c.cfg.Wires[offset]; ok && c.bit(fieldDir, src) {
		return boolToLevel(c.bit(fieldOut, src))
	}
	if c.bit(fieldPullEn, offset) {
		return boolToLevel(c.bit(fieldPullUp, offset))
	}
	return int(c.ext.Load()>>uint(offset)) & 1
}

// evaluate updates the interrupt controller with the current line levels,
// posting events for any triggers that fire.
func (c *Chip) evaluate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for o := range c.last {
		v := c.computeLevel(o)
		prev := c.last[o]
		c.last[o] = v
		fire := false
		switch c.trig[o] {
		case gpioharness.TriggerEdgeRising:
			fire = prev == 0 && v == 1
		case gpioharness.TriggerEdgeFalling:
			fire = prev == 1 && v == 0
		case gpioharness.TriggerEdgeBoth:
			fire = prev != v
		case gpioharness.TriggerLevelHigh:
			fire = c.levelFire(o, v == 1)
		case gpioharness.TriggerLevelLow:
			fire = c.levelFire(o, v == 0)
		}
		if fire {
			c.post(o, v)
		}
	}
}

// levelFire returns true if a level trigger should fire.
//
// A level trigger fires once per assertion and re-arms when the level is
// deasserted.
func (c *Chip) levelFire(offset int, asserted bool) bool {
	if !asserted {
		c.armed[offset] = true
		return false
	}
	if c.armed[offset] {
		c.armed[offset] = false
		return true
	}
	return false
}

func (c *Chip) post(offset int, v int) {
	c.disp.Post(gpioharness.Event{
		Port:      c.chipName,
		Pins:      gpioharness.MaskOf(offset),
		Level:     v,
		Timestamp: time.Duration(c.clock.Now()),
	})
}
