// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package memsim

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpioharness"
)

// Sim is an in-process simulator of a GPIO controller with banked registers.
//
// Each simulated chip is available through Chips, in the same order the banks
// were added to NewSim.
//
// Sim implements gpioharness.Driver, with each chip being a port.
// Interrupt callbacks are delivered from a single goroutine owned by the Sim.
type Sim struct {
	// The name of the simulator.
	//
	// The chip names are derived from it.
	Name string

	// The details of the chips being simulated.
	Chips []Chip

	disp *gpioharness.Dispatcher
}

var _ gpioharness.Driver = (*Sim)(nil)

// NewSim contstructs a Sim based on the provided options.
//
// The available options are [WithName], [WithBank], [WithUnlockedBanks] and
// [WithQueueDepth].
//
// If no name is provided then a unique name is automatically generated.
//
// At least one WithBank option must be provided.
func NewSim(options ...NewSimOption) (*Sim, error) {
	b := builder{}
	for _, o := range options {
		o.applySimOption(&b)
	}
	return b.live()
}

// Close stops interrupt delivery.
func (s *Sim) Close() {
	s.disp.Close()
}

// Chip returns the chip with the given name.
func (s *Sim) Chip(name string) (*Chip, error) {
	for i := range s.Chips {
		if s.Chips[i].chipName == name {
			return &s.Chips[i], nil
		}
	}
	return nil, errors.Wrapf(gpioharness.ErrUnknownPort, "%s", name)
}

// Drops returns the number of interrupt events dropped because the event
// queue was full.
func (s *Sim) Drops() uint32 {
	return s.disp.Drops()
}

// PortInfo returns the geometry of the named chip.
func (s *Sim) PortInfo(port string) (gpioharness.PortInfo, error) {
	c, err := s.Chip(port)
	if err != nil {
		return gpioharness.PortInfo{}, err
	}
	return c.info(), nil
}

// Configure applies the flags to the line.
func (s *Sim) Configure(pin gpioharness.PinHandle, flags gpioharness.Flags) error {
	c, err := s.Chip(pin.Port())
	if err != nil {
		return err
	}
	return c.configure(pin.Pin(), flags)
}

// ConfigureInterrupt sets the interrupt trigger for the line.
func (s *Sim) ConfigureInterrupt(pin gpioharness.PinHandle, trigger gpioharness.Trigger) error {
	c, err := s.Chip(pin.Port())
	if err != nil {
		return err
	}
	return c.configureInterrupt(pin.Pin(), trigger)
}

// SetLevel drives an output line.
func (s *Sim) SetLevel(pin gpioharness.PinHandle, level int) error {
	c, err := s.Chip(pin.Port())
	if err != nil {
		return err
	}
	return c.setLevel(pin.Pin(), level)
}

// Level returns the level of a configured line.
func (s *Sim) Level(pin gpioharness.PinHandle) (int, error) {
	c, err := s.Chip(pin.Port())
	if err != nil {
		return 0, err
	}
	return c.read(pin.Pin())
}

// RegisterCallback adds a handler for interrupts on the lines in the mask.
func (s *Sim) RegisterCallback(port string, mask gpioharness.PinMask, h gpioharness.Handler) (gpioharness.Registration, error) {
	c, err := s.Chip(port)
	if err != nil {
		return gpioharness.Registration{}, err
	}
	if mask == 0 || (c.cfg.NumLines < 64 && mask>>uint(c.cfg.NumLines) != 0) {
		return gpioharness.Registration{}, errors.Wrapf(gpioharness.ErrInvalidPin, "%s: mask %#x", port, uint64(mask))
	}
	return s.disp.Register(port, mask, h), nil
}

// UnregisterCallback removes a handler added by RegisterCallback.
func (s *Sim) UnregisterCallback(r gpioharness.Registration) error {
	return s.disp.Unregister(r)
}

// builder contains all the information required to build a sim.
type builder struct {
	// The name for the simulator.
	//
	// If empty when live is called then a unique name is generated.
	name string // optional

	// The details of the banks to be simulated.
	//
	// Each bank becomes a chip when the simulator goes live.
	banks []Bank

	// Don't serialise register updates.
	unlocked bool

	// The depth of the interrupt event queue.
	depth int
}

// live checks the configuration and builds the sim.
func (b *builder) live() (*Sim, error) {
	if len(b.banks) == 0 {
		return nil, errors.New("no banks defined")
	}
	if len(b.name) == 0 {
		b.name = uniqueName()
	}
	for i, k := range b.banks {
		if err := k.check(); err != nil {
			return nil, errors.Wrapf(err, "bank %d (%s)", i, k.Label)
		}
	}
	s := Sim{
		Name:  b.name,
		Chips: make([]Chip, len(b.banks)),
		disp:  gpioharness.NewDispatcher(b.depth),
	}
	clock := gpioharness.NewMonotonicTimer()
	for i, k := range b.banks {
		s.Chips[i].init(fmt.Sprintf("%s-%d", b.name, i), k, b.unlocked, s.disp, clock)
	}
	return &s, nil
}

// check confirms the bank configuration is consistent.
func (k *Bank) check() error {
	if k.NumLines < 1 || k.NumLines > 64 {
		return errors.Errorf("invalid number of lines: %d", k.NumLines)
	}
	if k.Width < 1 || k.Width > 32 {
		return errors.Errorf("invalid bank width: %d", k.Width)
	}
	for in, out := range k.Wires {
		if in < 0 || in >= k.NumLines || out < 0 || out >= k.NumLines {
			return errors.Errorf("loopback %d->%d out of range", out, in)
		}
		if in == out {
			return errors.Errorf("line %d looped back to itself", in)
		}
	}
	for o := range k.Hogs {
		if o < 0 || o >= k.NumLines {
			return errors.Errorf("hogged line %d out of range", o)
		}
	}
	return nil
}

var simCounter uint32 = 0

// uniqueName returns a name for the sim that is very likely to be unique, using the
// appname, PID and a monotonic atomic counter.
func uniqueName() string {
	return fmt.Sprintf("%s-p%d-%d", appName(), os.Getpid(), atomic.AddUint32(&simCounter, 1))
}

// appName returns the name of the running execuable.
//
// Falls back to "memsim" if that can't be determined for some reason.
func appName() string {
	str, err := os.Executable()
	if err != nil {
		return "memsim"
	}
	return path.Base(str)
}
