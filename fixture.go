// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Fixture binds and validates the pins used by a scenario, and owns the
// callback registrations made on them.
//
// Close returns every bound pin to Disconnected, with interrupts disabled,
// and removes any outstanding registrations.
type Fixture struct {
	drv  Driver
	log  *slog.Logger
	pins []PinHandle
	regs []Registration
}

// NewFixture creates a Fixture for pins on the driver.
//
// The available options are [WithLogger].
func NewFixture(drv Driver, options ...Option) *Fixture {
	e := newEnv(options)
	return &Fixture{drv: drv, log: e.log}
}

// Driver returns the driver the fixture binds pins on.
func (f *Fixture) Driver() Driver {
	return f.drv
}

// Bind validates and binds a pin.
//
// The port must be ready, the pin must be within range, and the port must
// support all the capabilities declared in caps.
func (f *Fixture) Bind(port string, pin int, caps Capability) (PinHandle, error) {
	info, err := f.drv.PortInfo(port)
	if err != nil {
		return PinHandle{}, errors.Wrapf(err, "port %s", port)
	}
	if pin < 0 || pin >= info.NumPins || pin >= 64 {
		return PinHandle{}, errors.Wrapf(ErrInvalidPin, "%s:%d (port has %d pins)", port, pin, info.NumPins)
	}
	if missing := caps &^ info.Caps; missing != 0 {
		return PinHandle{}, errors.Wrapf(ErrRejectedFlags, "%s:%d lacks capabilities %s", port, pin, missing)
	}
	for _, p := range f.pins {
		if p.port == port && p.pin == pin {
			return PinHandle{}, errors.Errorf("%s:%d already bound", port, pin)
		}
	}
	h := PinHandle{port: port, pin: pin, caps: caps}
	f.pins = append(f.pins, h)
	f.log.Debug("bound pin", "pin", h.String(), "caps", caps.String())
	return h, nil
}

// BindPair binds the two pins of a loopback pair.
func (f *Fixture) BindPair(port string, out, in int) (Pair, error) {
	o, err := f.Bind(port, out, CapOutput)
	if err != nil {
		return Pair{}, err
	}
	i, err := f.Bind(port, in, CapInput|CapPull|CapInterrupt)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Output: o, Input: i}, nil
}

// PortInfo returns the geometry of the port containing the pin.
func (f *Fixture) PortInfo(p PinHandle) (PortInfo, error) {
	return f.drv.PortInfo(p.port)
}

// Pins returns the pins bound by the fixture.
func (f *Fixture) Pins() []PinHandle {
	return append([]PinHandle(nil), f.pins...)
}

// Register adds a callback for the pins in the mask.
//
// At most one registration may be active for any pin.
func (f *Fixture) Register(port string, mask PinMask, h Handler) (Registration, error) {
	for _, r := range f.regs {
		if r.port == port && r.mask&mask != 0 {
			return Registration{}, errors.Errorf("%s: pins %#x already have a callback", port, uint64(r.mask&mask))
		}
	}
	r, err := f.drv.RegisterCallback(port, mask, h)
	if err != nil {
		return Registration{}, err
	}
	f.regs = append(f.regs, r)
	return r, nil
}

// Unregister removes a callback added by Register.
func (f *Fixture) Unregister(r Registration) error {
	for i, rr := range f.regs {
		if rr == r {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return f.drv.UnregisterCallback(r)
		}
	}
	return ErrUnknownRegistration
}

// Close tears down everything the fixture set up.
//
// All teardown steps are attempted, and the first error encountered is
// returned.
func (f *Fixture) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, r := range f.regs {
		keep(f.drv.UnregisterCallback(r))
	}
	f.regs = nil
	for _, p := range f.pins {
		if p.caps&CapInterrupt != 0 {
			keep(f.drv.ConfigureInterrupt(p, TriggerDisabled))
		}
		keep(f.drv.Configure(p, Disconnected))
	}
	if first != nil {
		f.log.Warn("fixture teardown incomplete", "err", first)
	}
	return first
}
