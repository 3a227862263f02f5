// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpioharness"
	"github.com/warthog618/go-gpioharness/memsim"
)

// newSim creates a single chip memsim with 16 lines, returning the sim and
// the port name of the chip.
func newSim(t *testing.T, options ...memsim.NewBankOption) (*memsim.Sim, string) {
	t.Helper()
	s, err := memsim.NewSim(memsim.WithBank(memsim.NewBank("harness", 16, options...)))
	require.Nil(t, err)
	t.Cleanup(s.Close)
	return s, s.Chips[0].ChipName()
}

// fastValidatorConfig suits the synchronous levels of memsim.
func fastValidatorConfig() gpioharness.ValidatorConfig {
	return gpioharness.ValidatorConfig{
		LevelSettle:        gpioharness.SleepFor(time.Millisecond),
		EdgeSettle:         gpioharness.SpinFor(200 * time.Microsecond),
		LevelTriggerSettle: gpioharness.SleepFor(time.Millisecond),
		Repeat:             1,
	}
}

// faultyDriver wraps a Driver, injecting errors from the hooks that are set.
type faultyDriver struct {
	gpioharness.Driver
	configure          func(pin gpioharness.PinHandle, flags gpioharness.Flags) error
	configureInterrupt func(pin gpioharness.PinHandle, trig gpioharness.Trigger) error
	level              func(pin gpioharness.PinHandle) error
}

func (d *faultyDriver) Configure(pin gpioharness.PinHandle, flags gpioharness.Flags) error {
	if d.configure != nil {
		if err := d.configure(pin, flags); err != nil {
			return err
		}
	}
	return d.Driver.Configure(pin, flags)
}

func (d *faultyDriver) ConfigureInterrupt(pin gpioharness.PinHandle, trig gpioharness.Trigger) error {
	if d.configureInterrupt != nil {
		if err := d.configureInterrupt(pin, trig); err != nil {
			return err
		}
	}
	return d.Driver.ConfigureInterrupt(pin, trig)
}

func (d *faultyDriver) Level(pin gpioharness.PinHandle) (int, error) {
	if d.level != nil {
		if err := d.level(pin); err != nil {
			return 0, err
		}
	}
	return d.Driver.Level(pin)
}

// frozenTimer is a Timer that never advances.
type frozenTimer struct {
	now gpioharness.Cycles
}

func (t *frozenTimer) Start() {}

func (t *frozenTimer) Stop() {}

func (t *frozenTimer) Now() gpioharness.Cycles {
	return t.now
}

func (t *frozenTimer) Duration(c gpioharness.Cycles) time.Duration {
	return time.Duration(c)
}

// countingPreemption counts the critical sections entered and exited.
type countingPreemption struct {
	entered int
	exited  int
}

func (p *countingPreemption) Suppress() func() {
	p.entered++
	return func() { p.exited++ }
}

func checkLevel(t *testing.T, drv gpioharness.Driver, pin gpioharness.PinHandle, level int) {
	t.Helper()
	v, err := drv.Level(pin)
	require.Nil(t, err, pin.String())
	require.Equal(t, level, v, pin.String())
}
