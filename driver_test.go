// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/warthog618/go-gpioharness"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, gpioharness.StatusOK, gpioharness.StatusOf(nil))
	assert.Equal(t, gpioharness.StatusError, gpioharness.StatusOf(errors.New("plain")))
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(gpioharness.ErrNotReady))
	assert.Equal(t, gpioharness.ErrNotOutput,
		gpioharness.StatusOf(errors.Wrap(gpioharness.ErrNotOutput, "set level")))
	cerr := &gpioharness.ConfigurationError{Op: "configure", Err: gpioharness.ErrRejectedFlags}
	assert.Equal(t, gpioharness.ErrRejectedFlags, gpioharness.StatusOf(cerr))
	assert.Equal(t, "unsupported_trigger", gpioharness.ErrUnsupportedTrigger.Error())
}

func TestFlagsValidate(t *testing.T) {
	valid := []gpioharness.Flags{
		gpioharness.Disconnected,
		gpioharness.Input,
		gpioharness.Output,
		gpioharness.OutputLow,
		gpioharness.OutputHigh,
		gpioharness.InputPullUp,
		gpioharness.InputPullDown,
		gpioharness.Output | gpioharness.PullUp,
	}
	for _, f := range valid {
		assert.Nil(t, f.Validate(), f.String())
	}
	invalid := []gpioharness.Flags{
		gpioharness.Input | gpioharness.Output,
		gpioharness.Input | gpioharness.PullUp | gpioharness.PullDown,
		gpioharness.OutputLow | gpioharness.OutputInitHigh,
		gpioharness.Input | gpioharness.OutputInitHigh,
		gpioharness.PullUp,
	}
	for _, f := range invalid {
		assert.Equal(t, gpioharness.ErrRejectedFlags, f.Validate(), f.String())
	}
}

func TestFlags(t *testing.T) {
	assert.True(t, gpioharness.OutputHigh.IsOutput())
	assert.False(t, gpioharness.OutputHigh.IsInput())
	assert.True(t, gpioharness.InputPullUp.IsInput())
	assert.False(t, gpioharness.Disconnected.IsInput())
	assert.Equal(t, 1, gpioharness.OutputHigh.InitialLevel())
	assert.Equal(t, 0, gpioharness.OutputLow.InitialLevel())
	assert.Equal(t, 0, gpioharness.Output.InitialLevel())

	assert.Equal(t, "disconnected", gpioharness.Disconnected.String())
	assert.Equal(t, "output|init-low", gpioharness.OutputLow.String())
	assert.Equal(t, "input|pull-down", gpioharness.InputPullDown.String())
}

func TestTrigger(t *testing.T) {
	names := []string{"disabled", "edge-rising", "edge-falling", "edge-both", "level-high", "level-low"}
	trigs := gpioharness.Triggers()
	assert.Equal(t, len(names), len(trigs))
	for i, tr := range trigs {
		assert.Equal(t, names[i], tr.String())
		assert.Equal(t, i >= 4, tr.IsLevel(), tr.String())
	}
	assert.Equal(t, "unknown", gpioharness.Trigger(42).String())
}

func TestPortInfoBank(t *testing.T) {
	pi := gpioharness.PortInfo{NumPins: 48, BankWidth: 16}
	assert.Equal(t, 0, pi.Bank(0))
	assert.Equal(t, 0, pi.Bank(15))
	assert.Equal(t, 1, pi.Bank(16))
	assert.Equal(t, 2, pi.Bank(47))
	pi.BankWidth = 0
	assert.Equal(t, 0, pi.Bank(47))
}

func TestPinMask(t *testing.T) {
	m := gpioharness.MaskOf(0, 3, 63)
	assert.Equal(t, gpioharness.PinMask(1|8|1<<63), m)
	assert.True(t, m.Has(0))
	assert.True(t, m.Has(63))
	assert.False(t, m.Has(1))
	assert.False(t, m.Has(-1))
	assert.False(t, m.Has(64))
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "in|out|pull|irq", gpioharness.CapAll.String())
	assert.Equal(t, "out", gpioharness.CapOutput.String())
	assert.Equal(t, "", gpioharness.Capability(0).String())
}

func TestErrors(t *testing.T) {
	cerr := &gpioharness.ConfigurationError{
		Op:    "configure",
		Flags: gpioharness.OutputHigh,
		Err:   gpioharness.ErrRejectedFlags,
	}
	assert.Contains(t, cerr.Error(), "configure output|init-high failed: rejected_flags")
	assert.True(t, errors.Is(cerr, gpioharness.ErrRejectedFlags))

	ierr := &gpioharness.ConfigurationError{
		Op:      "configure interrupt",
		Trigger: gpioharness.TriggerLevelLow,
		Err:     gpioharness.ErrUnsupportedTrigger,
	}
	assert.Contains(t, ierr.Error(), "configure interrupt level-low failed")

	terr := &gpioharness.TimingError{Sample: 3, Timeout: time.Millisecond}
	assert.Contains(t, terr.Error(), "sample 3: no notification within 1ms")
	terr = &gpioharness.TimingError{Sample: -1, Valid: 4, Attempted: 10}
	assert.Contains(t, terr.Error(), "only 4 of 10 samples valid")

	xerr := &gpioharness.ConsistencyError{Op: "readback", Expected: 1, Actual: 0}
	assert.Contains(t, xerr.Error(), "readback: expected 1, got 0")
	xerr.AtLeast = true
	assert.Contains(t, xerr.Error(), "expected at least 1, got 0")

	derr := &gpioharness.DegenerateMeasurement{Op: "output toggle"}
	assert.Equal(t, "output toggle: measured duration was zero", derr.Error())
}
