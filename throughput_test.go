// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpioharness"
)

func TestOutputToggle(t *testing.T) {
	s, port := newSim(t)
	toggles := 200000
	if testing.Short() {
		toggles = 10000
	}
	b := gpioharness.NewBenchmark(s, gpioharness.ThroughputConfig{Toggles: toggles})

	res, err := b.OutputToggle(port, 6)
	require.Nil(t, err)
	assert.Equal(t, toggles, res.Toggles)
	assert.Greater(t, int64(res.Elapsed), int64(0))
	assert.Equal(t, res.Elapsed/time.Duration(toggles), res.PerToggle)
	assert.Greater(t, res.TogglesPerSec, 0.0)
	assert.InDelta(t, res.TogglesPerSec/2, res.SquareWaveHz, 1e-6)

	// released
	f := gpioharness.NewFixture(s)
	defer f.Close()
	p, err := f.Bind(port, 6, gpioharness.CapOutput)
	require.Nil(t, err)
	_, err = s.Level(p)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))
}

func TestOutputToggleRoundsUp(t *testing.T) {
	s, port := newSim(t)
	var cp countingPreemption
	b := gpioharness.NewBenchmark(s, gpioharness.ThroughputConfig{Toggles: 1001},
		gpioharness.WithPreemption(&cp))
	res, err := b.OutputToggle(port, 6)
	require.Nil(t, err)
	assert.Equal(t, 1002, res.Toggles)
	assert.Equal(t, 1, cp.entered)
	assert.Equal(t, 1, cp.exited)
}

func TestInputRead(t *testing.T) {
	s, port := newSim(t)
	require.Nil(t, s.Chips[0].Pullup(5))
	b := gpioharness.NewBenchmark(s, gpioharness.ThroughputConfig{Reads: 20000})

	res, err := b.InputRead(port, 5)
	require.Nil(t, err)
	assert.Equal(t, 20000, res.Reads)
	assert.Equal(t, 20000, res.Checksum)
	assert.Greater(t, res.ReadsPerSec, 0.0)
	assert.Equal(t, res.Elapsed/20000, res.PerRead)

	require.Nil(t, s.Chips[0].Pulldown(5))
	res, err = b.InputRead(port, 5)
	require.Nil(t, err)
	assert.Zero(t, res.Checksum)
}

func TestConfigOverhead(t *testing.T) {
	s, port := newSim(t)
	var cp countingPreemption
	b := gpioharness.NewBenchmark(s, gpioharness.ThroughputConfig{ConfigSamples: 50},
		gpioharness.WithPreemption(&cp))

	res, err := b.ConfigOverhead(port, 7)
	require.Nil(t, err)
	// one critical section per configuration
	assert.Equal(t, 11, cp.entered)
	assert.Equal(t, 11, cp.exited)
	names := []string{
		"input",
		"output|init-low",
		"output|init-high",
		"input|pull-up",
		"input|pull-down",
		"disabled",
		"edge-rising",
		"edge-falling",
		"edge-both",
		"level-high",
		"level-low",
	}
	require.Equal(t, len(names), len(res))
	for i, co := range res {
		assert.Equal(t, names[i], co.Name)
		assert.Equal(t, i >= 5, co.Interrupt, co.Name)
		assert.True(t, co.Supported, co.Name)
		assert.Equal(t, 50, co.Samples, co.Name)
		assert.Greater(t, uint64(co.MeanCycles), uint64(0), co.Name)
	}
	assert.Equal(t, gpioharness.OutputHigh, res[2].Flags)
	assert.Equal(t, gpioharness.TriggerEdgeBoth, res[8].Trigger)
}

func TestConfigOverheadUnsupported(t *testing.T) {
	s, port := newSim(t)
	drv := &faultyDriver{
		Driver: s,
		configureInterrupt: func(pin gpioharness.PinHandle, trig gpioharness.Trigger) error {
			if trig.IsLevel() {
				return gpioharness.ErrUnsupportedTrigger
			}
			return nil
		},
	}
	var cp countingPreemption
	b := gpioharness.NewBenchmark(drv, gpioharness.ThroughputConfig{ConfigSamples: 10},
		gpioharness.WithPreemption(&cp))

	res, err := b.ConfigOverhead(port, 7)
	require.Nil(t, err)
	require.Equal(t, 11, len(res))
	// unsupported configurations are not timed
	assert.Equal(t, 9, cp.entered)
	assert.Equal(t, 9, cp.exited)
	for _, co := range res {
		want := !co.Trigger.IsLevel()
		assert.Equal(t, want, co.Supported, co.Name)
		if !want {
			assert.Zero(t, co.Samples, co.Name)
		}
	}
}

func TestConfigOverheadFailure(t *testing.T) {
	s, port := newSim(t)
	drv := &faultyDriver{
		Driver: s,
		configure: func(pin gpioharness.PinHandle, flags gpioharness.Flags) error {
			if flags == gpioharness.InputPullUp {
				return gpioharness.ErrNotReady
			}
			return nil
		},
	}
	b := gpioharness.NewBenchmark(drv, gpioharness.ThroughputConfig{ConfigSamples: 10})

	res, err := b.ConfigOverhead(port, 7)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))
	assert.Equal(t, 3, len(res))
}

func TestThroughputDegenerate(t *testing.T) {
	s, port := newSim(t)
	b := gpioharness.NewBenchmark(s,
		gpioharness.ThroughputConfig{Toggles: 100, Reads: 100, ConfigSamples: 10},
		gpioharness.WithTimer(&frozenTimer{now: 7}))

	var derr *gpioharness.DegenerateMeasurement
	_, err := b.OutputToggle(port, 1)
	require.True(t, errors.As(err, &derr), "%v", err)
	assert.Equal(t, "output toggle", derr.Op)

	_, err = b.InputRead(port, 1)
	require.True(t, errors.As(err, &derr), "%v", err)
	assert.Equal(t, "input read", derr.Op)

	_, err = b.ConfigOverhead(port, 1)
	require.True(t, errors.As(err, &derr), "%v", err)
	assert.Equal(t, "configure input", derr.Op)
}

func TestThroughputDefaults(t *testing.T) {
	cfg := gpioharness.DefaultThroughputConfig()
	assert.Equal(t, 1000000, cfg.Toggles)
	assert.Equal(t, 2000000, cfg.Reads)
	assert.Equal(t, 1000, cfg.ConfigSamples)
}
