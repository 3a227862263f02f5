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
	"github.com/warthog618/go-gpioharness/memsim"
)

func TestLatencyProbe(t *testing.T) {
	s, port := newSim(t, memsim.WithLoopback(2, 3))
	cfg := gpioharness.DefaultLatencyConfig()
	cfg.Samples = 50
	p := gpioharness.NewLatencyProbe(s, cfg)

	res, err := p.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 3})
	require.Nil(t, err)
	assert.Equal(t, 50, res.Attempted)
	assert.Greater(t, res.Valid, 25)
	assert.Equal(t, res.Attempted, res.Valid+res.Timeouts+res.Discarded)
	assert.Greater(t, uint64(res.MeanCycles), uint64(0))
	assert.Equal(t, res.TotalCycles/gpioharness.Cycles(res.Valid), res.MeanCycles)
	assert.LessOrEqual(t, res.Min, res.Mean)
	assert.LessOrEqual(t, res.Mean, res.Max)
	assert.Less(t, res.Max, cfg.Timeout)
}

func TestLatencyEventTimestamps(t *testing.T) {
	s, port := newSim(t, memsim.WithLoopback(2, 3))
	cfg := gpioharness.DefaultLatencyConfig()
	cfg.Samples = 20
	cfg.UseEventTimestamps = true
	p := gpioharness.NewLatencyProbe(s, cfg, gpioharness.WithPreemption(gpioharness.Unsuppressed{}))

	res, err := p.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 3})
	require.Nil(t, err)
	assert.Greater(t, res.Valid, 10)
}

func TestLatencyUnwired(t *testing.T) {
	s, port := newSim(t)
	cfg := gpioharness.LatencyConfig{Samples: 10, Timeout: 5 * time.Millisecond}
	p := gpioharness.NewLatencyProbe(s, cfg)

	res, err := p.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 3})
	require.NotNil(t, err)
	var terr *gpioharness.TimingError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, -1, terr.Sample)
	assert.Equal(t, 0, terr.Valid)
	assert.Equal(t, 10, terr.Attempted)
	assert.Equal(t, 3, terr.Pin.Pin())
	assert.Equal(t, 10, res.Timeouts)
	assert.Zero(t, res.Mean)
}

func TestLatencyFrozenTimer(t *testing.T) {
	s, port := newSim(t, memsim.WithLoopback(2, 3))
	cfg := gpioharness.DefaultLatencyConfig()
	cfg.Samples = 10
	p := gpioharness.NewLatencyProbe(s, cfg, gpioharness.WithTimer(&frozenTimer{now: 42}))

	res, err := p.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 3})
	var terr *gpioharness.TimingError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, res.Valid)
	assert.Equal(t, 10, res.Discarded+res.Timeouts)
	assert.Greater(t, res.Discarded, 0)
}

// stimulusDropper swallows the rising edge driven on the trigger pin for the
// samples selected by drop.
type stimulusDropper struct {
	gpioharness.Driver
	trigger int
	drop    func(sample int) bool
	sample  int
}

func (d *stimulusDropper) SetLevel(pin gpioharness.PinHandle, level int) error {
	if pin.Pin() == d.trigger && level == 1 {
		n := d.sample
		d.sample++
		if d.drop(n) {
			return nil
		}
	}
	return d.Driver.SetLevel(pin, level)
}

func TestLatencyFloor(t *testing.T) {
	patterns := []struct {
		name  string
		drop  func(sample int) bool
		valid int
		pass  bool
	}{
		{"half", func(n int) bool { return n%2 == 0 }, 50, false},
		{"just over half", func(n int) bool { return n < 49 }, 51, true},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			s, port := newSim(t, memsim.WithLoopback(2, 3))
			drv := &stimulusDropper{Driver: s, trigger: 2, drop: p.drop}
			cfg := gpioharness.DefaultLatencyConfig()
			cfg.Timeout = 20 * time.Millisecond
			probe := gpioharness.NewLatencyProbe(drv, cfg)

			res, err := probe.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 3})
			assert.Equal(t, 100, res.Attempted)
			assert.Equal(t, p.valid, res.Valid)
			assert.Equal(t, 100-p.valid, res.Timeouts)
			if p.pass {
				assert.Nil(t, err)
				return
			}
			var terr *gpioharness.TimingError
			require.True(t, errors.As(err, &terr), "%v", err)
			assert.Equal(t, -1, terr.Sample)
			assert.Equal(t, p.valid, terr.Valid)
			assert.Equal(t, 100, terr.Attempted)
		})
	}
}

func TestLatencyMissingPin(t *testing.T) {
	s, port := newSim(t)
	p := gpioharness.NewLatencyProbe(s, gpioharness.DefaultLatencyConfig())
	_, err := p.Run(gpioharness.Wiring{Port: port, Output: 2, Input: 16})
	assert.Equal(t, gpioharness.ErrInvalidPin, gpioharness.StatusOf(err))
}
