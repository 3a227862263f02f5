// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cdev_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev/uapi"
	"github.com/warthog618/go-gpioharness"
	"github.com/warthog618/go-gpioharness/cdev"
	"github.com/warthog618/go-gpioharness/simwire"
)

var uapiV2Kernel = uapi.Semver{5, 10} // uapi v2 added

func requireKernel(t *testing.T, min uapi.Semver) {
	t.Helper()
	if err := uapi.CheckKernelVersion(min); err != nil {
		t.Skip(err)
	}
}

func newBench(t *testing.T) *simwire.Bench {
	t.Helper()
	requireKernel(t, uapiV2Kernel)
	b, err := simwire.NewBench(8, []simwire.Pair{{Output: 0, Input: 1}, {Output: 2, Input: 3}})
	if err != nil {
		t.Skip(err)
	}
	return b
}

func bind(t *testing.T, d gpioharness.Driver, port string, offset int) gpioharness.PinHandle {
	t.Helper()
	p, err := gpioharness.NewFixture(d).Bind(port, offset, 0)
	require.Nil(t, err)
	return p
}

func TestPortInfo(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver(cdev.WithConsumer("TestPortInfo"))
	defer d.Close()

	pi, err := d.PortInfo(b.Port())
	require.Nil(t, err)
	assert.Equal(t, gpioharness.PortInfo{
		Name:      b.Port(),
		NumPins:   8,
		BankWidth: 8,
		Caps:      gpioharness.CapAll,
	}, pi)

	_, err = d.PortInfo("nosuchchip")
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))
}

func TestConfigure(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver()
	defer d.Close()

	c := b.Chip()
	p := bind(t, d, b.Port(), 5)

	// unrequested
	_, err := d.Level(p)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))
	err = d.SetLevel(p, 1)
	assert.Equal(t, gpioharness.ErrNotOutput, gpioharness.StatusOf(err))
	err = d.ConfigureInterrupt(p, gpioharness.TriggerDisabled)
	assert.Nil(t, err)
	err = d.ConfigureInterrupt(p, gpioharness.TriggerEdgeBoth)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))

	// contradictory
	err = d.Configure(p, gpioharness.Input|gpioharness.Output)
	assert.Equal(t, gpioharness.ErrRejectedFlags, gpioharness.StatusOf(err))

	// output
	err = d.Configure(p, gpioharness.OutputHigh)
	require.Nil(t, err)
	v, err := c.Level(5)
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
	err = d.SetLevel(p, 0)
	assert.Nil(t, err)
	v, err = c.Level(5)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
	err = d.ConfigureInterrupt(p, gpioharness.TriggerEdgeRising)
	assert.Equal(t, gpioharness.ErrUnsupportedTrigger, gpioharness.StatusOf(err))

	// input
	err = d.Configure(p, gpioharness.InputPullUp)
	require.Nil(t, err)
	v, err = d.Level(p)
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
	err = d.SetLevel(p, 1)
	assert.Equal(t, gpioharness.ErrNotOutput, gpioharness.StatusOf(err))
	require.Nil(t, d.Configure(p, gpioharness.InputPullDown))
	v, err = d.Level(p)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)

	// busy
	d2 := cdev.NewDriver()
	defer d2.Close()
	err = d2.Configure(bind(t, d2, b.Port(), 5), gpioharness.Input)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))

	// released
	require.Nil(t, d.Configure(p, gpioharness.Disconnected))
	_, err = d.Level(p)
	assert.Equal(t, gpioharness.ErrNotReady, gpioharness.StatusOf(err))
	err = d2.Configure(bind(t, d2, b.Port(), 5), gpioharness.Input)
	assert.Nil(t, err)
}

func TestInterrupts(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver()
	defer d.Close()

	c := b.Chip()
	p := bind(t, d, b.Port(), 6)
	require.Nil(t, d.Configure(p, gpioharness.Input))

	ch := make(chan gpioharness.Event, 10)
	r, err := d.RegisterCallback(b.Port(), p.Mask(), func(evt gpioharness.Event) {
		ch <- evt
	})
	require.Nil(t, err)

	require.Nil(t, d.ConfigureInterrupt(p, gpioharness.TriggerEdgeBoth))
	require.Nil(t, c.Pullup(6))
	evt := waitEvent(t, ch)
	assert.Equal(t, b.Port(), evt.Port)
	assert.Equal(t, p.Mask(), evt.Pins)
	assert.Equal(t, 1, evt.Level)
	require.Nil(t, c.Pulldown(6))
	evt = waitEvent(t, ch)
	assert.Equal(t, 0, evt.Level)

	// level trigger armed while asserted
	require.Nil(t, d.ConfigureInterrupt(p, gpioharness.TriggerLevelLow))
	evt = waitEvent(t, ch)
	assert.Equal(t, 0, evt.Level)
	require.Nil(t, c.Pullup(6))
	checkNoEvent(t, ch)

	require.Nil(t, d.ConfigureInterrupt(p, gpioharness.TriggerDisabled))
	require.Nil(t, c.Pulldown(6))
	checkNoEvent(t, ch)

	require.Nil(t, d.UnregisterCallback(r))
	err = d.UnregisterCallback(r)
	assert.Equal(t, gpioharness.ErrUnknownRegistration, gpioharness.StatusOf(err))
	_, err = d.RegisterCallback(b.Port(), gpioharness.MaskOf(8), func(gpioharness.Event) {})
	assert.Equal(t, gpioharness.ErrInvalidPin, gpioharness.StatusOf(err))
}

func waitEvent(t *testing.T, ch <-chan gpioharness.Event) gpioharness.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for event")
	}
	return gpioharness.Event{}
}

func checkNoEvent(t *testing.T, ch <-chan gpioharness.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		assert.Fail(t, "received unexpected event", "%v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestValidator(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver()
	defer d.Close()

	cfg := gpioharness.DefaultValidatorConfig()
	cfg.EdgeSettle = gpioharness.SleepFor(5 * time.Millisecond)
	cfg.LevelTriggerSettle = gpioharness.SleepFor(10 * time.Millisecond)
	rpt := gpioharness.NewValidator(d, cfg).Run(gpioharness.Wiring{Port: b.Port(), Output: 0, Input: 1})
	for _, sr := range rpt.Results {
		assert.True(t, sr.Passed(), "%s: %v", sr.Name, sr.Err)
	}
	assert.Nil(t, rpt.Err())
}

func TestLatency(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver()
	defer d.Close()

	cfg := gpioharness.DefaultLatencyConfig()
	cfg.Samples = 20
	cfg.InterSample = gpioharness.SleepFor(time.Millisecond)
	cfg.UseEventTimestamps = true
	res, err := gpioharness.NewLatencyProbe(d, cfg).Run(gpioharness.Wiring{Port: b.Port(), Output: 2, Input: 3})
	require.Nil(t, err)
	assert.Equal(t, 20, res.Attempted)
	assert.Greater(t, res.Valid, 10)
	assert.Greater(t, res.Mean, time.Duration(0))
	assert.LessOrEqual(t, res.Min, res.Max)
}

func TestStress(t *testing.T) {
	b := newBench(t)
	defer b.Close()
	d := cdev.NewDriver()
	defer d.Close()

	res, err := gpioharness.NewStressHarness(d, gpioharness.DefaultStressConfig()).
		Run(b.Port(), []int{4, 5, 6, 7})
	require.Nil(t, err)
	assert.Equal(t, 4, len(res.Successes))
	assert.Zero(t, res.TotalConsistencyErrors())
	// edge detection on outputs is rejected as unsupported, and tolerated
	assert.Equal(t, []int{0, 0, 0, 0}, res.InterruptFailures)
	for w, u := range res.UnsupportedTriggers {
		assert.Greater(t, u, 0, "worker %d", w)
	}
	for w, s := range res.Successes {
		assert.GreaterOrEqual(t, s, 90, "worker %d", w)
	}
}
