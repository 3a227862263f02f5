// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package simwire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpioharness/simwire"
	"github.com/warthog618/go-gpiosim"
)

func newSimpleton(t *testing.T, numLines int) *gpiosim.Simpleton {
	t.Helper()
	s, err := gpiosim.NewSimpleton(numLines)
	if err != nil {
		t.Skip(err)
	}
	return s
}

func waitPull(t *testing.T, c *gpiosim.Chip, offset, xv int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		v, err := c.Pull(offset)
		return err == nil && v == xv
	}, time.Second, time.Millisecond)
}

func TestConnect(t *testing.T) {
	s := newSimpleton(t, 8)
	defer s.Close()
	c := &s.Chips[0]

	// bad wiring
	w, err := simwire.Connect(c, 1, 1)
	assert.NotNil(t, err)
	assert.Nil(t, w)
	w, err = simwire.Connect(c, 1, 8)
	assert.NotNil(t, err)
	assert.Nil(t, w)

	l, err := gpiocdev.RequestLine(s.DevPath(), 1, gpiocdev.AsOutput(1))
	require.Nil(t, err)
	defer l.Close()

	w, err = simwire.Connect(c, 1, 2, simwire.WithPollPeriod(50*time.Microsecond))
	require.Nil(t, err)
	defer w.Close()
	assert.Equal(t, 1, w.Output())
	assert.Equal(t, 2, w.Input())

	// synced on connect
	checkPull(t, c, 2, 1)

	err = l.SetValue(0)
	require.Nil(t, err)
	waitPull(t, c, 2, 0)

	err = l.SetValue(1)
	require.Nil(t, err)
	waitPull(t, c, 2, 1)

	// input follows when read through the uAPI
	in, err := gpiocdev.RequestLine(s.DevPath(), 2, gpiocdev.AsInput)
	require.Nil(t, err)
	defer in.Close()
	v, err := in.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	// disconnected
	w.Close()
	err = l.SetValue(0)
	require.Nil(t, err)
	time.Sleep(time.Millisecond)
	checkPull(t, c, 2, 1)
	assert.Zero(t, w.Errors())
}

func checkPull(t *testing.T, c *gpiosim.Chip, offset, xv int) {
	t.Helper()
	v, err := c.Pull(offset)
	assert.Nil(t, err)
	assert.Equal(t, xv, v)
}

func TestNewBench(t *testing.T) {
	b, err := simwire.NewBench(8, []simwire.Pair{{Output: 0, Input: 1}, {Output: 2, Input: 3}})
	if err != nil {
		t.Skip(err)
	}
	defer b.Close()

	require.Equal(t, 2, len(b.Wires))
	assert.Equal(t, 8, b.Chip().Config().NumLines)
	assert.Equal(t, b.Chip().ChipName(), b.Port())
	assert.Equal(t, map[int]string{0: "out0", 1: "in0", 2: "out1", 3: "in1"}, b.Chip().Config().Names)

	l, err := gpiocdev.RequestLine(b.Chip().DevPath(), 2, gpiocdev.AsOutput(1))
	require.Nil(t, err)
	defer l.Close()
	waitPull(t, b.Chip(), 3, 1)
	checkPull(t, b.Chip(), 1, 0)

	// bad pair
	bb, err := simwire.NewBench(8, []simwire.Pair{{Output: 0, Input: 9}})
	assert.NotNil(t, err)
	assert.Nil(t, bb)
}
