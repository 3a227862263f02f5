// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/go-gpioharness"
)

func TestTimestampPair(t *testing.T) {
	tp := gpioharness.TimestampPair{Start: 10, End: 25}
	assert.True(t, tp.Valid())
	assert.Equal(t, gpioharness.Cycles(15), tp.Elapsed())

	// never negative
	tp = gpioharness.TimestampPair{Start: 25, End: 10}
	assert.False(t, tp.Valid())
	assert.Zero(t, tp.Elapsed())

	tp = gpioharness.TimestampPair{Start: 25, End: 25}
	assert.False(t, tp.Valid())
	assert.Zero(t, tp.Elapsed())
}

func TestSampleAccumulator(t *testing.T) {
	var sa gpioharness.SampleAccumulator
	assert.Zero(t, sa.Mean())

	samples := []gpioharness.TimestampPair{
		{Start: 0, End: 30},
		{Start: 100, End: 90},
		{Start: 5, End: 15},
		{Start: 7, End: 7},
		{Start: 40, End: 60},
	}
	valid := 0
	for _, tp := range samples {
		sa.Attempt()
		if sa.Add(tp) {
			valid++
		}
	}
	assert.Equal(t, 3, valid)
	assert.Equal(t, 5, sa.Attempted)
	assert.Equal(t, 3, sa.Valid)
	assert.Equal(t, gpioharness.Cycles(60), sa.Total)
	assert.Equal(t, gpioharness.Cycles(10), sa.Min)
	assert.Equal(t, gpioharness.Cycles(30), sa.Max)
	assert.Equal(t, gpioharness.Cycles(20), sa.Mean())
}

func TestSettle(t *testing.T) {
	s := gpioharness.SleepFor(2 * time.Millisecond)
	assert.False(t, s.Busy)
	assert.Equal(t, "sleep 2ms", s.String())
	start := time.Now()
	s.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)

	s = gpioharness.SpinFor(time.Millisecond)
	assert.True(t, s.Busy)
	assert.Equal(t, "spin 1ms", s.String())
	start = time.Now()
	s.Wait()
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)

	// zero returns immediately
	gpioharness.Settle{}.Wait()
}

func TestMonotonicTimer(t *testing.T) {
	tm := gpioharness.NewMonotonicTimer()
	assert.False(t, tm.Active())
	tm.Start()
	assert.True(t, tm.Active())
	start := tm.Now()
	time.Sleep(time.Millisecond)
	end := tm.Now()
	tm.Stop()
	assert.False(t, tm.Active())

	tp := gpioharness.TimestampPair{Start: start, End: end}
	assert.True(t, tp.Valid())
	assert.GreaterOrEqual(t, tm.Duration(tp.Elapsed()), time.Millisecond)
	assert.Equal(t, time.Duration(1500), tm.Duration(1500))
}
