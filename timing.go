// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"time"
)

// Cycles is a count of timer ticks.
type Cycles uint64

// Timer is the timing collaborator.
//
// Now must be monotonic within a session, i.e. between Start and Stop.
type Timer interface {
	// Start begins a timing session.
	Start()

	// Stop ends a timing session.
	Stop()

	// Now returns the current counter value.
	Now() Cycles

	// Duration converts a counter delta to elapsed time.
	Duration(c Cycles) time.Duration
}

// TimestampPair is the start and end of a measured interval.
type TimestampPair struct {
	Start Cycles
	End   Cycles
}

// Valid returns true if the pair describes a positive interval.
//
// A pair with End <= Start is never reinterpreted as a negative interval.
func (tp TimestampPair) Valid() bool {
	return tp.End > tp.Start
}

// Elapsed returns the length of the interval, or zero if the pair is invalid.
func (tp TimestampPair) Elapsed() Cycles {
	if !tp.Valid() {
		return 0
	}
	return tp.End - tp.Start
}

// SampleAccumulator accumulates valid interval samples.
type SampleAccumulator struct {
	Attempted int
	Valid     int
	Total     Cycles
	Min       Cycles
	Max       Cycles
}

// Attempt records that a sample was attempted, whether or not it produces a
// valid pair.
func (sa *SampleAccumulator) Attempt() {
	sa.Attempted++
}

// Add accumulates the pair if it is valid.
//
// Returns false, leaving the accumulator unchanged, if the pair is invalid.
func (sa *SampleAccumulator) Add(tp TimestampPair) bool {
	if !tp.Valid() {
		return false
	}
	c := tp.Elapsed()
	if sa.Valid == 0 || c < sa.Min {
		sa.Min = c
	}
	if c > sa.Max {
		sa.Max = c
	}
	sa.Valid++
	sa.Total += c
	return true
}

// Mean returns the mean of the valid samples, or zero if there are none.
func (sa *SampleAccumulator) Mean() Cycles {
	if sa.Valid == 0 {
		return 0
	}
	return sa.Total / Cycles(sa.Valid)
}

// Settle is a delay inserted after a stimulus to let it propagate.
type Settle struct {
	// The length of the delay.
	Duration time.Duration

	// If set, spin on the timer rather than sleeping.
	//
	// Appropriate for delays shorter than the scheduler tick.
	Busy bool
}

// SleepFor returns a sleeping Settle of the given duration.
func SleepFor(d time.Duration) Settle {
	return Settle{Duration: d}
}

// SpinFor returns a busy-waiting Settle of the given duration.
func SpinFor(d time.Duration) Settle {
	return Settle{Duration: d, Busy: true}
}

// Wait performs the delay.
func (s Settle) Wait() {
	if s.Duration <= 0 {
		return
	}
	if !s.Busy {
		time.Sleep(s.Duration)
		return
	}
	deadline := time.Now().Add(s.Duration)
	for time.Now().Before(deadline) {
	}
}

func (s Settle) String() string {
	if s.Busy {
		return "spin " + s.Duration.String()
	}
	return "sleep " + s.Duration.String()
}
