// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"sync/atomic"
	"time"
)

// MonotonicTimer is a Timer counting nanoseconds of the system monotonic
// clock.
//
// On Linux this is CLOCK_MONOTONIC, the same clock the GPIO uAPI uses to
// timestamp edge events by default, so event timestamps and Now are directly
// comparable.
type MonotonicTimer struct {
	sessions atomic.Int32
}

// NewMonotonicTimer creates a MonotonicTimer.
func NewMonotonicTimer() *MonotonicTimer {
	return &MonotonicTimer{}
}

// Start begins a timing session.
func (t *MonotonicTimer) Start() {
	t.sessions.Add(1)
}

// Stop ends a timing session.
func (t *MonotonicTimer) Stop() {
	t.sessions.Add(-1)
}

// Active returns true while a session is in progress.
func (t *MonotonicTimer) Active() bool {
	return t.sessions.Load() > 0
}

// Now returns the current value of the monotonic clock in nanoseconds.
func (t *MonotonicTimer) Now() Cycles {
	return Cycles(monotonicNow())
}

// Duration converts nanoseconds to a time.Duration.
func (t *MonotonicTimer) Duration(c Cycles) time.Duration {
	return time.Duration(c)
}
