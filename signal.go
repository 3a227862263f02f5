// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"sync/atomic"
	"time"
)

// Signal is a binary completion signal with a single slot.
//
// Give never blocks, so it is safe to call from a Handler.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a Signal in the unset state.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Give sets the signal.  Giving an already set signal has no effect.
func (s *Signal) Give() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Reset returns the signal to the unset state.
func (s *Signal) Reset() {
	select {
	case <-s.ch:
	default:
	}
}

// Take waits up to timeout for the signal to be set, and unsets it.
//
// Returns false if the timeout expired first.
func (s *Signal) Take(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}

// SuccessCounter counts the successful iterations of one stress worker.
//
// The counter is written only by its worker and never exceeds the budget it
// was reset with.
type SuccessCounter struct {
	n      atomic.Uint64
	budget uint64
}

// Reset zeroes the counter and sets its budget.
func (c *SuccessCounter) Reset(budget int) {
	c.budget = uint64(budget)
	c.n.Store(0)
}

// Inc counts a success, saturating at the budget.
func (c *SuccessCounter) Inc() {
	if c.n.Load() < c.budget {
		c.n.Add(1)
	}
}

// Load returns the current count.
func (c *SuccessCounter) Load() int {
	return int(c.n.Load())
}

// InvocationCounter counts handler invocations for a watched pin.
//
// It is written from the driver's dispatch context and read by the
// validator after a settle interval.
type InvocationCounter struct {
	watch PinMask
	count atomic.Uint64
	last  atomic.Uint64
}

// NewInvocationCounter creates a counter that counts events including any of
// the pins in the mask.
func NewInvocationCounter(watch PinMask) *InvocationCounter {
	return &InvocationCounter{watch: watch}
}

// Handle is a Handler that counts matching events.
func (c *InvocationCounter) Handle(evt Event) {
	if evt.Pins&c.watch == 0 {
		return
	}
	c.last.Store(uint64(evt.Pins))
	c.count.Add(1)
}

// Count returns the number of matching events since the last Reset.
func (c *InvocationCounter) Count() int {
	return int(c.count.Load())
}

// LastPins returns the pins reported by the most recent matching event.
func (c *InvocationCounter) LastPins() PinMask {
	return PinMask(c.last.Load())
}

// Reset zeroes the counter.
func (c *InvocationCounter) Reset() {
	c.count.Store(0)
	c.last.Store(0)
}
