// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Preemption suppresses scheduling noise around timing critical sections.
type Preemption interface {
	// Suppress enters the critical section and returns the function that
	// exits it.
	Suppress() (restore func())
}

// LockedThread pins the calling goroutine to its OS thread and pauses the
// garbage collector for the duration of the critical section.
//
// The GC setting is process wide, so it is paused on entry to the first of
// any nested or overlapping critical sections and restored on exit from the
// last.
type LockedThread struct{}

var gcPause struct {
	mu    sync.Mutex
	depth int
	saved int
}

// Suppress enters the critical section.
func (LockedThread) Suppress() func() {
	runtime.LockOSThread()
	gcPause.mu.Lock()
	if gcPause.depth == 0 {
		gcPause.saved = debug.SetGCPercent(-1)
	}
	gcPause.depth++
	gcPause.mu.Unlock()
	return func() {
		gcPause.mu.Lock()
		gcPause.depth--
		if gcPause.depth == 0 {
			debug.SetGCPercent(gcPause.saved)
		}
		gcPause.mu.Unlock()
		runtime.UnlockOSThread()
	}
}

// Unsuppressed is a Preemption that does nothing.
type Unsuppressed struct{}

// Suppress does nothing.
func (Unsuppressed) Suppress() func() {
	return func() {}
}
