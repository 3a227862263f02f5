// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"runtime"
	"sync"
)

// Contention runs an operation concurrently from a number of workers.
type Contention struct {
	// The number of concurrent workers.
	Workers int

	// The number of times each worker calls the operation.
	Iterations int

	// Called by each worker after each iteration.
	//
	// Defaults to runtime.Gosched.
	Yield func()
}

// Tally is the outcome of one worker.
type Tally struct {
	Successes SuccessCounter
	Failures  int
}

// Outcome is the outcome of a Contention run, indexed by worker.
type Outcome []*Tally

// Successes returns the total number of successful iterations.
func (o Outcome) Successes() int {
	n := 0
	for _, t := range o {
		n += t.Successes.Load()
	}
	return n
}

// Failures returns the total number of failed iterations.
func (o Outcome) Failures() int {
	n := 0
	for _, t := range o {
		n += t.Failures
	}
	return n
}

// MinSuccesses returns the lowest success count of any worker.
func (o Outcome) MinSuccesses() int {
	if len(o) == 0 {
		return 0
	}
	n := o[0].Successes.Load()
	for _, t := range o[1:] {
		if s := t.Successes.Load(); s < n {
			n = s
		}
	}
	return n
}

// Run starts the workers and waits for all of them to complete.
//
// The operation is passed the worker index and the iteration number.
// The operation may be called concurrently, but never concurrently for the
// same worker.
func (c Contention) Run(op func(worker, iter int) error) Outcome {
	yield := c.Yield
	if yield == nil {
		yield = runtime.Gosched
	}
	out := make(Outcome, c.Workers)
	var wg sync.WaitGroup
	for w := 0; w < c.Workers; w++ {
		t := &Tally{}
		t.Successes.Reset(c.Iterations)
		out[w] = t
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < c.Iterations; i++ {
				if op(w, i) != nil {
					t.Failures++
				} else {
					t.Successes.Inc()
				}
				yield()
			}
		}(w)
	}
	wg.Wait()
	return out
}
