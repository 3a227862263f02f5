// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"io"
	"log/slog"
	"runtime"
)

// env contains the collaborators shared by the harness components.
type env struct {
	log     *slog.Logger
	timer   Timer
	preempt Preemption
	yield   func()
}

func newEnv(options []Option) env {
	e := env{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		preempt: LockedThread{},
		yield:   runtime.Gosched,
	}
	for _, o := range options {
		o.applyEnv(&e)
	}
	if e.timer == nil {
		e.timer = NewMonotonicTimer()
	}
	return e
}

// Option defines the interface required to provide an option to the
// harness constructors.
type Option interface {
	applyEnv(*env)
}

// LoggerOption provides the logger for a component.
type LoggerOption struct {
	log *slog.Logger
}

// WithLogger returns an option that sets the logger used by a component.
//
// By default components log nowhere.
func WithLogger(log *slog.Logger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyEnv(e *env) {
	if o.log != nil {
		e.log = o.log
	}
}

// TimerOption provides the timing collaborator for a component.
type TimerOption struct {
	t Timer
}

// WithTimer returns an option that sets the Timer used to timestamp
// measurements.
//
// The default is a MonotonicTimer.
func WithTimer(t Timer) TimerOption {
	return TimerOption{t}
}

func (o TimerOption) applyEnv(e *env) {
	e.timer = o.t
}

// PreemptionOption provides the critical section implementation.
type PreemptionOption struct {
	p Preemption
}

// WithPreemption returns an option that sets how preemption is suppressed
// during timing critical sections.
//
// The default is LockedThread.
func WithPreemption(p Preemption) PreemptionOption {
	return PreemptionOption{p}
}

func (o PreemptionOption) applyEnv(e *env) {
	e.preempt = o.p
}

// YieldOption provides the cooperative yield used by stress workers.
type YieldOption func()

// WithYield returns an option that sets the function stress workers call
// between iterations.
//
// The default is runtime.Gosched.
func WithYield(yield func()) YieldOption {
	return YieldOption(yield)
}

func (o YieldOption) applyEnv(e *env) {
	e.yield = o
}
