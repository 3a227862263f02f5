// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package simwire provides loopback wiring between lines of a gpio-sim chip,
// so a harness driving the chip through the character device sees its
// outputs on its inputs.
//
// gpio-sim has no native loopback, so a Wire polls the level driven on the
// output line and applies it as the pull of the input line, overriding any
// bias applied to the input.  The echo is delayed by up to the poll period.
//
// Driving gpio-sim involves configfs and sysfs, so root permissions are
// typically required.
package simwire

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiosim"
)

// DefaultPollPeriod is the period between samples of the output line, unless
// overridden with WithPollPeriod.
const DefaultPollPeriod = 100 * time.Microsecond

// Wire copies the level of an output line to the pull of an input line.
type Wire struct {
	c      *gpiosim.Chip
	out    int
	in     int
	period time.Duration

	// serialises Sync and the poller
	mu sync.Mutex

	errs atomic.Uint32

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Connect wires the out line of the chip to the in line.
//
// The input is immediately pulled to the current level of the output, and
// then follows it until the Wire is closed.
//
// The available options are [WithPollPeriod].
func Connect(c *gpiosim.Chip, out, in int, options ...Option) (*Wire, error) {
	n := c.Config().NumLines
	if out < 0 || out >= n || in < 0 || in >= n {
		return nil, errors.Errorf("wire %d->%d out of range for %d lines", out, in, n)
	}
	if out == in {
		return nil, errors.Errorf("line %d wired to itself", in)
	}
	w := &Wire{
		c:       c,
		out:     out,
		in:      in,
		period:  DefaultPollPeriod,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, o := range options {
		o.applyWireOption(w)
	}
	if err := w.Sync(); err != nil {
		return nil, err
	}
	go w.run()
	return w, nil
}

// Close disconnects the wire.
//
// The input is left pulled to the last level applied.
func (w *Wire) Close() {
	w.once.Do(func() {
		close(w.done)
		<-w.stopped
	})
}

// Errors returns the number of failed samples.
func (w *Wire) Errors() int {
	return int(w.errs.Load())
}

// Output returns the offset of the output line.
func (w *Wire) Output() int {
	return w.out
}

// Input returns the offset of the input line.
func (w *Wire) Input() int {
	return w.in
}

// Sync copies the level of the output to the input immediately.
func (w *Wire) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, err := w.c.Level(w.out)
	if err != nil {
		return errors.Wrapf(err, "read line %d", w.out)
	}
	if err = w.c.SetPull(w.in, v); err != nil {
		return errors.Wrapf(err, "pull line %d", w.in)
	}
	return nil
}

func (w *Wire) run() {
	defer close(w.stopped)
	t := time.NewTicker(w.period)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			if err := w.poll(); err != nil {
				w.errs.Add(1)
			}
		}
	}
}

func (w *Wire) poll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, err := w.c.Level(w.out)
	if err != nil {
		return err
	}
	// the input bias may have moved the pull, and the output overrides it
	p, err := w.c.Pull(w.in)
	if err != nil || p == v {
		return err
	}
	return w.c.SetPull(w.in, v)
}

// Option defines the interface required to provide an option to Connect or
// NewBench.
type Option interface {
	applyWireOption(*Wire)
}

// PollPeriodOption sets the period between samples of the output line.
type PollPeriodOption time.Duration

// WithPollPeriod returns an option that sets the period between samples of
// the output line.
func WithPollPeriod(period time.Duration) PollPeriodOption {
	return PollPeriodOption(period)
}

func (o PollPeriodOption) applyWireOption(w *Wire) {
	if o > 0 {
		w.period = time.Duration(o)
	}
}
