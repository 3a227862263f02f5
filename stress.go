// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"log/slog"

	"github.com/pkg/errors"
)

// StressConfig contains the tunables for the StressHarness.
type StressConfig struct {
	// The number of iterations run by each worker.
	Iterations int

	// The fraction of iterations each worker must complete successfully.
	MinSuccessRatio float64

	// Read back each successful output configuration.
	VerifyOutputs bool
}

// DefaultStressConfig returns the default stress configuration.
func DefaultStressConfig() StressConfig {
	return StressConfig{
		Iterations:      100,
		MinSuccessRatio: 0.9,
		VerifyOutputs:   true,
	}
}

// stressCycle is the sequence of configurations each worker cycles through.
var stressCycle = []Flags{Input, OutputLow, OutputHigh, InputPullUp, InputPullDown}

// StressResult contains the outcome of a stress run.
type StressResult struct {
	// The pins exercised, one per worker.
	Pins []PinHandle

	Iterations int

	// Per worker counts, indexed as Pins.
	Successes      []int
	ConfigFailures []int

	// Interrupt configurations that failed other than as unsupported.
	// Each fails its iteration.
	InterruptFailures []int

	// Interrupt configurations rejected as unsupported, e.g. edge detection
	// on an output.  Tolerated.
	UnsupportedTriggers []int

	// Output readbacks that failed to read the level.  Each fails its
	// iteration.
	ReadFailures []int

	ConsistencyErrors []int
}

// TotalConsistencyErrors returns the number of consistency errors detected
// across all workers.
func (r StressResult) TotalConsistencyErrors() int {
	n := 0
	for _, c := range r.ConsistencyErrors {
		n += c
	}
	return n
}

// StressHarness configures pins sharing a register bank from concurrent
// workers, to expose read-modify-write races in the driver.
type StressHarness struct {
	drv   Driver
	cfg   StressConfig
	log   *slog.Logger
	yield func()
}

// NewStressHarness creates a StressHarness.
//
// The available options are [WithLogger] and [WithYield].
func NewStressHarness(drv Driver, cfg StressConfig, options ...Option) *StressHarness {
	e := newEnv(options)
	def := DefaultStressConfig()
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.MinSuccessRatio <= 0 || cfg.MinSuccessRatio > 1 {
		cfg.MinSuccessRatio = def.MinSuccessRatio
	}
	return &StressHarness{drv: drv, cfg: cfg, log: e.log, yield: e.yield}
}

// Run stresses the pins, one worker per pin.
//
// The pins must be distinct and share a register bank.
//
// An iteration fails if its configuration, readback or interrupt
// configuration fails, other than an interrupt trigger the driver does not
// support.  Each worker must complete MinSuccessRatio of its iterations.
func (s *StressHarness) Run(port string, pins []int) (res StressResult, err error) {
	f := NewFixture(s.drv, WithLogger(s.log))
	defer closeFixture(f, &err)

	if len(pins) < 2 {
		return res, errors.Errorf("stress requires at least 2 pins, got %d", len(pins))
	}
	info, err := s.drv.PortInfo(port)
	if err != nil {
		return res, errors.Wrapf(err, "port %s", port)
	}
	for _, pin := range pins {
		p, err := f.Bind(port, pin, CapInput|CapOutput|CapPull|CapInterrupt)
		if err != nil {
			return res, err
		}
		if info.Bank(pin) != info.Bank(pins[0]) {
			return res, errors.Errorf("%s is not in the same bank as %s:%d", p, port, pins[0])
		}
		res.Pins = append(res.Pins, p)
	}

	n := len(res.Pins)
	res.Iterations = s.cfg.Iterations
	res.ConfigFailures = make([]int, n)
	res.InterruptFailures = make([]int, n)
	res.UnsupportedTriggers = make([]int, n)
	res.ReadFailures = make([]int, n)
	res.ConsistencyErrors = make([]int, n)
	// each worker writes only its own slots
	firstInconsistency := make([]error, n)

	s.log.Info("stress starting", "port", port, "workers", n, "iterations", s.cfg.Iterations)
	c := Contention{Workers: n, Iterations: s.cfg.Iterations, Yield: s.yield}
	out := c.Run(func(w, i int) error {
		p := res.Pins[w]
		flags := stressCycle[(i+w)%len(stressCycle)]
		if err := s.drv.Configure(p, flags); err != nil {
			res.ConfigFailures[w]++
			s.log.Warn("stress configure failed", "worker", w, "iteration", i,
				"err", configureError(p, flags, err))
			return err
		}
		if s.cfg.VerifyOutputs && flags.IsOutput() {
			v, err := s.drv.Level(p)
			if err != nil {
				res.ReadFailures[w]++
				rerr := opError(p, "get level", err)
				s.log.Warn("stress readback failed", "worker", w, "iteration", i, "err", rerr)
				return rerr
			}
			if v != flags.InitialLevel() {
				res.ConsistencyErrors[w]++
				cerr := &ConsistencyError{Pin: p, Op: flags.String() + " readback",
					Expected: flags.InitialLevel(), Actual: v}
				if firstInconsistency[w] == nil {
					firstInconsistency[w] = cerr
				}
				s.log.Error("stress readback mismatch", "worker", w, "iteration", i, "err", cerr)
			}
		}
		trig := TriggerEdgeBoth
		if i%2 != 0 {
			trig = TriggerDisabled
		}
		if err := s.drv.ConfigureInterrupt(p, trig); err != nil {
			ierr := interruptError(p, trig, err)
			if StatusOf(err) == ErrUnsupportedTrigger {
				res.UnsupportedTriggers[w]++
				s.log.Debug("stress interrupt unsupported", "worker", w, "iteration", i, "err", ierr)
				return nil
			}
			res.InterruptFailures[w]++
			s.log.Warn("stress interrupt configure failed", "worker", w, "iteration", i, "err", ierr)
			return ierr
		}
		return nil
	})

	res.Successes = make([]int, n)
	for w, t := range out {
		res.Successes[w] = t.Successes.Load()
	}
	s.log.Info("stress workers complete", "successes", res.Successes,
		"config_failures", res.ConfigFailures, "interrupt_failures", res.InterruptFailures,
		"unsupported_triggers", res.UnsupportedTriggers, "read_failures", res.ReadFailures)

	for w := range res.Pins {
		if err = firstInconsistency[w]; err != nil {
			return res, errors.Wrapf(err, "%d consistency errors", res.TotalConsistencyErrors())
		}
	}
	floor := int(s.cfg.MinSuccessRatio * float64(s.cfg.Iterations))
	for w, succ := range res.Successes {
		if succ < floor {
			return res, errors.Errorf("%s: worker %d completed %d of %d iterations, below %d",
				res.Pins[w], w, succ, s.cfg.Iterations, floor)
		}
	}
	return res, s.finalPass(res.Pins)
}

// finalPass checks, without contention, that every pin can still be driven
// and that driving each pin did not disturb the others.
func (s *StressHarness) finalPass(pins []PinHandle) error {
	for _, p := range pins {
		if err := s.drv.ConfigureInterrupt(p, TriggerDisabled); err != nil {
			return interruptError(p, TriggerDisabled, err)
		}
		if err := s.drv.Configure(p, OutputLow); err != nil {
			return configureError(p, OutputLow, err)
		}
		if err := s.drv.SetLevel(p, 1); err != nil {
			return opError(p, "set level 1", err)
		}
		if err := s.readback(p, "final readback"); err != nil {
			return err
		}
	}
	for _, p := range pins {
		if err := s.readback(p, "final sweep"); err != nil {
			return err
		}
	}
	return nil
}

func (s *StressHarness) readback(p PinHandle, op string) error {
	v, err := s.drv.Level(p)
	if err != nil {
		return opError(p, "get level", err)
	}
	if v != 1 {
		return &ConsistencyError{Pin: p, Op: op, Expected: 1, Actual: v}
	}
	return nil
}
