// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// Wiring identifies a loopback pair by port and pin number.
type Wiring struct {
	Port   string
	Output int
	Input  int
}

func (w Wiring) String() string {
	return fmt.Sprintf("%s:%d->%d", w.Port, w.Output, w.Input)
}

// ValidatorConfig contains the tunables for the CorrectnessValidator.
type ValidatorConfig struct {
	// Delay after driving a level before reading it back.
	LevelSettle Settle

	// Delay after each transition in the edge trigger scenarios.
	EdgeSettle Settle

	// Delay after each transition in the level trigger scenarios.
	LevelTriggerSettle Settle

	// The number of qualifying cycles driven in each interrupt scenario.
	Repeat int
}

// DefaultValidatorConfig returns the default validator configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		LevelSettle:        SleepFor(10 * time.Millisecond),
		EdgeSettle:         SpinFor(time.Millisecond),
		LevelTriggerSettle: SleepFor(5 * time.Millisecond),
		Repeat:             1,
	}
}

// Validator runs scripted functional scenarios against loopback pairs.
//
// Correctness is binary, so the first failed assertion ends a scenario.
type Validator struct {
	drv Driver
	cfg ValidatorConfig
	log *slog.Logger
}

// NewValidator creates a Validator.
//
// The available options are [WithLogger].
func NewValidator(drv Driver, cfg ValidatorConfig, options ...Option) *Validator {
	e := newEnv(options)
	if cfg.Repeat <= 0 {
		cfg.Repeat = 1
	}
	return &Validator{drv: drv, cfg: cfg, log: e.log}
}

// ScenarioResult is the outcome of a single scenario.
type ScenarioResult struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Passed returns true if the scenario passed.
func (r ScenarioResult) Passed() bool {
	return r.Err == nil
}

// ValidationReport contains the outcomes of a validation run.
type ValidationReport struct {
	Wiring  Wiring
	Results []ScenarioResult
}

// Failed returns the number of failed scenarios.
func (r ValidationReport) Failed() int {
	n := 0
	for _, sr := range r.Results {
		if sr.Err != nil {
			n++
		}
	}
	return n
}

// Err returns an error summarising any failed scenarios.
func (r ValidationReport) Err() error {
	for _, sr := range r.Results {
		if sr.Err != nil {
			return errors.Wrapf(sr.Err, "%d of %d scenarios failed, first %s",
				r.Failed(), len(r.Results), sr.Name)
		}
	}
	return nil
}

// Run runs every scenario against the wiring.
//
// A failing scenario does not prevent the remaining scenarios from running.
func (v *Validator) Run(w Wiring) ValidationReport {
	rpt := ValidationReport{Wiring: w}
	run := func(name string, fn func() error) {
		start := time.Now()
		err := fn()
		sr := ScenarioResult{Name: name, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			v.log.Error("scenario failed", "scenario", name, "wiring", w.String(), "err", err)
		} else {
			v.log.Info("scenario passed", "scenario", name, "elapsed", sr.Elapsed)
		}
		rpt.Results = append(rpt.Results, sr)
	}
	run("output-drive", func() error { return v.OutputDrive(w.Port, w.Output) })
	run("loopback", func() error { return v.Loopback(w) })
	for _, flags := range []Flags{Input, OutputLow, OutputHigh, InputPullUp, InputPullDown} {
		flags := flags
		run("idempotent "+flags.String(), func() error { return v.Idempotence(w, flags) })
	}
	for _, sc := range InterruptScenarios() {
		sc := sc
		run("interrupt "+sc.Name, func() error { return v.Interrupt(w, sc) })
	}
	return rpt
}

// OutputDrive configures the pin as an output and drives it high then low,
// reading back the driven level after each change.
func (v *Validator) OutputDrive(port string, pin int) (err error) {
	f := NewFixture(v.drv, WithLogger(v.log))
	defer closeFixture(f, &err)

	out, err := f.Bind(port, pin, CapOutput)
	if err != nil {
		return err
	}
	if err = v.configure(out, OutputHigh); err != nil {
		return err
	}
	for _, level := range []int{1, 0} {
		if err = v.drive(out, level, v.cfg.LevelSettle); err != nil {
			return err
		}
		if err = v.expectLevel(out, "output readback", level); err != nil {
			return err
		}
	}
	return nil
}

// Loopback checks the input of the pair follows the output, and that the
// input pulls read back as expected.
func (v *Validator) Loopback(w Wiring) (err error) {
	f := NewFixture(v.drv, WithLogger(v.log))
	defer closeFixture(f, &err)

	p, err := f.BindPair(w.Port, w.Output, w.Input)
	if err != nil {
		return err
	}
	if err = v.configure(p.Output, OutputHigh); err != nil {
		return err
	}
	if err = v.configure(p.Input, Input); err != nil {
		return err
	}
	for _, level := range []int{0, 1} {
		if err = v.drive(p.Output, level, v.cfg.LevelSettle); err != nil {
			return err
		}
		if err = v.expectLevel(p.Input, "loopback", level); err != nil {
			return err
		}
	}
	// pulls, with the output driving the same way so it does not fight
	pulls := []struct {
		flags Flags
		level int
	}{
		{InputPullUp, 1},
		{InputPullDown, 0},
	}
	for _, pl := range pulls {
		if err = v.drive(p.Output, pl.level, Settle{}); err != nil {
			return err
		}
		if err = v.configure(p.Input, pl.flags); err != nil {
			return err
		}
		v.cfg.LevelSettle.Wait()
		if err = v.expectLevel(p.Input, pl.flags.String(), pl.level); err != nil {
			return err
		}
	}
	return nil
}

// Idempotence checks that applying the same configuration twice leaves the
// pin in the same observable state as applying it once.
//
// Input configurations are applied to the input of the pair, with the output
// driven low.  Output configurations are applied to the output.
func (v *Validator) Idempotence(w Wiring, flags Flags) (err error) {
	f := NewFixture(v.drv, WithLogger(v.log))
	defer closeFixture(f, &err)

	p, err := f.BindPair(w.Port, w.Output, w.Input)
	if err != nil {
		return err
	}
	target := p.Output
	if !flags.IsOutput() {
		target = p.Input
		if err = v.configure(p.Output, OutputLow); err != nil {
			return err
		}
	}
	if err = v.configure(target, flags); err != nil {
		return err
	}
	v.cfg.LevelSettle.Wait()
	once, err := v.drv.Level(target)
	if err != nil {
		return opError(target, "get level", err)
	}
	for i := 0; i < 2; i++ {
		if err = v.configure(target, flags); err != nil {
			return err
		}
	}
	v.cfg.LevelSettle.Wait()
	return v.expectLevel(target, "repeated "+flags.String(), once)
}

// Interrupt runs an interrupt scenario against the pair.
func (v *Validator) Interrupt(w Wiring, sc InterruptScenario) (err error) {
	f := NewFixture(v.drv, WithLogger(v.log))
	defer closeFixture(f, &err)

	state := StateConfigured
	defer func() {
		if err != nil {
			v.log.Debug("interrupt scenario aborted", "scenario", sc.Name, "state", state.String())
		}
	}()

	p, err := f.BindPair(w.Port, w.Output, w.Input)
	if err != nil {
		return err
	}
	primeFlags := OutputLow
	if sc.Prime != 0 {
		primeFlags = OutputHigh
	}
	if err = v.configure(p.Output, primeFlags); err != nil {
		return err
	}
	if err = v.configure(p.Input, sc.InputFlags); err != nil {
		return err
	}
	counter := NewInvocationCounter(p.Input.Mask())
	reg, err := f.Register(w.Port, p.Input.Mask(), counter.Handle)
	if err != nil {
		return err
	}

	state = StateArmed
	settle := v.cfg.EdgeSettle
	if sc.Trigger.IsLevel() {
		settle = v.cfg.LevelTriggerSettle
	}
	if err = v.drv.ConfigureInterrupt(p.Input, sc.Trigger); err != nil {
		return interruptError(p.Input, sc.Trigger, err)
	}
	if err = v.drive(p.Output, sc.Prime, settle); err != nil {
		return err
	}
	// discard anything spurious from setup
	counter.Reset()

	state = StateTriggered
	for r := 0; r < v.cfg.Repeat; r++ {
		for _, st := range sc.cycle {
			if err = v.drive(p.Output, st.level, settle); err != nil {
				return err
			}
		}
	}

	state = StateVerified
	want := sc.expected(v.cfg.Repeat)
	got := counter.Count()
	op := sc.Name + " invocations"
	if sc.Trigger.IsLevel() {
		if got < want {
			return &ConsistencyError{Pin: p.Input, Op: op, Expected: want, Actual: got, AtLeast: true}
		}
	} else if got != want {
		return &ConsistencyError{Pin: p.Input, Op: op, Expected: want, Actual: got}
	}
	if counter.LastPins()&p.Input.Mask() == 0 {
		return errors.Errorf("%s: %s: triggered pins %#x do not include the input",
			p.Input, sc.Name, uint64(counter.LastPins()))
	}

	state = StateReset
	counter.Reset()
	for _, level := range sc.quiet {
		if err = v.drive(p.Output, level, settle); err != nil {
			return err
		}
	}
	if got = counter.Count(); got != 0 {
		return &ConsistencyError{Pin: p.Input, Op: sc.Name + " non-qualifying invocations", Expected: 0, Actual: got}
	}
	if err = v.drv.ConfigureInterrupt(p.Input, TriggerDisabled); err != nil {
		return interruptError(p.Input, TriggerDisabled, err)
	}
	return f.Unregister(reg)
}

func (v *Validator) configure(pin PinHandle, flags Flags) error {
	if err := v.drv.Configure(pin, flags); err != nil {
		return configureError(pin, flags, err)
	}
	return nil
}

func (v *Validator) drive(pin PinHandle, level int, settle Settle) error {
	if err := v.drv.SetLevel(pin, level); err != nil {
		return opError(pin, fmt.Sprintf("set level %d", level), err)
	}
	settle.Wait()
	return nil
}

func (v *Validator) expectLevel(pin PinHandle, op string, want int) error {
	got, err := v.drv.Level(pin)
	if err != nil {
		return opError(pin, "get level", err)
	}
	if got != want {
		return &ConsistencyError{Pin: pin, Op: op, Expected: want, Actual: got}
	}
	return nil
}

// closeFixture closes the fixture, reporting its error only if the scenario
// did not already fail.
func closeFixture(f *Fixture, err *error) {
	if cerr := f.Close(); *err == nil {
		*err = cerr
	}
}
