// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// ThroughputConfig contains the tunables for the throughput benchmarks.
type ThroughputConfig struct {
	// The number of level changes in the output toggle benchmark.
	//
	// Must be even, as toggles are driven in high/low pairs.
	Toggles int

	// The number of reads in the input read benchmark.
	Reads int

	// The number of timed calls per configuration in the configuration
	// overhead benchmark.
	ConfigSamples int
}

// DefaultThroughputConfig returns the default benchmark configuration.
func DefaultThroughputConfig() ThroughputConfig {
	return ThroughputConfig{
		Toggles:       1000000,
		Reads:         2000000,
		ConfigSamples: 1000,
	}
}

// ToggleResult contains the outcome of the output toggle benchmark.
type ToggleResult struct {
	Toggles   int
	Elapsed   time.Duration
	PerToggle time.Duration

	// The rate of level changes.
	TogglesPerSec float64

	// The frequency of the equivalent square wave, i.e. half the toggle rate.
	SquareWaveHz float64
}

// ReadResult contains the outcome of the input read benchmark.
type ReadResult struct {
	Reads       int
	Elapsed     time.Duration
	PerRead     time.Duration
	ReadsPerSec float64

	// The sum of the levels read.
	Checksum int
}

// ConfigOverhead is the mean cost of one configuration call.
type ConfigOverhead struct {
	// The configuration measured.
	Name string

	// Set for flag configurations.
	Flags Flags

	// Set for interrupt configurations.
	Trigger Trigger

	// Interrupt is true if Trigger rather than Flags was measured.
	Interrupt bool

	// False if the driver rejected the configuration.
	Supported bool

	Samples    int
	MeanCycles Cycles
	Mean       time.Duration
}

// Benchmark measures the sustained rate of the basic driver operations.
type Benchmark struct {
	drv     Driver
	cfg     ThroughputConfig
	log     *slog.Logger
	timer   Timer
	preempt Preemption
}

// NewBenchmark creates a Benchmark.
//
// The available options are [WithLogger], [WithTimer] and [WithPreemption].
func NewBenchmark(drv Driver, cfg ThroughputConfig, options ...Option) *Benchmark {
	e := newEnv(options)
	def := DefaultThroughputConfig()
	if cfg.Toggles <= 0 {
		cfg.Toggles = def.Toggles
	}
	cfg.Toggles += cfg.Toggles & 1
	if cfg.Reads <= 0 {
		cfg.Reads = def.Reads
	}
	if cfg.ConfigSamples <= 0 {
		cfg.ConfigSamples = def.ConfigSamples
	}
	return &Benchmark{drv: drv, cfg: cfg, log: e.log, timer: e.timer, preempt: e.preempt}
}

// OutputToggle measures the rate the pin can be driven between levels.
func (b *Benchmark) OutputToggle(port string, pin int) (res ToggleResult, err error) {
	f := NewFixture(b.drv, WithLogger(b.log))
	defer closeFixture(f, &err)

	p, err := f.Bind(port, pin, CapOutput)
	if err != nil {
		return res, err
	}
	if err = b.drv.Configure(p, OutputLow); err != nil {
		return res, configureError(p, OutputLow, err)
	}
	// untimed check the pin accepts levels at all
	if err = b.drv.SetLevel(p, 1); err != nil {
		return res, opError(p, "set level 1", err)
	}
	if err = b.drv.SetLevel(p, 0); err != nil {
		return res, opError(p, "set level 0", err)
	}

	pairs := b.cfg.Toggles / 2
	failures := 0
	b.timer.Start()
	restore := b.preempt.Suppress()
	start := b.timer.Now()
	for i := 0; i < pairs; i++ {
		if b.drv.SetLevel(p, 1) != nil {
			failures++
		}
		if b.drv.SetLevel(p, 0) != nil {
			failures++
		}
	}
	end := b.timer.Now()
	restore()
	b.timer.Stop()

	if failures != 0 {
		return res, errors.Errorf("%s: %d of %d level changes failed", p, failures, b.cfg.Toggles)
	}
	elapsed := b.timer.Duration(TimestampPair{start, end}.Elapsed())
	if elapsed <= 0 {
		return res, &DegenerateMeasurement{Op: "output toggle"}
	}
	res.Toggles = b.cfg.Toggles
	res.Elapsed = elapsed
	res.PerToggle = elapsed / time.Duration(res.Toggles)
	res.TogglesPerSec = float64(res.Toggles) / elapsed.Seconds()
	res.SquareWaveHz = res.TogglesPerSec / 2
	b.log.Info("output toggle benchmark complete", "pin", p.String(), "toggles", res.Toggles,
		"elapsed", elapsed, "toggles_per_sec", res.TogglesPerSec)
	return res, nil
}

// InputRead measures the rate the pin level can be read.
func (b *Benchmark) InputRead(port string, pin int) (res ReadResult, err error) {
	f := NewFixture(b.drv, WithLogger(b.log))
	defer closeFixture(f, &err)

	p, err := f.Bind(port, pin, CapInput)
	if err != nil {
		return res, err
	}
	if err = b.drv.Configure(p, Input); err != nil {
		return res, configureError(p, Input, err)
	}
	if _, err = b.drv.Level(p); err != nil {
		return res, opError(p, "get level", err)
	}

	sum := 0
	failures := 0
	b.timer.Start()
	restore := b.preempt.Suppress()
	start := b.timer.Now()
	for i := 0; i < b.cfg.Reads; i++ {
		v, err := b.drv.Level(p)
		sum += v
		if err != nil {
			failures++
		}
	}
	end := b.timer.Now()
	restore()
	b.timer.Stop()

	if failures != 0 {
		return res, errors.Errorf("%s: %d of %d reads failed", p, failures, b.cfg.Reads)
	}
	elapsed := b.timer.Duration(TimestampPair{start, end}.Elapsed())
	if elapsed <= 0 {
		return res, &DegenerateMeasurement{Op: "input read"}
	}
	res.Reads = b.cfg.Reads
	res.Elapsed = elapsed
	res.PerRead = elapsed / time.Duration(res.Reads)
	res.ReadsPerSec = float64(res.Reads) / elapsed.Seconds()
	res.Checksum = sum
	b.log.Info("input read benchmark complete", "pin", p.String(), "reads", res.Reads,
		"elapsed", elapsed, "reads_per_sec", res.ReadsPerSec)
	return res, nil
}

// ConfigOverhead measures the mean cost of each pin and interrupt
// configuration.
//
// Each configuration is applied once, untimed, before the timed samples.
// Configurations the driver rejects are reported as unsupported.
func (b *Benchmark) ConfigOverhead(port string, pin int) (res []ConfigOverhead, err error) {
	f := NewFixture(b.drv, WithLogger(b.log))
	defer closeFixture(f, &err)

	p, err := f.Bind(port, pin, CapInput|CapOutput|CapPull|CapInterrupt)
	if err != nil {
		return nil, err
	}
	b.timer.Start()
	defer b.timer.Stop()

	for _, flags := range []Flags{Input, OutputLow, OutputHigh, InputPullUp, InputPullDown} {
		flags := flags
		co := ConfigOverhead{Name: flags.String(), Flags: flags}
		if err = b.measure(&co, func() error { return b.drv.Configure(p, flags) }); err != nil {
			return res, err
		}
		res = append(res, co)
	}
	if err = b.drv.Configure(p, Input); err != nil {
		return res, configureError(p, Input, err)
	}
	for _, trig := range Triggers() {
		trig := trig
		co := ConfigOverhead{Name: trig.String(), Trigger: trig, Interrupt: true}
		if err = b.measure(&co, func() error { return b.drv.ConfigureInterrupt(p, trig) }); err != nil {
			return res, err
		}
		res = append(res, co)
	}
	if err = b.drv.ConfigureInterrupt(p, TriggerDisabled); err != nil {
		return res, interruptError(p, TriggerDisabled, err)
	}
	return res, nil
}

func (b *Benchmark) measure(co *ConfigOverhead, call func() error) error {
	if err := call(); err != nil {
		switch StatusOf(err) {
		case ErrRejectedFlags, ErrUnsupportedTrigger:
			b.log.Info("configuration unsupported", "config", co.Name, "err", err)
			return nil
		}
		return errors.Wrapf(err, "warm-up %s", co.Name)
	}
	co.Supported = true
	var acc SampleAccumulator
	var total Cycles
	restore := b.preempt.Suppress()
	for i := 0; i < b.cfg.ConfigSamples; i++ {
		acc.Attempt()
		start := b.timer.Now()
		err := call()
		end := b.timer.Now()
		if err != nil {
			restore()
			return errors.Wrapf(err, "%s sample %d", co.Name, i)
		}
		// back to back calls may fall within one tick, which is still a
		// sample, just a short one
		total += TimestampPair{start, end}.Elapsed()
	}
	restore()
	if total == 0 {
		return &DegenerateMeasurement{Op: "configure " + co.Name}
	}
	co.Samples = acc.Attempted
	co.MeanCycles = total / Cycles(co.Samples)
	co.Mean = b.timer.Duration(co.MeanCycles)
	b.log.Debug("configuration overhead", "config", co.Name, "mean", co.Mean)
	return nil
}
