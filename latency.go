// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// LatencyConfig contains the tunables for the LatencyProbe.
type LatencyConfig struct {
	// The number of samples attempted.
	Samples int

	// The maximum time to wait for each notification.
	Timeout time.Duration

	// Delay after driving the trigger low, before the sample is taken.
	PreSettle Settle

	// Delay after each sample.
	InterSample Settle

	// Take the end timestamp from the driver's event timestamp, if it
	// provides one, rather than from the timer when the handler runs.
	//
	// Only meaningful if the driver and the Timer share a clock.
	UseEventTimestamps bool
}

// DefaultLatencyConfig returns the default latency probe configuration.
func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		Samples:     100,
		Timeout:     100 * time.Millisecond,
		PreSettle:   SpinFor(10 * time.Microsecond),
		InterSample: SpinFor(100 * time.Microsecond),
	}
}

// LatencyResult contains the outcome of a latency probe run.
type LatencyResult struct {
	// The number of samples attempted.
	Attempted int

	// The number of valid samples.
	Valid int

	// The number of samples with no notification within the timeout.
	Timeouts int

	// The number of samples discarded because the end timestamp did not
	// follow the start.
	Discarded int

	// The sum of the valid samples.
	TotalCycles Cycles

	// The mean of the valid samples.
	MeanCycles Cycles

	// The mean, minimum and maximum latency.
	Mean time.Duration
	Min  time.Duration
	Max  time.Duration
}

// LatencyProbe measures the time from asserting a stimulus to receiving the
// corresponding interrupt notification.
//
// The trigger and echo pins must be wired together externally.
type LatencyProbe struct {
	drv     Driver
	cfg     LatencyConfig
	log     *slog.Logger
	timer   Timer
	preempt Preemption
	signal  *Signal

	// written by the handler, read by the probe after the signal is taken
	end atomic.Uint64
}

// NewLatencyProbe creates a LatencyProbe.
//
// The available options are [WithLogger], [WithTimer] and [WithPreemption].
func NewLatencyProbe(drv Driver, cfg LatencyConfig, options ...Option) *LatencyProbe {
	e := newEnv(options)
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultLatencyConfig().Samples
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLatencyConfig().Timeout
	}
	return &LatencyProbe{
		drv:     drv,
		cfg:     cfg,
		log:     e.log,
		timer:   e.timer,
		preempt: e.preempt,
		signal:  NewSignal(),
	}
}

// Run measures the latency from the trigger pin to the echo pin.
//
// Individual samples that time out or produce a non-monotonic timestamp pair
// are counted and discarded.  The run fails if no more than half of the
// samples are valid.
func (p *LatencyProbe) Run(w Wiring) (res LatencyResult, err error) {
	f := NewFixture(p.drv, WithLogger(p.log))
	defer closeFixture(f, &err)

	pair, err := f.BindPair(w.Port, w.Output, w.Input)
	if err != nil {
		return res, err
	}
	trigger, echo := pair.Output, pair.Input
	if err = p.drv.Configure(trigger, OutputLow); err != nil {
		return res, configureError(trigger, OutputLow, err)
	}
	if err = p.drv.Configure(echo, Input); err != nil {
		return res, configureError(echo, Input, err)
	}
	if err = p.drv.ConfigureInterrupt(echo, TriggerEdgeRising); err != nil {
		return res, interruptError(echo, TriggerEdgeRising, err)
	}
	if _, err = f.Register(w.Port, echo.Mask(), p.handler(echo.Mask())); err != nil {
		return res, err
	}
	p.signal.Reset()

	p.log.Info("latency probe starting", "trigger", trigger.String(), "echo", echo.String(),
		"samples", p.cfg.Samples)

	var acc SampleAccumulator
	p.timer.Start()
	for i := 0; i < p.cfg.Samples; i++ {
		acc.Attempt()
		p.signal.Reset()
		if err = p.drv.SetLevel(trigger, 0); err != nil {
			p.timer.Stop()
			return res, opError(trigger, "set level 0", err)
		}
		p.cfg.PreSettle.Wait()

		restore := p.preempt.Suppress()
		start := p.timer.Now()
		err = p.drv.SetLevel(trigger, 1)
		restore()
		if err != nil {
			p.timer.Stop()
			return res, opError(trigger, "set level 1", err)
		}

		if !p.signal.Take(p.cfg.Timeout) {
			res.Timeouts++
			p.log.Warn("latency sample timed out", "sample", i,
				"err", &TimingError{Pin: echo, Sample: i, Timeout: p.cfg.Timeout})
		} else {
			tp := TimestampPair{Start: start, End: Cycles(p.end.Load())}
			if !acc.Add(tp) {
				res.Discarded++
				p.log.Warn("latency sample discarded", "sample", i,
					"start", uint64(tp.Start), "end", uint64(tp.End))
			}
		}

		if err = p.drv.SetLevel(trigger, 0); err != nil {
			p.timer.Stop()
			return res, opError(trigger, "set level 0", err)
		}
		p.cfg.InterSample.Wait()
	}
	p.timer.Stop()

	res.Attempted = acc.Attempted
	res.Valid = acc.Valid
	res.TotalCycles = acc.Total
	res.MeanCycles = acc.Mean()
	res.Mean = p.timer.Duration(res.MeanCycles)
	res.Min = p.timer.Duration(acc.Min)
	res.Max = p.timer.Duration(acc.Max)

	if res.Valid == 0 {
		p.log.Error("no valid latency samples collected", "timeouts", res.Timeouts, "discarded", res.Discarded)
	} else {
		p.log.Info("latency probe complete", "valid", res.Valid, "attempted", res.Attempted,
			"mean_cycles", uint64(res.MeanCycles), "mean", res.Mean)
	}
	if res.Valid <= p.cfg.Samples/2 {
		return res, &TimingError{
			Pin:       echo,
			Sample:    -1,
			Timeout:   p.cfg.Timeout,
			Valid:     res.Valid,
			Attempted: res.Attempted,
		}
	}
	return res, nil
}

// handler returns the Handler that stamps the end of a sample and wakes the
// probe.
func (p *LatencyProbe) handler(echo PinMask) Handler {
	return func(evt Event) {
		if evt.Pins&echo == 0 {
			return
		}
		end := p.timer.Now()
		if p.cfg.UseEventTimestamps && evt.Timestamp > 0 {
			end = Cycles(evt.Timestamp)
		}
		p.end.Store(uint64(end))
		p.signal.Give()
	}
}
