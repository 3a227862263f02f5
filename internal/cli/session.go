// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/warthog618/go-gpioharness"
	"github.com/warthog618/go-gpioharness/config"
	"github.com/warthog618/go-gpioharness/report"
	"github.com/warthog618/go-gpioharness/results"
)

// session is one invocation of the harness against a backend.
type session struct {
	ctx   context.Context
	opts  *RootOptions
	cfg   config.Config
	log   *slog.Logger
	be    *backend
	store *results.Store
	run   results.Run
	rpt   *report.Report
}

// stage is a part of the harness run within a session.
type stage func(s *session)

// loadConfig loads the configuration file, if any, and applies the flag
// overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return cfg, WrapExitError(ExitCommandError, "load config", err)
		}
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if opts.DB != "" {
		cfg.Results.DB = opts.DB
	}
	if err := config.Validate(&cfg); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession loads the configuration and opens the backend and results
// store.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := results.NewRun(cfg.Backend, cfg.Port)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "start run", err)
	}
	log := newLogger(cmd.ErrOrStderr(), opts.Verbose).With("run", run.ID.String())

	be, err := openBackend(cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open backend "+cfg.Backend, err)
	}
	run.Port = be.port
	s := &session{
		ctx:  ctx,
		opts: opts,
		cfg:  cfg,
		log:  log,
		be:   be,
		run:  run,
		rpt:  report.New(run.ID.String(), cfg.Backend, be.port),
	}
	if cfg.Results.DB != "" {
		if s.store, err = results.Open(cfg.Results.DB); err != nil {
			be.close()
			return nil, WrapExitError(ExitCommandError, "open results", err)
		}
	}
	log.Info("session started", "backend", cfg.Backend, "port", be.port)
	return s, nil
}

// close releases the backend and the results store.
func (s *session) close() {
	s.be.close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("results close failed", "err", err)
		}
	}
}

// finish records the run, writes the report and maps any failures to the
// exit code.
func (s *session) finish(w io.Writer) error {
	if s.store != nil {
		if err := s.store.Record(s.ctx, s.run); err != nil {
			return WrapExitError(ExitCommandError, "record results", err)
		}
	}
	if err := s.rpt.Write(w, s.opts.Format); err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}
	if f := s.rpt.Failures(); len(f) != 0 {
		s.log.Error("harness run failed", "failures", len(f))
		return NewExitError(ExitFailure, fmt.Sprintf("%d failures, first %s", len(f), f[0]))
	}
	s.log.Info("harness run passed")
	return nil
}

// runStages runs the stages in a fresh session.
func runStages(opts *RootOptions, cmd *cobra.Command, stages ...stage) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()
	for _, st := range stages {
		st(s)
	}
	return s.finish(cmd.OutOrStdout())
}

// measure adds a measurement to the run, first checking it against the
// history if required.
//
// The check precedes recording so a run is never compared with itself.
func (s *session) measure(name string, value float64, unit string, checked bool) {
	if checked && s.store != nil {
		err := s.store.CheckReproducible(s.ctx, name, value, s.cfg.Results.ReproducibilityFactor)
		if err != nil {
			s.log.Error("measurement not reproducible", "measurement", name, "err", err)
		}
		s.rpt.AddCheck(name, value, err)
	}
	s.run.Add(name, value, unit)
}

func (s *session) validate() {
	w := s.cfg.Wiring(s.be.port, s.cfg.Loopback)
	v := gpioharness.NewValidator(s.be.drv, s.cfg.ValidatorConfig(), gpioharness.WithLogger(s.log))
	rpt := v.Run(w)
	s.rpt.AddValidation(rpt)
	for _, sr := range rpt.Results {
		s.run.AddScenario(sr.Name, sr.Err)
	}
}

func (s *session) latency() {
	w := s.cfg.Wiring(s.be.port, s.cfg.Echo)
	p := gpioharness.NewLatencyProbe(s.be.drv, s.cfg.LatencyConfig(), gpioharness.WithLogger(s.log))
	res, err := p.Run(w)
	s.rpt.AddLatency(w, res, err)
	s.measure("latency.valid", float64(res.Valid), "samples", false)
	if res.Valid > 0 {
		s.measure("latency.mean", float64(res.Mean), "ns", false)
		s.measure("latency.min", float64(res.Min), "ns", false)
		s.measure("latency.max", float64(res.Max), "ns", false)
	}
}

func (s *session) throughput() {
	b := gpioharness.NewBenchmark(s.be.drv, s.cfg.ThroughputConfig(), gpioharness.WithLogger(s.log))

	tr, err := b.OutputToggle(s.be.port, s.cfg.TogglePin)
	s.rpt.AddToggle(s.cfg.TogglePin, tr, err)
	if err == nil {
		s.measure("throughput.toggles_per_sec", tr.TogglesPerSec, "1/s", true)
	}

	rr, err := b.InputRead(s.be.port, s.cfg.ReadPin)
	s.rpt.AddRead(s.cfg.ReadPin, rr, err)
	if err == nil {
		s.measure("throughput.reads_per_sec", rr.ReadsPerSec, "1/s", true)
	}

	co, err := b.ConfigOverhead(s.be.port, s.cfg.ConfigPin)
	s.rpt.AddConfigOverhead(s.cfg.ConfigPin, co, err)
	for _, c := range co {
		if !c.Supported {
			continue
		}
		name := "config." + c.Name
		if c.Interrupt {
			name = "config.irq." + c.Name
		}
		s.measure(name, float64(c.Mean), "ns", false)
	}
}

func (s *session) stress() {
	h := gpioharness.NewStressHarness(s.be.drv, s.cfg.StressConfig(), gpioharness.WithLogger(s.log))
	res, err := h.Run(s.be.port, s.cfg.StressPins)
	s.rpt.AddStress(s.be.port, res, err)
	if len(res.Successes) == 0 {
		return
	}
	least := res.Successes[0]
	for _, n := range res.Successes[1:] {
		if n < least {
			least = n
		}
	}
	s.measure("stress.min_successes", float64(least), "iterations", false)
	s.measure("stress.consistency_errors", float64(res.TotalConsistencyErrors()), "errors", false)
}
