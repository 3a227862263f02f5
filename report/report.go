// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package report collects the outcomes of a harness run and renders them as
// text or YAML.
package report

import (
	"time"

	"github.com/warthog618/go-gpioharness"
)

// Report is the outcome of a harness run.
//
// Sections that were not run are nil.
type Report struct {
	Run     string `yaml:"run"`
	Backend string `yaml:"backend"`
	Port    string `yaml:"port"`

	Validation *Validation `yaml:"validation,omitempty"`
	Latency    *Latency    `yaml:"latency,omitempty"`
	Throughput *Throughput `yaml:"throughput,omitempty"`
	Stress     *Stress     `yaml:"stress,omitempty"`

	// Measurements compared against the results history.
	Checks []Check `yaml:"checks,omitempty"`
}

// Validation is the outcome of the correctness scenarios.
type Validation struct {
	Wiring    string     `yaml:"wiring"`
	Passed    int        `yaml:"passed"`
	Failed    int        `yaml:"failed"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is the outcome of one correctness scenario.
type Scenario struct {
	Name    string        `yaml:"name"`
	Passed  bool          `yaml:"passed"`
	Elapsed time.Duration `yaml:"elapsed"`
	Error   string        `yaml:"error,omitempty"`
}

// Latency is the outcome of the latency probe.
type Latency struct {
	Wiring     string        `yaml:"wiring"`
	Attempted  int           `yaml:"attempted"`
	Valid      int           `yaml:"valid"`
	Timeouts   int           `yaml:"timeouts"`
	Discarded  int           `yaml:"discarded"`
	MeanCycles uint64        `yaml:"mean_cycles"`
	Mean       time.Duration `yaml:"mean"`
	Min        time.Duration `yaml:"min"`
	Max        time.Duration `yaml:"max"`
	Error      string        `yaml:"error,omitempty"`
}

// Throughput is the outcome of the benchmarks.
type Throughput struct {
	Toggle *Toggle          `yaml:"toggle,omitempty"`
	Read   *Read            `yaml:"read,omitempty"`
	Config *ConfigOverheads `yaml:"config,omitempty"`
}

// Toggle is the outcome of the output toggle benchmark.
type Toggle struct {
	Pin           int           `yaml:"pin"`
	Toggles       int           `yaml:"toggles"`
	Elapsed       time.Duration `yaml:"elapsed"`
	PerToggle     time.Duration `yaml:"per_toggle"`
	TogglesPerSec float64       `yaml:"toggles_per_sec"`
	SquareWaveHz  float64       `yaml:"square_wave_hz"`
	Error         string        `yaml:"error,omitempty"`
}

// Read is the outcome of the input read benchmark.
type Read struct {
	Pin         int           `yaml:"pin"`
	Reads       int           `yaml:"reads"`
	Elapsed     time.Duration `yaml:"elapsed"`
	PerRead     time.Duration `yaml:"per_read"`
	ReadsPerSec float64       `yaml:"reads_per_sec"`
	Checksum    int           `yaml:"checksum"`
	Error       string        `yaml:"error,omitempty"`
}

// ConfigOverheads is the outcome of the configuration overhead benchmark.
type ConfigOverheads struct {
	Pin     int           `yaml:"pin"`
	Entries []ConfigEntry `yaml:"entries"`
	Error   string        `yaml:"error,omitempty"`
}

// ConfigEntry is the cost of one configuration.
type ConfigEntry struct {
	Name       string        `yaml:"name"`
	Interrupt  bool          `yaml:"interrupt,omitempty"`
	Supported  bool          `yaml:"supported"`
	Samples    int           `yaml:"samples,omitempty"`
	MeanCycles uint64        `yaml:"mean_cycles,omitempty"`
	Mean       time.Duration `yaml:"mean,omitempty"`
}

// Stress is the outcome of the stress harness.
type Stress struct {
	Port       string   `yaml:"port"`
	Iterations int      `yaml:"iterations"`
	Workers    []Worker `yaml:"workers"`
	Error      string   `yaml:"error,omitempty"`
}

// Worker is the outcome of one stress worker.
type Worker struct {
	Pin               int `yaml:"pin"`
	Successes         int `yaml:"successes"`
	ConfigFailures    int `yaml:"config_failures"`
	InterruptFailures int `yaml:"interrupt_failures"`
	ConsistencyErrors int `yaml:"consistency_errors"`

	UnsupportedTriggers int `yaml:"unsupported_triggers,omitempty"`
	ReadFailures        int `yaml:"read_failures,omitempty"`
}

// Check is the comparison of a measurement against its history.
type Check struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
	Error string  `yaml:"error,omitempty"`
}

// New creates an empty Report.
func New(run, backend, port string) *Report {
	return &Report{Run: run, Backend: backend, Port: port}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AddValidation adds the outcome of a validator run.
func (r *Report) AddValidation(rpt gpioharness.ValidationReport) {
	v := &Validation{Wiring: rpt.Wiring.String()}
	for _, sr := range rpt.Results {
		v.Scenarios = append(v.Scenarios, Scenario{
			Name:    sr.Name,
			Passed:  sr.Passed(),
			Elapsed: sr.Elapsed,
			Error:   errString(sr.Err),
		})
		if sr.Passed() {
			v.Passed++
		} else {
			v.Failed++
		}
	}
	r.Validation = v
}

// AddLatency adds the outcome of a latency probe run.
func (r *Report) AddLatency(w gpioharness.Wiring, res gpioharness.LatencyResult, err error) {
	r.Latency = &Latency{
		Wiring:     w.String(),
		Attempted:  res.Attempted,
		Valid:      res.Valid,
		Timeouts:   res.Timeouts,
		Discarded:  res.Discarded,
		MeanCycles: uint64(res.MeanCycles),
		Mean:       res.Mean,
		Min:        res.Min,
		Max:        res.Max,
		Error:      errString(err),
	}
}

func (r *Report) throughput() *Throughput {
	if r.Throughput == nil {
		r.Throughput = &Throughput{}
	}
	return r.Throughput
}

// AddToggle adds the outcome of the output toggle benchmark.
func (r *Report) AddToggle(pin int, res gpioharness.ToggleResult, err error) {
	r.throughput().Toggle = &Toggle{
		Pin:           pin,
		Toggles:       res.Toggles,
		Elapsed:       res.Elapsed,
		PerToggle:     res.PerToggle,
		TogglesPerSec: res.TogglesPerSec,
		SquareWaveHz:  res.SquareWaveHz,
		Error:         errString(err),
	}
}

// AddRead adds the outcome of the input read benchmark.
func (r *Report) AddRead(pin int, res gpioharness.ReadResult, err error) {
	r.throughput().Read = &Read{
		Pin:         pin,
		Reads:       res.Reads,
		Elapsed:     res.Elapsed,
		PerRead:     res.PerRead,
		ReadsPerSec: res.ReadsPerSec,
		Checksum:    res.Checksum,
		Error:       errString(err),
	}
}

// AddConfigOverhead adds the outcome of the configuration overhead
// benchmark.
func (r *Report) AddConfigOverhead(pin int, res []gpioharness.ConfigOverhead, err error) {
	co := &ConfigOverheads{Pin: pin, Error: errString(err)}
	for _, c := range res {
		co.Entries = append(co.Entries, ConfigEntry{
			Name:       c.Name,
			Interrupt:  c.Interrupt,
			Supported:  c.Supported,
			Samples:    c.Samples,
			MeanCycles: uint64(c.MeanCycles),
			Mean:       c.Mean,
		})
	}
	r.throughput().Config = co
}

// AddStress adds the outcome of a stress run.
func (r *Report) AddStress(port string, res gpioharness.StressResult, err error) {
	s := &Stress{Port: port, Iterations: res.Iterations, Error: errString(err)}
	for i, p := range res.Pins {
		w := Worker{Pin: p.Pin()}
		if i < len(res.Successes) {
			w.Successes = res.Successes[i]
		}
		if i < len(res.ConfigFailures) {
			w.ConfigFailures = res.ConfigFailures[i]
			w.InterruptFailures = res.InterruptFailures[i]
			w.ConsistencyErrors = res.ConsistencyErrors[i]
		}
		if i < len(res.UnsupportedTriggers) {
			w.UnsupportedTriggers = res.UnsupportedTriggers[i]
			w.ReadFailures = res.ReadFailures[i]
		}
		s.Workers = append(s.Workers, w)
	}
	r.Stress = s
}

// AddCheck adds the outcome of a reproducibility check.
func (r *Report) AddCheck(name string, value float64, err error) {
	r.Checks = append(r.Checks, Check{Name: name, Value: value, Error: errString(err)})
}

// Failures returns a description of each failure in the report.
func (r *Report) Failures() []string {
	var f []string
	add := func(section, msg string) {
		if msg != "" {
			f = append(f, section+": "+msg)
		}
	}
	if v := r.Validation; v != nil {
		for _, s := range v.Scenarios {
			if !s.Passed {
				add("validation "+s.Name, s.Error)
			}
		}
	}
	if r.Latency != nil {
		add("latency", r.Latency.Error)
	}
	if tp := r.Throughput; tp != nil {
		if tp.Toggle != nil {
			add("output toggle", tp.Toggle.Error)
		}
		if tp.Read != nil {
			add("input read", tp.Read.Error)
		}
		if tp.Config != nil {
			add("configuration overhead", tp.Config.Error)
		}
	}
	if r.Stress != nil {
		add("stress", r.Stress.Error)
	}
	for _, c := range r.Checks {
		add("reproducibility", c.Error)
	}
	return f
}

// Passed returns true if the report contains no failures.
func (r *Report) Passed() bool {
	return len(r.Failures()) == 0
}
