// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package config provides the YAML configuration for the gpioharness
// command.
//
// Every field has a default, so a configuration file need only contain the
// fields that differ from Default.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpioharness"
	"gopkg.in/yaml.v3"
)

// Config is the complete harness configuration.
type Config struct {
	// The driver backend: "cdev", "memsim" or "gpiosim".
	Backend string `yaml:"backend"`

	// The port under test.
	//
	// Required for cdev.  The simulated backends default to the port they
	// create.
	Port string `yaml:"port,omitempty"`

	// The loopback pair used by the validator.
	Loopback Pair `yaml:"loopback"`

	// The loopback pair used by the latency probe.
	Echo Pair `yaml:"echo"`

	// The pin driven by the output toggle benchmark.
	TogglePin int `yaml:"toggle_pin"`

	// The pin read by the input read benchmark.
	ReadPin int `yaml:"read_pin"`

	// The pin reconfigured by the configuration overhead benchmark.
	ConfigPin int `yaml:"config_pin"`

	// The pins contended by the stress harness, one worker per pin.
	StressPins []int `yaml:"stress_pins,flow"`

	Validator  Validator  `yaml:"validator"`
	Latency    Latency    `yaml:"latency"`
	Throughput Throughput `yaml:"throughput"`
	Stress     Stress     `yaml:"stress"`
	Results    Results    `yaml:"results"`
}

// Pair is a loopback pair, an output pin wired to an input pin.
type Pair struct {
	Output int `yaml:"output"`
	Input  int `yaml:"input"`
}

// Settle is a delay, slept through or busy waited.
type Settle struct {
	Duration time.Duration `yaml:"duration"`
	Busy     bool          `yaml:"busy,omitempty"`
}

// Validator contains the validator tunables.
type Validator struct {
	LevelSettle        Settle `yaml:"level_settle"`
	EdgeSettle         Settle `yaml:"edge_settle"`
	LevelTriggerSettle Settle `yaml:"level_trigger_settle"`
	Repeat             int    `yaml:"repeat"`
}

// Latency contains the latency probe tunables.
type Latency struct {
	Samples            int           `yaml:"samples"`
	Timeout            time.Duration `yaml:"timeout"`
	PreSettle          Settle        `yaml:"pre_settle"`
	InterSample        Settle        `yaml:"inter_sample"`
	UseEventTimestamps bool          `yaml:"use_event_timestamps"`
}

// Throughput contains the benchmark tunables.
type Throughput struct {
	Toggles       int `yaml:"toggles"`
	Reads         int `yaml:"reads"`
	ConfigSamples int `yaml:"config_samples"`
}

// Stress contains the stress harness tunables.
type Stress struct {
	Iterations      int     `yaml:"iterations"`
	MinSuccessRatio float64 `yaml:"min_success_ratio"`
	VerifyOutputs   bool    `yaml:"verify_outputs"`
}

// Results contains the results history settings.
type Results struct {
	// Path to the sqlite database.  Empty disables the history.
	DB string `yaml:"db,omitempty"`

	// The largest ratio between a throughput result and the mean of its
	// history before the result is considered not reproducible.
	ReproducibilityFactor float64 `yaml:"reproducibility_factor"`
}

// Default returns the default configuration.
func Default() Config {
	v := gpioharness.DefaultValidatorConfig()
	l := gpioharness.DefaultLatencyConfig()
	tp := gpioharness.DefaultThroughputConfig()
	s := gpioharness.DefaultStressConfig()
	return Config{
		Backend:    "memsim",
		Loopback:   Pair{Output: 0, Input: 1},
		Echo:       Pair{Output: 2, Input: 3},
		TogglePin:  4,
		ReadPin:    5,
		ConfigPin:  6,
		StressPins: []int{8, 9, 10, 11},
		Validator: Validator{
			LevelSettle:        fromSettle(v.LevelSettle),
			EdgeSettle:         fromSettle(v.EdgeSettle),
			LevelTriggerSettle: fromSettle(v.LevelTriggerSettle),
			Repeat:             v.Repeat,
		},
		Latency: Latency{
			Samples:     l.Samples,
			Timeout:     l.Timeout,
			PreSettle:   fromSettle(l.PreSettle),
			InterSample: fromSettle(l.InterSample),
		},
		Throughput: Throughput{
			Toggles:       tp.Toggles,
			Reads:         tp.Reads,
			ConfigSamples: tp.ConfigSamples,
		},
		Stress: Stress{
			Iterations:      s.Iterations,
			MinSuccessRatio: s.MinSuccessRatio,
			VerifyOutputs:   s.VerifyOutputs,
		},
		Results: Results{
			ReproducibilityFactor: 10,
		},
	}
}

// Load reads the configuration from the YAML file at path, applying it over
// the defaults, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes the configuration from YAML, applying it over the defaults,
// and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func fromSettle(s gpioharness.Settle) Settle {
	return Settle{Duration: s.Duration, Busy: s.Busy}
}

func (s Settle) settle() gpioharness.Settle {
	return gpioharness.Settle{Duration: s.Duration, Busy: s.Busy}
}

// Wiring returns the wiring of a pair on the configured port.
func (c Config) Wiring(port string, p Pair) gpioharness.Wiring {
	return gpioharness.Wiring{Port: port, Output: p.Output, Input: p.Input}
}

// ValidatorConfig returns the validator configuration.
func (c Config) ValidatorConfig() gpioharness.ValidatorConfig {
	return gpioharness.ValidatorConfig{
		LevelSettle:        c.Validator.LevelSettle.settle(),
		EdgeSettle:         c.Validator.EdgeSettle.settle(),
		LevelTriggerSettle: c.Validator.LevelTriggerSettle.settle(),
		Repeat:             c.Validator.Repeat,
	}
}

// LatencyConfig returns the latency probe configuration.
func (c Config) LatencyConfig() gpioharness.LatencyConfig {
	return gpioharness.LatencyConfig{
		Samples:            c.Latency.Samples,
		Timeout:            c.Latency.Timeout,
		PreSettle:          c.Latency.PreSettle.settle(),
		InterSample:        c.Latency.InterSample.settle(),
		UseEventTimestamps: c.Latency.UseEventTimestamps,
	}
}

// ThroughputConfig returns the benchmark configuration.
func (c Config) ThroughputConfig() gpioharness.ThroughputConfig {
	return gpioharness.ThroughputConfig{
		Toggles:       c.Throughput.Toggles,
		Reads:         c.Throughput.Reads,
		ConfigSamples: c.Throughput.ConfigSamples,
	}
}

// StressConfig returns the stress harness configuration.
func (c Config) StressConfig() gpioharness.StressConfig {
	return gpioharness.StressConfig{
		Iterations:      c.Stress.Iterations,
		MinSuccessRatio: c.Stress.MinSuccessRatio,
		VerifyOutputs:   c.Stress.VerifyOutputs,
	}
}

// MaxPin returns the highest pin referenced by the configuration.
func (c Config) MaxPin() int {
	pins := append([]int{
		c.Loopback.Output, c.Loopback.Input,
		c.Echo.Output, c.Echo.Input,
		c.TogglePin, c.ReadPin, c.ConfigPin,
	}, c.StressPins...)
	m := 0
	for _, p := range pins {
		if p > m {
			m = p
		}
	}
	return m
}
