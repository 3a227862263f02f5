// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package config

import (
	"github.com/pkg/errors"
)

// Backends lists the supported driver backends.
var Backends = []string{"cdev", "memsim", "gpiosim"}

// Validate checks the configuration is consistent.
//
// It does not modify the configuration.
func Validate(cfg *Config) error {
	if !contains(Backends, cfg.Backend) {
		return errors.Errorf("backend %q: must be one of %v", cfg.Backend, Backends)
	}
	if cfg.Backend == "cdev" && cfg.Port == "" {
		return errors.New("port: required for the cdev backend")
	}

	pairs := []struct {
		name string
		p    Pair
	}{
		{"loopback", cfg.Loopback},
		{"echo", cfg.Echo},
	}
	for _, pr := range pairs {
		if pr.p.Output < 0 || pr.p.Input < 0 {
			return errors.Errorf("%s: negative pin", pr.name)
		}
		if pr.p.Output == pr.p.Input {
			return errors.Errorf("%s: output and input are both pin %d", pr.name, pr.p.Output)
		}
	}
	for name, p := range map[string]int{
		"toggle_pin": cfg.TogglePin,
		"read_pin":   cfg.ReadPin,
		"config_pin": cfg.ConfigPin,
	} {
		if p < 0 {
			return errors.Errorf("%s: negative pin", name)
		}
	}

	if len(cfg.StressPins) < 2 {
		return errors.Errorf("stress_pins: need at least 2 pins, have %d", len(cfg.StressPins))
	}
	seen := map[int]bool{}
	for _, p := range cfg.StressPins {
		if p < 0 {
			return errors.New("stress_pins: negative pin")
		}
		if seen[p] {
			return errors.Errorf("stress_pins: pin %d repeated", p)
		}
		seen[p] = true
	}
	if m := cfg.MaxPin(); m >= 64 {
		return errors.Errorf("pin %d: ports are limited to 64 pins", m)
	}

	for name, s := range map[string]Settle{
		"validator.level_settle":         cfg.Validator.LevelSettle,
		"validator.edge_settle":          cfg.Validator.EdgeSettle,
		"validator.level_trigger_settle": cfg.Validator.LevelTriggerSettle,
		"latency.pre_settle":             cfg.Latency.PreSettle,
		"latency.inter_sample":           cfg.Latency.InterSample,
	} {
		if s.Duration < 0 {
			return errors.Errorf("%s: negative duration", name)
		}
	}
	if cfg.Validator.Repeat < 1 {
		return errors.New("validator.repeat: must be at least 1")
	}
	if cfg.Latency.Samples < 1 {
		return errors.New("latency.samples: must be at least 1")
	}
	if cfg.Latency.Timeout <= 0 {
		return errors.New("latency.timeout: must be positive")
	}
	if cfg.Throughput.Toggles < 2 || cfg.Throughput.Toggles%2 != 0 {
		return errors.Errorf("throughput.toggles: must be a positive even number, got %d", cfg.Throughput.Toggles)
	}
	if cfg.Throughput.Reads < 1 {
		return errors.New("throughput.reads: must be at least 1")
	}
	if cfg.Throughput.ConfigSamples < 1 {
		return errors.New("throughput.config_samples: must be at least 1")
	}
	if cfg.Stress.Iterations < 1 {
		return errors.New("stress.iterations: must be at least 1")
	}
	if cfg.Stress.MinSuccessRatio <= 0 || cfg.Stress.MinSuccessRatio > 1 {
		return errors.Errorf("stress.min_success_ratio: must be in (0, 1], got %g", cfg.Stress.MinSuccessRatio)
	}
	if cfg.Results.ReproducibilityFactor < 1 {
		return errors.Errorf("results.reproducibility_factor: must be at least 1, got %g", cfg.Results.ReproducibilityFactor)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
