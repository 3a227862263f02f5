// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cli

import (
	"github.com/spf13/cobra"
)

func stageCommand(opts *RootOptions, use, short, long string, stages ...stage) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, cmd, stages...)
		},
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return stageCommand(opts, "validate", "Run the correctness scenarios",
		`Run the correctness scenarios against the loopback pair.

Checks output readback, loopback levels, input pulls, configuration
idempotence and each interrupt trigger.  A failing scenario does not prevent
the remaining scenarios from running.`,
		(*session).validate)
}

// NewLatencyCommand creates the latency command.
func NewLatencyCommand(opts *RootOptions) *cobra.Command {
	return stageCommand(opts, "latency", "Measure interrupt latency",
		`Measure the time from driving the echo pair output high to receiving the
rising edge callback for its input.

Fails if no more than half of the samples are valid.`,
		(*session).latency)
}

// NewThroughputCommand creates the throughput command.
func NewThroughputCommand(opts *RootOptions) *cobra.Command {
	return stageCommand(opts, "throughput", "Measure driver throughput",
		`Measure the output toggle rate, the input read rate and the cost of each
pin and interrupt configuration.

If a results database is configured, the toggle and read rates are checked
against the mean of previous runs.`,
		(*session).throughput)
}

// NewStressCommand creates the stress command.
func NewStressCommand(opts *RootOptions) *cobra.Command {
	return stageCommand(opts, "stress", "Stress concurrent configuration",
		`Reconfigure the stress pins, which must share a register bank, from
concurrent workers, then check every pin can still be driven.`,
		(*session).stress)
}

// NewAllCommand creates the all command.
func NewAllCommand(opts *RootOptions) *cobra.Command {
	return stageCommand(opts, "all", "Run every stage",
		`Run the correctness scenarios, latency probe, throughput benchmarks and
stress harness, in that order, and report them together.`,
		(*session).validate,
		(*session).latency,
		(*session).throughput,
		(*session).stress)
}

// NewConfigCommand creates the config command.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration that would be used, after applying the
configuration file and flags over the defaults, as YAML.

The output is a complete configuration file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return WrapExitError(ExitCommandError, "encode config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
