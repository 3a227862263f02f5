// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cli provides the gpioharness command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/go-gpioharness/report"
)

// RootOptions holds the global flags for all commands.
//
// Empty values leave the corresponding configuration unchanged.
type RootOptions struct {
	Config  string
	Backend string
	Port    string
	DB      string
	Verbose bool
	Format  string // "text" | "yaml"
}

// NewRootCommand creates the root command for the gpioharness CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gpioharness",
		Short: "Validate and characterise GPIO drivers",
		Long: `Validate and characterise a GPIO controller driver.

Runs functional scenarios, interrupt latency measurements, throughput
benchmarks and concurrent configuration stress against a port, using
loopback pairs wired between outputs and inputs.

The backend may be the Linux GPIO character device (cdev), a gpio-sim chip
with software loopbacks (gpiosim, requires root), or an in-process register
bank simulator (memsim).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !contains(report.Formats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, report.Formats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.Config, "config", "c", "", "configuration file (YAML)")
	pf.StringVarP(&opts.Backend, "backend", "b", "", "driver backend (cdev|gpiosim|memsim)")
	pf.StringVarP(&opts.Port, "port", "p", "", "port under test, e.g. gpiochip0")
	pf.StringVar(&opts.DB, "db", "", "results history database")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	pf.StringVar(&opts.Format, "format", "text", "report format (text|yaml)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLatencyCommand(opts))
	cmd.AddCommand(NewThroughputCommand(opts))
	cmd.AddCommand(NewStressCommand(opts))
	cmd.AddCommand(NewAllCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
