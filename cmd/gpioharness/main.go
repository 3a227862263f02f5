// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// gpioharness validates and characterises GPIO controller drivers.
package main

import (
	"fmt"
	"os"

	"github.com/warthog618/go-gpioharness/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gpioharness:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
