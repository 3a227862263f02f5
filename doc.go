// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpioharness is a library for validating and characterising GPIO
controller drivers.

The driver under test is accessed through the [Driver] interface, which
exposes pin configuration, level access, interrupt trigger configuration and
callback registration.  Drivers are provided for the Linux GPIO character
device (package cdev) and for an in-process register bank simulator (package
memsim).

Pins are bound to a scenario using a [Fixture], which checks the pins exist
and have the required capabilities, and returns them to Disconnected when the
scenario completes.

Most scenarios use loopback pairs, an output pin wired to an input pin, so
the harness can both drive and observe a signal.  The wiring is external to
the driver and is described by a [Wiring].

The harness provides four components:

  - [Validator] checks the functional behaviour of level access, pulls and
    the interrupt triggers.
  - [LatencyProbe] measures the time from driving an output to receiving the
    corresponding interrupt callback.
  - [Benchmark] measures the sustained rate of level changes, level reads and
    configuration calls.
  - [StressHarness] reconfigures pins sharing a register bank from concurrent
    workers to expose read-modify-write races.

# Example Usage

Validate the pair with output pin 3 wired to input pin 4:

	rpt := gpioharness.NewValidator(drv, gpioharness.DefaultValidatorConfig()).
		Run(gpioharness.Wiring{Port: "gpiochip0", Output: 3, Input: 4})
	if err := rpt.Err(); err != nil {
		...
	}

Measure the interrupt latency over the same pair:

	p := gpioharness.NewLatencyProbe(drv, gpioharness.DefaultLatencyConfig(),
		gpioharness.WithLogger(log))
	res, err := p.Run(gpioharness.Wiring{Port: "gpiochip0", Output: 3, Input: 4})

Timing measurements are taken in [Cycles] of a [Timer], which defaults to
CLOCK_MONOTONIC, inside a critical section that locks the measuring
goroutine to its thread and suspends the garbage collector.
*/
package gpioharness
