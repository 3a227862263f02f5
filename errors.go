// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"fmt"
	"time"
)

// ConfigurationError indicates the driver rejected a configuration request.
//
// Tolerated, and counted, in stress runs.  Fatal in correctness scenarios.
type ConfigurationError struct {
	Pin     PinHandle
	Op      string
	Flags   Flags
	Trigger Trigger
	Err     error
}

func (e *ConfigurationError) Error() string {
	switch e.Op {
	case "configure":
		return fmt.Sprintf("%s: configure %s failed: %v", e.Pin, e.Flags, e.Err)
	case "configure interrupt":
		return fmt.Sprintf("%s: configure interrupt %s failed: %v", e.Pin, e.Trigger, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Pin, e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TimingError indicates an expected notification did not arrive in time, or
// that too few samples in a run were valid.
type TimingError struct {
	Pin PinHandle

	// The sample that timed out, or -1 for an aggregate failure.
	Sample int

	Timeout time.Duration

	// Valid and Attempted are set for aggregate failures.
	Valid     int
	Attempted int
}

func (e *TimingError) Error() string {
	if e.Sample < 0 {
		return fmt.Sprintf("%s: only %d of %d samples valid", e.Pin, e.Valid, e.Attempted)
	}
	return fmt.Sprintf("%s: sample %d: no notification within %s", e.Pin, e.Sample, e.Timeout)
}

// ConsistencyError indicates a pin read back a level other than the one
// programmed or expected.
//
// Always fatal.
type ConsistencyError struct {
	Pin      PinHandle
	Op       string
	Expected int
	Actual   int

	// Expected is a lower bound rather than an exact value.
	AtLeast bool
}

func (e *ConsistencyError) Error() string {
	if e.AtLeast {
		return fmt.Sprintf("%s: %s: expected at least %d, got %d", e.Pin, e.Op, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: %s: expected %d, got %d", e.Pin, e.Op, e.Expected, e.Actual)
}

// DegenerateMeasurement indicates a measured duration was zero, so the timer
// is too coarse or the harness is broken.
//
// Always fatal.
type DegenerateMeasurement struct {
	Op string
}

func (e *DegenerateMeasurement) Error() string {
	return fmt.Sprintf("%s: measured duration was zero", e.Op)
}

func configureError(pin PinHandle, flags Flags, err error) error {
	return &ConfigurationError{Pin: pin, Op: "configure", Flags: flags, Err: err}
}

func interruptError(pin PinHandle, trigger Trigger, err error) error {
	return &ConfigurationError{Pin: pin, Op: "configure interrupt", Trigger: trigger, Err: err}
}

func opError(pin PinHandle, op string, err error) error {
	return &ConfigurationError{Pin: pin, Op: op, Err: err}
}
