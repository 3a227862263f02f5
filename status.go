// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import "github.com/pkg/errors"

// Status is a driver status code.
//
// Drivers return a Status, possibly wrapped, to indicate why a call failed.
type Status string

func (s Status) Error() string { return string(s) }

const (
	// StatusOK is reported by StatusOf for a nil error.
	StatusOK Status = "ok"

	// The requested flag combination is not supported.
	ErrRejectedFlags Status = "rejected_flags"

	// The port or pin is not available.
	ErrNotReady Status = "not_ready"

	// The requested interrupt trigger is not supported.
	ErrUnsupportedTrigger Status = "unsupported_trigger"

	// The pin is not configured as an output.
	ErrNotOutput Status = "not_output"

	// The pin is outside the range of the port.
	ErrInvalidPin Status = "invalid_pin"

	// The port is not known to the driver.
	ErrUnknownPort Status = "unknown_port"

	// The registration is not active.
	ErrUnknownRegistration Status = "unknown_registration"

	// Catch-all for errors that carry no Status.
	StatusError Status = "error"
)

// StatusOf extracts the Status from an error, defaulting to StatusError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusError
}
