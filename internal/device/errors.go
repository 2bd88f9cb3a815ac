// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds returned by the register and measurement pipeline. Concrete
// errors wrap one of these so callers can match them with errors.Is.
var (
	// ErrAccessDenied is returned when the caller lacks the privilege to open
	// or read the MSR device
	ErrAccessDenied = errors.New("access denied")

	// ErrDeviceUnavailable is returned when the MSR interface is missing, e.g.
	// the msr kernel module is not loaded or the CPU is not supported
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrInvalidRegister is returned when the platform rejects a read of a
	// register address
	ErrInvalidRegister = errors.New("invalid register")

	// ErrInvalidInterval is returned when the elapsed time between two samples
	// is not positive
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrCancelled is returned when a measurement is aborted before it completes
	ErrCancelled = errors.New("measurement cancelled")
)

// MSRError records a failed operation on a model-specific register
type MSRError struct {
	Op      string // "open" or "read"
	CPU     int
	Address uint32
	Kind    error // one of the Err* kinds above
	Err     error // underlying error, may be nil
}

func (e *MSRError) Error() string {
	msg := fmt.Sprintf("msr %s cpu %d", e.Op, e.CPU)
	if e.Op != "open" {
		msg += fmt.Sprintf(" register 0x%x", e.Address)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MSRError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// openErrorKind maps a failure to open /dev/cpu/N/msr to an error kind.
// ENOENT, ENXIO and ENODEV all mean the msr driver or the cpu is missing.
func openErrorKind(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return ErrAccessDenied
	}
	return ErrDeviceUnavailable
}

// readErrorKind maps a failed positioned read to an error kind. The msr driver
// answers EIO for registers the CPU does not implement.
func readErrorKind(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return ErrAccessDenied
	}
	return ErrInvalidRegister
}
