// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package meter

import (
	"log/slog"

	"github.com/sustainable-computing-io/ryzen-power/internal/device"
	"k8s.io/utils/clock"
)

// OpenFn opens the register reader used for one measurement
type OpenFn func() (device.RegisterReader, error)

// EstimateFn computes the average power between two samples of one counter
type EstimateFn func(start, end device.Sample, unit device.EnergyUnit) (device.Power, error)

type Opts struct {
	logger     *slog.Logger
	clock      clock.Clock
	devicePath string
	registers  device.Registers
	open       OpenFn
	estimate   EstimateFn
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:     slog.Default(),
		clock:      clock.RealClock{},
		devicePath: device.DefaultMSRPath,
		registers:  device.AMDRegisters,
		estimate:   device.EstimatePower,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Meter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock used to timestamp samples and to wait between them
func WithClock(c clock.Clock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithDevicePath sets the msr device path template, e.g. /dev/cpu/%d/msr
func WithDevicePath(path string) OptionFn {
	return func(o *Opts) {
		o.devicePath = path
	}
}

// WithRegisters sets the RAPL register layout
func WithRegisters(r device.Registers) OptionFn {
	return func(o *Opts) {
		o.registers = r
	}
}

// WithRegisterReader sets how the register reader is opened; overrides WithDevicePath
func WithRegisterReader(open OpenFn) OptionFn {
	return func(o *Opts) {
		o.open = open
	}
}

// WithEstimator sets the power estimator
func WithEstimator(fn EstimateFn) OptionFn {
	return func(o *Opts) {
		o.estimate = fn
	}
}
