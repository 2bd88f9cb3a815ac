// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package meter

import (
	"time"

	"github.com/sustainable-computing-io/ryzen-power/internal/device"
)

// Scope tells which energy counter a Reading was derived from
type Scope string

const (
	ScopeCore    Scope = "core"
	ScopePackage Scope = "package"
)

// Reading is the average power of one counter over a measurement
type Reading struct {
	Scope Scope

	// Core identifies the logical cpu the counter was read through. For a
	// package reading it is the cpu the package counter was read on.
	Core device.LogicalCore

	Energy device.Energy
	Power  device.Power
}

// Result holds the readings of one measurement: one per core in the order
// requested, followed by the package reading
type Result struct {
	PackageID  int
	Duration   time.Duration // requested sampling duration
	EnergyUnit device.EnergyUnit
	Readings   []Reading
}

// Cores returns the per-core readings
func (r *Result) Cores() []Reading {
	cores := make([]Reading, 0, len(r.Readings))
	for _, reading := range r.Readings {
		if reading.Scope == ScopeCore {
			cores = append(cores, reading)
		}
	}
	return cores
}

// Package returns the package reading
func (r *Result) Package() Reading {
	for _, reading := range r.Readings {
		if reading.Scope == ScopePackage {
			return reading
		}
	}
	return Reading{Scope: ScopePackage}
}

// CoresPower returns the sum of all per-core readings
func (r *Result) CoresPower() device.Power {
	var total device.Power
	for _, reading := range r.Cores() {
		total += reading.Power
	}
	return total
}
