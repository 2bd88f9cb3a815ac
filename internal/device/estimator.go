// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
)

// counterModulus is the wrap boundary of the 32-bit energy counters
const counterModulus = uint64(1) << 32

// CounterDelta returns the number of counts between two reads of the same
// energy counter. An end value below start means the counter wrapped once.
// Multiple wraps within one interval are indistinguishable and not corrected.
func CounterDelta(start, end uint32) uint64 {
	if end >= start {
		return uint64(end - start)
	}
	return uint64(end) + counterModulus - uint64(start)
}

// CounterEnergy returns the energy consumed between two samples
func CounterEnergy(start, end Sample, unit EnergyUnit) Energy {
	return EnergyFromJoules(float64(CounterDelta(start.Value, end.Value)) * unit.Joules())
}

// EstimatePower returns the average power between two samples of the same
// counter. The end sample must be taken strictly after the start sample.
func EstimatePower(start, end Sample, unit EnergyUnit) (Power, error) {
	elapsed := end.Timestamp.Sub(start.Timestamp)
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w: %s between samples", ErrInvalidInterval, elapsed)
	}

	joules := float64(CounterDelta(start.Value, end.Value)) * unit.Joules()
	return PowerFromWatts(joules / elapsed.Seconds()), nil
}
