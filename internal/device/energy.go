// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"math"
)

// Energy is an amount of energy counted in microjoules
type Energy uint64

// Power is an average power level in microwatts
type Power float64

// Energy and power scales
const (
	MicroJoule Energy = 1
	MilliJoule Energy = 1_000
	Joule      Energy = 1_000_000

	MicroWatt Power = 1
	MilliWatt Power = 1_000
	Watt      Power = 1_000_000
)

// EnergyFromJoules rounds j to the nearest microjoule. Values at or below
// zero map to 0 since the counters never run backwards.
func EnergyFromJoules(j float64) Energy {
	if j <= 0 {
		return 0
	}
	return Energy(math.Round(j * float64(Joule)))
}

// PowerFromWatts scales w to microwatts
func PowerFromWatts(w float64) Power {
	return Power(w * float64(Watt))
}

func (e Energy) MicroJoules() uint64 { return uint64(e) }

func (e Energy) Joules() float64 { return float64(e) / float64(Joule) }

func (e Energy) String() string { return fmt.Sprintf("%.2fJ", e.Joules()) }

func (p Power) MicroWatts() float64 { return float64(p) }

func (p Power) Watts() float64 { return float64(p) / float64(Watt) }

func (p Power) String() string { return fmt.Sprintf("%.2fW", p.Watts()) }
