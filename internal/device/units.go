// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"math"
)

// Registers describes the RAPL register layout of a CPU family
type Registers struct {
	PowerUnit     uint32 // RAPL power unit register
	CoreEnergy    uint32 // per-core energy status register
	PackageEnergy uint32 // per-package energy status register

	// bit fields of the power unit register
	PowerUnitMask   uint64
	PowerUnitShift  uint
	EnergyUnitMask  uint64
	EnergyUnitShift uint
	TimeUnitMask    uint64
	TimeUnitShift   uint
}

// AMDRegisters is the RAPL register layout of AMD family 17h and later
// (Zen) processors
var AMDRegisters = Registers{
	PowerUnit:     0xC0010299,
	CoreEnergy:    0xC001029A,
	PackageEnergy: 0xC001029B,

	PowerUnitMask:   0xF,
	PowerUnitShift:  0,
	EnergyUnitMask:  0x1F00,
	EnergyUnitShift: 8,
	TimeUnitMask:    0xF0000,
	TimeUnitShift:   16,
}

// EnergyUnit is the number of joules represented by one increment of an
// energy status counter
type EnergyUnit float64

func (u EnergyUnit) Joules() float64 {
	return float64(u)
}

func (u EnergyUnit) String() string {
	return fmt.Sprintf("%gJ", float64(u))
}

// PowerUnits holds all scaling factors decoded from the power unit register
type PowerUnits struct {
	Power  float64    // watts per count
	Energy EnergyUnit // joules per count
	Time   float64    // seconds per count
}

// DecodePowerUnits decodes the raw value of the power unit register. Every
// field holds an exponent e, the unit being 1/2^e.
func (r Registers) DecodePowerUnits(raw uint64) PowerUnits {
	field := func(mask uint64, shift uint) float64 {
		return math.Ldexp(1, -int((raw&mask)>>shift))
	}
	return PowerUnits{
		Power:  field(r.PowerUnitMask, r.PowerUnitShift),
		Energy: EnergyUnit(field(r.EnergyUnitMask, r.EnergyUnitShift)),
		Time:   field(r.TimeUnitMask, r.TimeUnitShift),
	}
}

// DecodeUnits reads the power unit register on cpu 0 and returns the energy
// unit. Units are package global so a single core suffices.
func DecodeUnits(reader RegisterReader, regs Registers, logger *slog.Logger) (EnergyUnit, error) {
	raw, err := reader.Read(0, regs.PowerUnit)
	if err != nil {
		return 0, fmt.Errorf("failed to read power unit register: %w", err)
	}

	units := regs.DecodePowerUnits(raw)
	if logger != nil {
		logger.Debug("Decoded RAPL units",
			"raw", fmt.Sprintf("0x%x", raw),
			"energy_exponent", (raw&regs.EnergyUnitMask)>>regs.EnergyUnitShift,
			"energy_unit_j", units.Energy.Joules(),
			"power_unit_w", units.Power,
			"time_unit_s", units.Time)
	}
	return units.Energy, nil
}
