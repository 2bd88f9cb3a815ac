// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"time"

	"k8s.io/utils/clock"
)

// counterMask selects the defined bits of an energy status register;
// bits 63:32 are reserved
const counterMask = 0xFFFFFFFF

// Sample is a raw energy counter value and the time it was read at
type Sample struct {
	Value     uint32
	Timestamp time.Time
}

// Sampler reads the core and package energy status registers
type Sampler struct {
	reader RegisterReader
	regs   Registers
	clock  clock.PassiveClock
	logger *slog.Logger
}

// NewSampler returns a Sampler reading registers through reader and stamping
// samples with clk
func NewSampler(reader RegisterReader, regs Registers, clk clock.PassiveClock, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		reader: reader,
		regs:   regs,
		clock:  clk,
		logger: logger,
	}
}

// SampleCore reads the energy counter of the core cpu belongs to
func (s *Sampler) SampleCore(cpu int) (Sample, error) {
	return s.sample(cpu, s.regs.CoreEnergy, "core")
}

// SamplePackage reads the energy counter of the package cpu belongs to
func (s *Sampler) SamplePackage(cpu int) (Sample, error) {
	return s.sample(cpu, s.regs.PackageEnergy, "package")
}

// sample takes the timestamp right after the register read for every counter
// so that paired samples share the same error bound
func (s *Sampler) sample(cpu int, address uint32, counter string) (Sample, error) {
	raw, err := s.reader.Read(cpu, address)
	now := s.clock.Now()
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read %s energy of cpu %d: %w", counter, cpu, err)
	}

	sample := Sample{Value: uint32(raw & counterMask), Timestamp: now}
	s.logger.Debug("Sampled energy counter",
		"counter", counter, "cpu", cpu, "raw", sample.Value)
	return sample, nil
}
