// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package meter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sustainable-computing-io/ryzen-power/internal/device"
	"k8s.io/utils/clock"
)

// Meter measures the average core and package power of one CPU package over
// a sampling interval
type Meter struct {
	logger    *slog.Logger
	clock     clock.Clock
	registers device.Registers
	open      OpenFn
	estimate  EstimateFn
}

// NewMeter creates a new Meter
func NewMeter(applyOpts ...OptionFn) *Meter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	logger := opts.logger.With("service", "meter")
	open := opts.open
	if open == nil {
		devicePath := opts.devicePath
		open = func() (device.RegisterReader, error) {
			return device.NewMSRReader(devicePath, logger), nil
		}
	}

	return &Meter{
		logger:    logger,
		clock:     opts.clock,
		registers: opts.registers,
		open:      open,
		estimate:  opts.estimate,
	}
}

// counterPair is the start and end sample of one energy counter
type counterPair struct {
	scope      Scope
	core       device.LogicalCore
	start, end device.Sample
}

// Measure samples the package counter and the counter of every core, waits
// for duration and samples them again in the same order. The package counter
// is read through the first core. Readings are returned in the order of cores
// followed by the package reading.
//
// Any failure aborts the measurement; no partial result is returned. If ctx is
// cancelled while waiting the measurement fails with device.ErrCancelled.
func (m *Meter) Measure(ctx context.Context, duration time.Duration, cores []device.LogicalCore) (*Result, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: sampling duration %s must be positive", device.ErrInvalidInterval, duration)
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("no cores to measure")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrCancelled, err)
	}

	reader, err := m.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open register reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			m.logger.Warn("Failed to release register reader", "error", err)
		}
	}()

	unit, err := device.DecodeUnits(reader, m.registers, m.logger)
	if err != nil {
		return nil, err
	}

	pkgCore := cores[0]
	pairs := make([]counterPair, 0, len(cores)+1)
	pairs = append(pairs, counterPair{scope: ScopePackage, core: pkgCore})
	for _, c := range cores {
		pairs = append(pairs, counterPair{scope: ScopeCore, core: c})
	}

	sampler := device.NewSampler(reader, m.registers, m.clock, m.logger)
	sample := func(p *counterPair) (device.Sample, error) {
		if p.scope == ScopePackage {
			return sampler.SamplePackage(p.core.ID)
		}
		return sampler.SampleCore(p.core.ID)
	}

	for i := range pairs {
		if pairs[i].start, err = sample(&pairs[i]); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("Sleeping between samples", "duration", duration)
	if err := m.sleep(ctx, duration); err != nil {
		return nil, err
	}

	for i := range pairs {
		if pairs[i].end, err = sample(&pairs[i]); err != nil {
			return nil, err
		}
	}

	result := &Result{
		PackageID:  pkgCore.PackageID,
		Duration:   duration,
		EnergyUnit: unit,
		Readings:   make([]Reading, 0, len(pairs)),
	}
	var pkgReading Reading
	for _, p := range pairs {
		power, err := m.estimate(p.start, p.end, unit)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate %s power of cpu %d: %w", p.scope, p.core.ID, err)
		}
		reading := Reading{
			Scope:  p.scope,
			Core:   p.core,
			Energy: device.CounterEnergy(p.start, p.end, unit),
			Power:  power,
		}
		m.logger.Debug("Computed power",
			"scope", p.scope, "cpu", p.core.ID,
			"start", p.start.Value, "end", p.end.Value,
			"energy", reading.Energy, "power", reading.Power)

		if p.scope == ScopePackage {
			pkgReading = reading
			continue
		}
		result.Readings = append(result.Readings, reading)
	}
	result.Readings = append(result.Readings, pkgReading)

	return result, nil
}

// sleep blocks for d on the meter clock unless ctx is done first
func (m *Meter) sleep(ctx context.Context, d time.Duration) error {
	timer := m.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", device.ErrCancelled, ctx.Err())
	}
}
