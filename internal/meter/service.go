// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package meter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sustainable-computing-io/ryzen-power/internal/device"
	"github.com/sustainable-computing-io/ryzen-power/internal/service"
)

// Reporter renders the result of a measurement
type Reporter interface {
	Name() string
	Report(r *Result) error
}

// CheckFn verifies that the host can be measured
type CheckFn func() error

// DetectFn returns the cores to measure
type DetectFn func() ([]device.LogicalCore, error)

// Service performs a single measurement as part of a service run group
type Service struct {
	logger   *slog.Logger
	meter    *Meter
	reporter Reporter
	duration time.Duration
	detect   DetectFn
	checks   []CheckFn

	cores []device.LogicalCore
}

var (
	_ service.Initializer = (*Service)(nil)
	_ service.Runner      = (*Service)(nil)
)

// ServiceConfig configures a measurement Service
type ServiceConfig struct {
	Duration time.Duration
	Detect   DetectFn
	Checks   []CheckFn
	Logger   *slog.Logger
}

// NewService creates a Service that measures with m and reports to r
func NewService(m *Meter, r Reporter, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger.With("service", "meter"),
		meter:    m,
		reporter: r,
		duration: cfg.Duration,
		detect:   cfg.Detect,
		checks:   cfg.Checks,
	}
}

func (s *Service) Name() string {
	return "meter"
}

// Init runs the host checks and detects the cores to measure
func (s *Service) Init() error {
	for _, check := range s.checks {
		if err := check(); err != nil {
			return err
		}
	}

	if s.detect == nil {
		return fmt.Errorf("no core detection configured")
	}
	cores, err := s.detect()
	if err != nil {
		return fmt.Errorf("failed to detect cores: %w", err)
	}
	if len(cores) == 0 {
		return fmt.Errorf("%w: no cores to measure", device.ErrDeviceUnavailable)
	}
	s.cores = cores

	s.logger.Info("Measuring cores", "count", len(cores), "package", cores[0].PackageID, "duration", s.duration)
	for _, c := range cores {
		s.logger.Debug("Selected core", "core", c)
	}
	return nil
}

// Run measures once and hands the result to the reporter
func (s *Service) Run(ctx context.Context) error {
	result, err := s.meter.Measure(ctx, s.duration, s.cores)
	if err != nil {
		return err
	}

	if err := s.reporter.Report(result); err != nil {
		return fmt.Errorf("failed to write %s report: %w", s.reporter.Name(), err)
	}
	return nil
}

// Cores returns the cores selected by Init
func (s *Service) Cores() []device.LogicalCore {
	return s.cores
}
