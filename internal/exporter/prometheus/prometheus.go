// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	collector "github.com/sustainable-computing-io/ryzen-power/internal/exporter/prometheus/collector"
	"github.com/sustainable-computing-io/ryzen-power/internal/meter"
)

type Opts struct {
	logger *slog.Logger
	out    io.Writer
	procfs string
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		out:    os.Stdout,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithOutput(out io.Writer) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

// WithProcFSPath enables the cpu_info metric read from the given procfs
func WithProcFSPath(procfs string) OptionFn {
	return func(o *Opts) {
		o.procfs = procfs
	}
}

// Exporter writes a measurement in the Prometheus text exposition format,
// e.g. for the node_exporter textfile collector
type Exporter struct {
	logger *slog.Logger
	out    io.Writer
	procfs string
}

var _ meter.Reporter = (*Exporter)(nil)

// NewExporter creates a new Prometheus text Exporter
func NewExporter(applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger: opts.logger.With("service", "prometheus"),
		out:    opts.out,
		procfs: opts.procfs,
	}
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "prometheus"
}

// CreateCollectors returns the collectors exposing r
func (e *Exporter) CreateCollectors(r *meter.Result) map[string]prom.Collector {
	collectors := map[string]prom.Collector{
		"build_info": collector.NewBuildInfoCollector(),
		"power":      collector.NewPowerCollector(r),
	}
	if e.procfs == "" {
		return collectors
	}

	cpus := make([]int, 0, len(r.Readings))
	for _, reading := range r.Cores() {
		cpus = append(cpus, reading.Core.ID)
	}
	cpuInfo, err := collector.NewCPUInfoCollector(e.procfs, cpus)
	if err != nil {
		e.logger.Warn("Skipping cpu_info metric", "error", err)
		return collectors
	}
	collectors["cpu_info"] = cpuInfo
	return collectors
}

// Report registers the collectors on a private registry and writes every
// gathered metric family
func (e *Exporter) Report(r *meter.Result) error {
	registry := prom.NewRegistry()
	for name, c := range e.CreateCollectors(r) {
		e.logger.Debug("Enabling collector", "collector", name)
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("failed to register %s collector: %w", name, err)
		}
	}

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(e.out, mf); err != nil {
			return err
		}
	}
	return nil
}
