// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/ryzen-power/config"
	"github.com/sustainable-computing-io/ryzen-power/internal/device"
	"github.com/sustainable-computing-io/ryzen-power/internal/exporter/jsonout"
	"github.com/sustainable-computing-io/ryzen-power/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/ryzen-power/internal/exporter/stdout"
	"github.com/sustainable-computing-io/ryzen-power/internal/logger"
	"github.com/sustainable-computing-io/ryzen-power/internal/meter"
	"github.com/sustainable-computing-io/ryzen-power/internal/service"
	"github.com/sustainable-computing-io/ryzen-power/internal/version"
	"k8s.io/utils/ptr"
)

const appName = "ryzen-power"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run measures once and returns the process exit code
func run(args []string, out, errOut io.Writer) int {
	cfg, err := parseArgsAndConfig(args, errOut)
	if err != nil {
		return 1
	}
	logger := logger.New(cfg.Log.Level, cfg.Log.Format, errOut)
	logVersionInfo(logger)
	logger.Debug("Loaded configuration", "config", cfg.String())

	services := createServices(logger, cfg, out)
	if err := service.Init(logger, services); err != nil {
		reportError(logger, err)
		return 1
	}
	if err := service.Run(context.Background(), logger, services); err != nil {
		reportError(logger, err)
		return 1
	}
	return 0
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Debug("Version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func parseArgsAndConfig(args []string, errOut io.Writer) (*config.Config, error) {
	app := kingpin.New(appName, "Measure the core and package power of AMD Ryzen and EPYC processors.")
	app.Version(version.Info().String())
	app.HelpFlag.Short('h')
	app.ErrorWriter(errOut)

	configFiles := app.Flag("config.file", "Path to YAML configuration file; repeat to merge several files").Strings()
	updateConfig := config.RegisterFlags(app)
	if _, err := app.Parse(args); err != nil {
		app.Errorf("%s, try --help", err)
		return nil, err
	}

	logger := logger.New("info", "text", errOut)
	cfg := config.DefaultConfig()
	if len(*configFiles) > 0 {
		logger.Debug("Loading configuration files", "paths", *configFiles)
		loadedCfg, err := config.FromFiles(*configFiles...)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return nil, err
		}
		cfg = loadedCfg
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func createServices(logger *slog.Logger, cfg *config.Config, out io.Writer) []service.Service {
	m := meter.NewMeter(
		meter.WithLogger(logger),
		meter.WithDevicePath(cfg.Host.MSR),
	)

	measurement := meter.NewService(m, createReporter(logger, cfg, out), meter.ServiceConfig{
		Duration: cfg.Measure.Duration,
		Detect: func() ([]device.LogicalCore, error) {
			return device.DetectCores(cfg.Host.SysFS, device.TopologyOpts{
				AllThreads: ptr.Deref(cfg.Measure.AllThreads, false),
				Package:    ptr.Deref(cfg.Measure.Package, -1),
				CPUs:       cfg.Measure.CPUs,
				Logger:     logger,
			})
		},
		Checks: preflightChecks(logger, cfg),
		Logger: logger,
	})

	return []service.Service{
		service.NewSignalHandler(syscall.SIGINT, syscall.SIGTERM),
		measurement,
	}
}

func createReporter(logger *slog.Logger, cfg *config.Config, out io.Writer) meter.Reporter {
	switch cfg.Output.Format {
	case config.OutputJSON:
		return jsonout.NewExporter(out, logger)
	case config.OutputPrometheus:
		return prometheus.NewExporter(
			prometheus.WithLogger(logger),
			prometheus.WithOutput(out),
			prometheus.WithProcFSPath(cfg.Host.ProcFS),
		)
	default:
		return stdout.NewExporter(
			stdout.WithLogger(logger),
			stdout.WithOutput(out),
		)
	}
}

func preflightChecks(logger *slog.Logger, cfg *config.Config) []meter.CheckFn {
	var checks []meter.CheckFn
	if ptr.Deref(cfg.Measure.VendorCheck, true) {
		checks = append(checks, func() error {
			model, err := device.CheckVendor(cfg.Host.ProcFS)
			if err != nil {
				return err
			}
			logger.Info("Detected processor", "model", model)
			return nil
		})
	}

	checks = append(checks, func() error {
		reader := device.NewMSRReader(cfg.Host.MSR, logger)
		if !reader.Available() {
			return fmt.Errorf("%w: no msr device found at %s", device.ErrDeviceUnavailable, cfg.Host.MSR)
		}
		return nil
	})
	return checks
}

func reportError(logger *slog.Logger, err error) {
	if h := hint(err); h != "" {
		logger.Error("Measurement failed", "error", err, "hint", h)
		return
	}
	logger.Error("Measurement failed", "error", err)
}

// hint returns advice for the user on how to resolve err
func hint(err error) string {
	switch {
	case errors.Is(err, device.ErrAccessDenied):
		return "root privilege is required to read model-specific registers"
	case errors.Is(err, device.ErrDeviceUnavailable):
		return "msr driver is not loaded or the CPU is not supported, try \"sudo modprobe msr\""
	case errors.Is(err, device.ErrInvalidRegister):
		return "the CPU does not expose the AMD RAPL registers"
	case errors.Is(err, service.ErrInterrupted), errors.Is(err, device.ErrCancelled):
		return "measurement was interrupted before the sampling interval elapsed"
	default:
		return ""
	}
}
