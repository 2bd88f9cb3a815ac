// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/run"
)

// Init initializes services in order. If one of them fails, the services
// initialized before it are shut down and the error is returned.
func Init(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	initialized := make([]Service, 0, len(services))
	for _, s := range services {
		srv, ok := s.(Initializer)
		if !ok {
			logger.Debug("Skipping service initialization", "service", s.Name())
			continue
		}

		logger.Debug("Initializing service", "service", s.Name())
		if err := srv.Init(); err != nil {
			shutdownAll(logger, initialized)
			return fmt.Errorf("failed to initialize %s: %w", s.Name(), err)
		}
		initialized = append(initialized, s)
	}
	return nil
}

// Run runs every Runner in its own actor of a run group. The first runner to
// return stops the others by cancelling their context; Run returns its error.
// Runners that are also Shutdowners are shut down once they stop.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	for _, s := range services {
		runner, ok := s.(Runner)
		if !ok {
			continue
		}

		g.Add(
			func() error {
				logger.Debug("Running service", "service", runner.Name())
				return runner.Run(ctx)
			},
			func(err error) {
				cancel()
				if err != nil {
					logger.Debug("Service stopped", "service", runner.Name(), "reason", err)
				}
				shutdown(logger, runner)
			},
		)
	}

	return g.Run()
}

func shutdownAll(logger *slog.Logger, services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		shutdown(logger, services[i])
	}
}

func shutdown(logger *slog.Logger, s Service) {
	srv, ok := s.(Shutdowner)
	if !ok {
		return
	}
	if err := srv.Shutdown(); err != nil {
		logger.Warn("Failed to shutdown service", "service", s.Name(), "error", err)
	}
}
