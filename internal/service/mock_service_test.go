// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "context"

// mockService implements Service only
type mockService struct {
	name string
}

func (m *mockService) Name() string {
	return m.name
}

// mockInitializer records Init and Shutdown calls
type mockInitializer struct {
	mockService
	initFn     func() error
	shutdownFn func() error

	initCount     int
	shutdownCount int
}

func (m *mockInitializer) Init() error {
	m.initCount++
	return call(m.initFn)
}

func (m *mockInitializer) Shutdown() error {
	m.shutdownCount++
	return call(m.shutdownFn)
}

// mockRunner records Run and Shutdown calls
type mockRunner struct {
	mockService
	runFn func(ctx context.Context) error

	runCount      int
	shutdownCount int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runCount++
	if m.runFn == nil {
		return nil
	}
	return m.runFn(ctx)
}

func (m *mockRunner) Shutdown() error {
	m.shutdownCount++
	return nil
}

func call(fn func() error) error {
	if fn == nil {
		return nil
	}
	return fn()
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
