// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

// ErrInterrupted is returned by SignalHandler.Run when a signal arrives
var ErrInterrupted = errors.New("interrupted")

// SignalHandler is a Runner that returns once one of its signals arrives,
// which stops every other runner of the group
type SignalHandler struct {
	signals []os.Signal
	ch      chan os.Signal
}

var (
	_ Initializer = (*SignalHandler)(nil)
	_ Runner      = (*SignalHandler)(nil)
	_ Shutdowner  = (*SignalHandler)(nil)
)

func NewSignalHandler(signals ...os.Signal) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		ch:      make(chan os.Signal, 1),
	}
}

func (sh *SignalHandler) Name() string {
	return "signal-handler"
}

// Init starts relaying signals so that none is lost before Run
func (sh *SignalHandler) Init() error {
	signal.Notify(sh.ch, sh.signals...)
	return nil
}

func (sh *SignalHandler) Run(ctx context.Context) error {
	select {
	case sig := <-sh.ch:
		return fmt.Errorf("%w by %s", ErrInterrupted, sig)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sh *SignalHandler) Shutdown() error {
	signal.Stop(sh.ch)
	return nil
}
