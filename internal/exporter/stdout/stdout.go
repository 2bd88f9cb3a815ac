// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sustainable-computing-io/ryzen-power/internal/meter"
)

// Exporter renders a measurement as a table of socket and core power
type Exporter struct {
	logger *slog.Logger
	out    io.Writer
}

var _ meter.Reporter = (*Exporter)(nil)

type Opts struct {
	logger *slog.Logger
	out    io.Writer
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

func NewExporter(applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger: opts.logger.With("service", "stdout"),
		out:    opts.out,
	}
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "stdout"
}

// Report writes one SOCKET row with the sum of the core readings and the
// package reading, followed by one CORE row per measured core
func (e *Exporter) Report(r *meter.Result) error {
	pkg := r.Package()
	rows := [][]string{{
		fmt.Sprintf("SOCKET %d", r.PackageID),
		r.CoresPower().String(),
		pkg.Power.String(),
	}}
	for _, c := range r.Cores() {
		rows = append(rows, []string{
			fmt.Sprintf("  CORE %d", c.Core.CoreID),
			c.Power.String(),
			"",
		})
	}
	e.logger.Debug("Writing power table", "rows", len(rows))

	table := tablewriter.NewWriter(e.out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header([]string{"", "Cores Power", "Package Power"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
