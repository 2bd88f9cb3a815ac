// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonout renders a measurement as a JSON document
package jsonout

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/sustainable-computing-io/ryzen-power/internal/meter"
)

type (
	Core struct {
		CPU    int     `json:"cpu"`
		Core   int     `json:"core"`
		Watts  float64 `json:"watts"`
		Joules float64 `json:"joules"`
	}

	Document struct {
		Package          int     `json:"package"`
		DurationSeconds  float64 `json:"duration_seconds"`
		EnergyUnitJoules float64 `json:"energy_unit_joules"`
		PackageWatts     float64 `json:"package_watts"`
		CoresWatts       float64 `json:"cores_watts"`
		Cores            []Core  `json:"cores"`
	}
)

// Exporter writes one Document per measurement
type Exporter struct {
	logger *slog.Logger
	out    io.Writer
}

var _ meter.Reporter = (*Exporter)(nil)

// NewExporter creates an Exporter writing to out; nil means stdout
func NewExporter(out io.Writer, logger *slog.Logger) *Exporter {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		logger: logger.With("service", "json"),
		out:    out,
	}
}

func (e *Exporter) Name() string {
	return "json"
}

func (e *Exporter) Report(r *meter.Result) error {
	doc := NewDocument(r)
	e.logger.Debug("Writing json report", "cores", len(doc.Cores))

	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// NewDocument converts a Result into its JSON representation
func NewDocument(r *meter.Result) Document {
	doc := Document{
		Package:          r.PackageID,
		DurationSeconds:  r.Duration.Seconds(),
		EnergyUnitJoules: r.EnergyUnit.Joules(),
		PackageWatts:     r.Package().Power.Watts(),
		CoresWatts:       r.CoresPower().Watts(),
		Cores:            []Core{},
	}
	for _, c := range r.Cores() {
		doc.Cores = append(doc.Cores, Core{
			CPU:    c.Core.ID,
			Core:   c.Core.CoreID,
			Watts:  c.Power.Watts(),
			Joules: c.Energy.Joules(),
		})
	}
	return doc
}
