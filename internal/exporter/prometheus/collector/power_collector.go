// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/ryzen-power/internal/meter"
)

// PowerCollector exposes the readings of one measurement
type PowerCollector struct {
	result *meter.Result

	coreWattsDesc      *prom.Desc
	coreJoulesDesc     *prom.Desc
	packageWattsDesc   *prom.Desc
	packageJoulesDesc  *prom.Desc
	energyUnitDesc     *prom.Desc
	durationSecondDesc *prom.Desc
}

var _ prom.Collector = (*PowerCollector)(nil)

// NewPowerCollector creates a collector for the given result
func NewPowerCollector(r *meter.Result) *PowerCollector {
	coreLabels := []string{"cpu", "core", "package"}
	pkgLabels := []string{"package"}

	return &PowerCollector{
		result: r,
		coreWattsDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "core", "watts"),
			"Average power of a core over the measurement in watts",
			coreLabels, nil,
		),
		coreJoulesDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "core", "joules"),
			"Energy consumed by a core during the measurement in joules",
			coreLabels, nil,
		),
		packageWattsDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "package", "watts"),
			"Average power of the package over the measurement in watts",
			pkgLabels, nil,
		),
		packageJoulesDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "package", "joules"),
			"Energy consumed by the package during the measurement in joules",
			pkgLabels, nil,
		),
		energyUnitDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "energy_unit_joules"),
			"Energy represented by one count of the energy counters",
			pkgLabels, nil,
		),
		durationSecondDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "measurement", "duration_seconds"),
			"Time between the start and end samples",
			pkgLabels, nil,
		),
	}
}

func (c *PowerCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.coreWattsDesc
	ch <- c.coreJoulesDesc
	ch <- c.packageWattsDesc
	ch <- c.packageJoulesDesc
	ch <- c.energyUnitDesc
	ch <- c.durationSecondDesc
}

func (c *PowerCollector) Collect(ch chan<- prom.Metric) {
	if c.result == nil {
		return
	}
	r := c.result
	pkgID := strconv.Itoa(r.PackageID)

	for _, reading := range r.Cores() {
		labels := []string{
			strconv.Itoa(reading.Core.ID),
			strconv.Itoa(reading.Core.CoreID),
			strconv.Itoa(reading.Core.PackageID),
		}
		ch <- prom.MustNewConstMetric(c.coreWattsDesc, prom.GaugeValue, reading.Power.Watts(), labels...)
		ch <- prom.MustNewConstMetric(c.coreJoulesDesc, prom.GaugeValue, reading.Energy.Joules(), labels...)
	}

	pkg := r.Package()
	ch <- prom.MustNewConstMetric(c.packageWattsDesc, prom.GaugeValue, pkg.Power.Watts(), pkgID)
	ch <- prom.MustNewConstMetric(c.packageJoulesDesc, prom.GaugeValue, pkg.Energy.Joules(), pkgID)
	ch <- prom.MustNewConstMetric(c.energyUnitDesc, prom.GaugeValue, r.EnergyUnit.Joules(), pkgID)
	ch <- prom.MustNewConstMetric(c.durationSecondDesc, prom.GaugeValue, r.Duration.Seconds(), pkgID)
}
