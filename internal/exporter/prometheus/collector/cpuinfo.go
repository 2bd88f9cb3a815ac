// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"strconv"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// cpuInfoSource is the part of procfs.FS used by cpuInfoCollector
type cpuInfoSource interface {
	CPUInfo() ([]procfs.CPUInfo, error)
}

// cpuInfoCollector publishes one cpu_info series per measured processor
type cpuInfoCollector struct {
	mu sync.Mutex

	source   cpuInfoSource
	measured map[uint]struct{}
	desc     *prom.Desc
}

var _ prom.Collector = (*cpuInfoCollector)(nil)

// NewCPUInfoCollector reads cpuinfo from the procfs mounted at procPath.
// Only the given logical cpus are exposed; an empty list exposes all of them.
func NewCPUInfoCollector(procPath string, cpus []int) (*cpuInfoCollector, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("creating procfs failed: %w", err)
	}
	return newCPUInfoCollector(fs, cpus), nil
}

func newCPUInfoCollector(src cpuInfoSource, cpus []int) *cpuInfoCollector {
	measured := make(map[uint]struct{}, len(cpus))
	for _, cpu := range cpus {
		measured[uint(cpu)] = struct{}{}
	}

	return &cpuInfoCollector{
		source:   src,
		measured: measured,
		desc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "cpu_info"),
			"CPU information from procfs",
			[]string{"processor", "vendor_id", "model_name", "physical_id", "core_id"},
			nil,
		),
	}
}

func (c *cpuInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
}

func (c *cpuInfoCollector) Collect(ch chan<- prom.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos, err := c.source.CPUInfo()
	if err != nil {
		return
	}

	for _, info := range infos {
		if !c.exposes(info.Processor) {
			continue
		}
		ch <- prom.MustNewConstMetric(c.desc, prom.GaugeValue, 1,
			strconv.FormatUint(uint64(info.Processor), 10),
			info.VendorID,
			info.ModelName,
			info.PhysicalID,
			info.CoreID,
		)
	}
}

func (c *cpuInfoCollector) exposes(processor uint) bool {
	if len(c.measured) == 0 {
		return true
	}
	_, ok := c.measured[processor]
	return ok
}
