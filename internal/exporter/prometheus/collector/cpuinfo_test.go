// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCPUInfo func() ([]procfs.CPUInfo, error)

func (f fakeCPUInfo) CPUInfo() ([]procfs.CPUInfo, error) {
	return f()
}

func sampleCPUInfo() []procfs.CPUInfo {
	info := func(processor uint, core string) procfs.CPUInfo {
		return procfs.CPUInfo{
			Processor:  processor,
			VendorID:   "AuthenticAMD",
			ModelName:  "AMD Ryzen 7 5800X 8-Core Processor",
			PhysicalID: "0",
			CoreID:     core,
		}
	}
	return []procfs.CPUInfo{info(0, "0"), info(1, "1"), info(8, "0"), info(9, "1")}
}

func sampleSource() cpuInfoSource {
	return fakeCPUInfo(func() ([]procfs.CPUInfo, error) { return sampleCPUInfo(), nil })
}

func TestNewCPUInfoCollector(t *testing.T) {
	collector, err := NewCPUInfoCollector(t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotNil(t, collector.source)
	assert.Contains(t, collector.desc.String(), "ryzen_power_cpu_info")
	assert.Contains(t, collector.desc.String(), "variableLabels: {processor,vendor_id,model_name,physical_id,core_id}")

	_, err = NewCPUInfoCollector("relative/path", nil)
	assert.Error(t, err)
}

func TestCPUInfoCollector_Collect(t *testing.T) {
	t.Run("only measured cpus", func(t *testing.T) {
		collector := newCPUInfoCollector(sampleSource(), []int{0, 1})

		expected := `
# HELP ryzen_power_cpu_info CPU information from procfs
# TYPE ryzen_power_cpu_info gauge
ryzen_power_cpu_info{core_id="0",model_name="AMD Ryzen 7 5800X 8-Core Processor",physical_id="0",processor="0",vendor_id="AuthenticAMD"} 1
ryzen_power_cpu_info{core_id="1",model_name="AMD Ryzen 7 5800X 8-Core Processor",physical_id="0",processor="1",vendor_id="AuthenticAMD"} 1
`
		assert.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected)))
	})

	t.Run("all cpus", func(t *testing.T) {
		collector := newCPUInfoCollector(sampleSource(), nil)
		assert.Equal(t, 4, testutil.CollectAndCount(collector))
	})

	t.Run("procfs error", func(t *testing.T) {
		failing := fakeCPUInfo(func() ([]procfs.CPUInfo, error) {
			return nil, errors.New("no cpuinfo")
		})
		collector := newCPUInfoCollector(failing, nil)

		ch := make(chan prometheus.Metric, 4)
		collector.Collect(ch)
		close(ch)
		assert.Empty(t, ch)
	})
}
