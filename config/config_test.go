// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/sys", cfg.Host.SysFS)
	assert.Equal(t, "/proc", cfg.Host.ProcFS)
	assert.Equal(t, "/dev/cpu/%d/msr", cfg.Host.MSR)
	assert.Equal(t, 500*time.Millisecond, cfg.Measure.Duration)
	assert.Empty(t, cfg.Measure.CPUs)
	assert.False(t, *cfg.Measure.AllThreads)
	assert.Nil(t, cfg.Measure.Package)
	assert.True(t, *cfg.Measure.VendorCheck)
	assert.Equal(t, OutputTable, cfg.Output.Format)

	assert.NoError(t, cfg.Validate(SkipHostValidation))
}

func TestLoadFromYAML(t *testing.T) {
	yamlData := `
log:
  level: debug
  format: json
host:
  msr: /host/dev/cpu/%d/msr
measure:
  duration: 2s
  cpus: [0, 2]
  allThreads: true
  package: 0
  vendorCheck: false
output:
  format: json
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/host/dev/cpu/%d/msr", cfg.Host.MSR)
	assert.Equal(t, 2*time.Second, cfg.Measure.Duration)
	assert.Equal(t, []int{0, 2}, cfg.Measure.CPUs)
	assert.True(t, *cfg.Measure.AllThreads)
	require.NotNil(t, cfg.Measure.Package)
	assert.Equal(t, 0, *cfg.Measure.Package)
	assert.False(t, *cfg.Measure.VendorCheck)
	assert.Equal(t, OutputJSON, cfg.Output.Format)
}

func TestLoadEmptyFromYAML(t *testing.T) {
	cfg, err := Load(strings.NewReader(``))
	require.NoError(t, err)

	defaultCfg := DefaultConfig()
	assert.Equal(t, defaultCfg.String(), cfg.String())
}

func TestPartialConfig(t *testing.T) {
	yamlData := `
measure:
  duration: 250ms
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Measure.Duration)
	// Values not specified should use defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, *cfg.Measure.VendorCheck)
	assert.Equal(t, OutputTable, cfg.Output.Format)
}

func TestWhitespaceHandling(t *testing.T) {
	yamlData := `
log:
  level: "  debug  "
  format: "  json  "
output:
  format: " PROMETHEUS "
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, OutputPrometheus, cfg.Output.Format)
}

func TestInvalidConfigurationValues(t *testing.T) {
	tests := []struct {
		name   string
		config func(*Config)
		errMsg string
	}{{
		name:   "invalid log level",
		config: func(c *Config) { c.Log.Level = "FATAL" },
		errMsg: "invalid log level: FATAL",
	}, {
		name:   "invalid log format",
		config: func(c *Config) { c.Log.Format = "xml" },
		errMsg: "invalid log format: xml",
	}, {
		name:   "zero duration",
		config: func(c *Config) { c.Measure.Duration = 0 },
		errMsg: "invalid measure duration: 0s must be positive",
	}, {
		name:   "negative duration",
		config: func(c *Config) { c.Measure.Duration = -time.Second },
		errMsg: "invalid measure duration: -1s must be positive",
	}, {
		name:   "negative cpu",
		config: func(c *Config) { c.Measure.CPUs = []int{0, -1} },
		errMsg: "invalid cpu: -1 can't be negative",
	}, {
		name:   "negative package",
		config: func(c *Config) { c.Measure.Package = ptr.To(-2) },
		errMsg: "invalid package: -2 can't be negative",
	}, {
		name:   "msr template without cpu placeholder",
		config: func(c *Config) { c.Host.MSR = "/dev/cpu/0/msr" },
		errMsg: "invalid msr path template",
	}, {
		name:   "msr template with extra verb",
		config: func(c *Config) { c.Host.MSR = "/dev/%s/cpu/%d/msr" },
		errMsg: "invalid msr path template",
	}, {
		name:   "invalid output",
		config: func(c *Config) { c.Output.Format = "csv" },
		errMsg: "invalid output format: csv",
	}, {
		name:   "unreadable sysfs",
		config: func(c *Config) { c.Host.SysFS = "/non/existent/sys" },
		errMsg: "invalid sysfs path: /non/existent/sys",
	}, {
		name:   "unreadable procfs",
		config: func(c *Config) { c.Host.ProcFS = "/non/existent/proc" },
		errMsg: "invalid procfs path: /non/existent/proc",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Host.SysFS = t.TempDir()
			cfg.Host.ProcFS = t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(cfg.Host.SysFS, "x"), nil, 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(cfg.Host.ProcFS, "x"), nil, 0o644))

			tt.config(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadInvalidConfigFromYAML(t *testing.T) {
	yamlData := `
measure:
  duration: 0s
`
	cfg, err := Load(strings.NewReader(yamlData))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Nil(t, cfg)
}

func TestInvalidYAML(t *testing.T) {
	yamlData := `
log:
  level: debug
invalid yaml
`
	_, err := Load(strings.NewReader(yamlData))
	assert.Error(t, err, "Loading invalid YAML should return an error")
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestFromFile(t *testing.T) {
	cfg, err := FromFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	_, err = FromFile("non_existent_file.yaml")
	assert.ErrorContains(t, err, "failed to open config file")
}

func TestFromFiles(t *testing.T) {
	base := writeConfig(t, `
measure:
  duration: 1s
  allThreads: true
  package: 1
output:
  format: json
`)
	override := writeConfig(t, `
measure:
  allThreads: false
  package: 0
log:
  level: warn
`)

	cfg, err := FromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Measure.Duration)
	assert.False(t, *cfg.Measure.AllThreads, "explicit false overrides earlier true")
	require.NotNil(t, cfg.Measure.Package)
	assert.Equal(t, 0, *cfg.Measure.Package, "explicit 0 overrides earlier value")
	assert.Equal(t, OutputJSON, cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = FromFiles(base, "non_existent_file.yaml")
	assert.ErrorContains(t, err, "failed to read config file")

	invalid := writeConfig(t, "measure:\n  duration: -1s\n")
	_, err = FromFiles(base, invalid)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestBuilder(t *testing.T) {
	t.Run("Build", func(t *testing.T) {
		b := &Builder{}
		got, err := b.Build()
		assert.NoError(t, err)
		assert.Equal(t, DefaultConfig().String(), got.String())
	})

	t.Run("Use", func(t *testing.T) {
		exp := DefaultConfig()
		exp.Log.Level = "warn"

		got, err := (&Builder{}).Use(exp).Build()
		assert.NoError(t, err)
		assert.Equal(t, exp.String(), got.String())
	})

	t.Run("MergeWithInvalidYAML", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge(`invalid yaml: [invalid`).Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
		assert.Nil(t, cfg)
	})

	t.Run("MultipleMerges", func(t *testing.T) {
		cfg, err := (&Builder{}).
			Merge("log:\n  level: debug\n", "measure:\n  cpus: [1, 3]\n", "log:\n  level: info\n").
			Build()
		assert.NoError(t, err)

		exp := DefaultConfig()
		exp.Measure.CPUs = []int{1, 3}
		assert.Equal(t, exp.String(), cfg.String())
	})

	t.Run("MergeFilesThenInline", func(t *testing.T) {
		path := writeConfig(t, "measure:\n  package: 1\n  allThreads: true\n")
		cfg, err := (&Builder{}).
			MergeFiles(path).
			Merge("measure:\n  package: 0\n").
			Build()
		require.NoError(t, err)
		assert.Equal(t, 0, *cfg.Measure.Package)
		assert.True(t, *cfg.Measure.AllThreads)
	})

	t.Run("MergeMissingFile", func(t *testing.T) {
		_, err := (&Builder{}).MergeFiles("non_existent_file.yaml").Build()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("MergeBoolPointer", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge("measure:\n  vendorCheck: false\n").Build()
		assert.NoError(t, err)

		exp := DefaultConfig()
		exp.Measure.VendorCheck = ptr.To(false)
		assert.Equal(t, exp.String(), cfg.String())
	})
}

func TestCommandLinePrecedence(t *testing.T) {
	yamlData := `
log:
  level: warn
measure:
  duration: 3s
output:
  format: json
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err = app.Parse([]string{
		"--debug",
		"-d", "0.25",
		"--measure.cpu=0", "--measure.cpu=2",
		"--measure.all-threads",
		"--measure.package=0",
		"--skip-vendor-check",
		"--host.msr=/tmp/cpu/%d/msr",
	})
	require.NoError(t, err)
	require.NoError(t, updateConfig(cfg))

	assert.Equal(t, "debug", cfg.Log.Level, "--debug forces debug level")
	assert.Equal(t, 250*time.Millisecond, cfg.Measure.Duration)
	assert.Equal(t, []int{0, 2}, cfg.Measure.CPUs)
	assert.True(t, *cfg.Measure.AllThreads)
	assert.Equal(t, 0, *cfg.Measure.Package)
	assert.False(t, *cfg.Measure.VendorCheck)
	assert.Equal(t, "/tmp/cpu/%d/msr", cfg.Host.MSR)
	assert.Equal(t, OutputJSON, cfg.Output.Format, "unset flags keep file values")
}

func TestCommandLineDefaults(t *testing.T) {
	cfg := DefaultConfig()
	app := kingpin.New("test", "Test application")
	updateConfig := RegisterFlags(app)

	_, err := app.Parse([]string{"-o", "prometheus", "--log.format=json"})
	require.NoError(t, err)
	require.NoError(t, updateConfig(cfg))

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Measure.Duration)
	assert.Equal(t, OutputPrometheus, cfg.Output.Format)
	assert.True(t, *cfg.Measure.VendorCheck)
}

func TestCommandLineInvalid(t *testing.T) {
	t.Run("non positive duration", func(t *testing.T) {
		cfg := DefaultConfig()
		app := kingpin.New("test", "Test application")
		updateConfig := RegisterFlags(app)

		_, err := app.Parse([]string{"--duration=0"})
		require.NoError(t, err)
		assert.ErrorContains(t, updateConfig(cfg), "invalid measure duration")
	})

	t.Run("duration out of range", func(t *testing.T) {
		for _, arg := range []string{"--duration=1e12", "--duration=-1e12", "--duration=NaN"} {
			cfg := DefaultConfig()
			app := kingpin.New("test", "Test application")
			updateConfig := RegisterFlags(app)

			_, err := app.Parse([]string{arg})
			require.NoError(t, err, arg)
			assert.ErrorContains(t, updateConfig(cfg), "out of range", arg)
			assert.Equal(t, 500*time.Millisecond, cfg.Measure.Duration, arg)
		}
	})

	t.Run("unknown output", func(t *testing.T) {
		app := kingpin.New("test", "Test application")
		RegisterFlags(app)
		_, err := app.Parse([]string{"--output=csv"})
		assert.Error(t, err)
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Measure.Package = ptr.To(1)

	str := cfg.String()
	var roundTrip Config
	require.NoError(t, yaml.Unmarshal([]byte(str), &roundTrip))
	assert.Equal(t, cfg.Measure.Duration, roundTrip.Measure.Duration)
	assert.Equal(t, 1, *roundTrip.Measure.Package)

	manual := cfg.manualString()
	assert.Contains(t, manual, "duration: 500ms")
	assert.Contains(t, manual, "measure.package: 1")
	assert.Contains(t, manual, "host.msr: /dev/cpu/%d/msr")
	assert.Contains(t, manual, "measure.all-threads: false")
}
