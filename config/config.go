// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
	Host struct {
		SysFS  string `yaml:"sysfs"`
		ProcFS string `yaml:"procfs"`
		MSR    string `yaml:"msr"` // msr device path template; %d is replaced by the cpu number
	}

	Measure struct {
		Duration time.Duration `yaml:"duration"` // time between the start and end samples

		// CPUs lists the logical cpus to measure; empty means every core of the package
		CPUs []int `yaml:"cpus"`

		// AllThreads measures every SMT thread instead of one thread per physical core
		AllThreads *bool `yaml:"allThreads"`

		// Package selects the package to measure; nil means the package of cpu 0
		Package *int `yaml:"package"`

		VendorCheck *bool `yaml:"vendorCheck"`
	}

	Output struct {
		Format string `yaml:"format"`
	}

	Config struct {
		Log     Log     `yaml:"log"`
		Host    Host    `yaml:"host"`
		Measure Measure `yaml:"measure"`
		Output  Output  `yaml:"output"`
	}
)

type SkipValidation int

const (
	SkipHostValidation SkipValidation = 1
)

const (
	// Flags
	DebugFlag     = "debug"
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	HostSysFSFlag  = "host.sysfs"
	HostProcFSFlag = "host.procfs"
	HostMSRFlag    = "host.msr"

	DurationFlag          = "duration"
	MeasureCPUFlag        = "measure.cpu"
	MeasureAllThreadsFlag = "measure.all-threads"
	MeasurePackageFlag    = "measure.package"
	SkipVendorCheckFlag   = "skip-vendor-check"

	OutputFormatFlag = "output"
)

const (
	OutputTable      = "table"
	OutputJSON       = "json"
	OutputPrometheus = "prometheus"
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Host: Host{
			SysFS:  "/sys",
			ProcFS: "/proc",
			MSR:    "/dev/cpu/%d/msr",
		},
		Measure: Measure{
			Duration:    500 * time.Millisecond,
			CPUs:        []int{},
			AllThreads:  ptr.To(false),
			VendorCheck: ptr.To(true),
		},
		Output: Output{
			Format: OutputTable,
		},
	}
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		// ignored on purpose; the file is only read
		_ = file.Close()
	}()

	return Load(file)
}

// FromFiles loads and merges configuration files in order; later files
// override earlier ones
func FromFiles(filePaths ...string) (*Config, error) {
	if len(filePaths) == 1 {
		return FromFile(filePaths[0])
	}

	cfg, err := (&Builder{}).MergeFiles(filePaths...).Build()
	if err != nil {
		return nil, err
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	debug := app.Flag(DebugFlag, "Show debug messages; same as --log.level=debug").Default("false").Bool()
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")

	// host
	hostSysFS := app.Flag(HostSysFSFlag, "Host sysfs path").Default("/sys").ExistingDir()
	hostProcFS := app.Flag(HostProcFSFlag, "Host procfs path").Default("/proc").ExistingDir()
	hostMSR := app.Flag(HostMSRFlag, "MSR device path template, %d is replaced by the cpu number").Default("/dev/cpu/%d/msr").String()

	// measurement
	duration := app.Flag(DurationFlag, "The duration of measurement in seconds").Short('d').Default("0.5").Float64()
	cpus := app.Flag(MeasureCPUFlag, "Logical cpu to measure; repeat for more cpus. Default: one thread per core").Ints()
	allThreads := app.Flag(MeasureAllThreadsFlag, "Measure every SMT thread instead of one thread per core").Default("false").Bool()
	pkg := app.Flag(MeasurePackageFlag, "Package (socket) to measure. Default: the package of cpu 0").Int()
	skipVendorCheck := app.Flag(SkipVendorCheckFlag, "Do not check that the CPU is an AMD processor").Default("false").Bool()

	// output
	outputFormat := app.Flag(OutputFormatFlag, "Output format: table, json or prometheus").Short('o').Default(OutputTable).
		Enum(OutputTable, OutputJSON, OutputPrometheus)

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}
		if flagsSet[DebugFlag] && *debug {
			cfg.Log.Level = "debug"
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[HostSysFSFlag] {
			cfg.Host.SysFS = *hostSysFS
		}

		if flagsSet[HostProcFSFlag] {
			cfg.Host.ProcFS = *hostProcFS
		}

		if flagsSet[HostMSRFlag] {
			cfg.Host.MSR = *hostMSR
		}

		// measurement settings
		if flagsSet[DurationFlag] {
			d, err := secondsToDuration(*duration)
			if err != nil {
				return err
			}
			cfg.Measure.Duration = d
		}

		if flagsSet[MeasureCPUFlag] {
			cfg.Measure.CPUs = *cpus
		}

		if flagsSet[MeasureAllThreadsFlag] {
			cfg.Measure.AllThreads = allThreads
		}

		if flagsSet[MeasurePackageFlag] {
			cfg.Measure.Package = pkg
		}

		if flagsSet[SkipVendorCheckFlag] {
			cfg.Measure.VendorCheck = ptr.To(!*skipVendorCheck)
		}

		if flagsSet[OutputFormatFlag] {
			cfg.Output.Format = *outputFormat
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

// maxDurationSeconds is the longest duration time.Duration can hold
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

func secondsToDuration(s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.Abs(s) > maxDurationSeconds {
		return 0, fmt.Errorf("invalid measure duration: %gs is out of range", s)
	}
	return time.Duration(s * float64(time.Second)), nil
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Host.SysFS = strings.TrimSpace(c.Host.SysFS)
	c.Host.ProcFS = strings.TrimSpace(c.Host.ProcFS)
	c.Host.MSR = strings.TrimSpace(c.Host.MSR)
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
}

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
	outputFormats = []string{OutputTable, OutputJSON, OutputPrometheus}
)

// Validate reports every invalid setting at once. Host directories are
// checked for readability unless SkipHostValidation is passed.
func (c *Config) Validate(skips ...SkipValidation) error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		fail("invalid log level: %s", c.Log.Level)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		fail("invalid log format: %s", c.Log.Format)
	}

	if !slices.Contains(skips, SkipHostValidation) {
		for name, dir := range map[string]string{"sysfs": c.Host.SysFS, "procfs": c.Host.ProcFS} {
			if err := canReadDir(dir); err != nil {
				fail("invalid %s path: %s: %v", name, dir, err)
			}
		}
	}
	if strings.Count(c.Host.MSR, "%d") != 1 || strings.Count(c.Host.MSR, "%") != 1 {
		fail("invalid msr path template: %q must contain %%d exactly once", c.Host.MSR)
	}

	if c.Measure.Duration <= 0 {
		fail("invalid measure duration: %s must be positive", c.Measure.Duration)
	}
	for _, cpu := range c.Measure.CPUs {
		if cpu < 0 {
			fail("invalid cpu: %d can't be negative", cpu)
		}
	}
	if pkg := c.Measure.Package; pkg != nil && *pkg < 0 {
		fail("invalid package: %d can't be negative", *pkg)
	}

	if !slices.Contains(outputFormats, c.Output.Format) {
		fail("invalid output format: %s", c.Output.Format)
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
}

// canReadDir fails unless path is a directory whose entries can be listed
func canReadDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()

	_, err = dir.ReadDir(1)
	return err
}

func (c *Config) String() string {
	if out, err := yaml.Marshal(c); err == nil {
		return string(out)
	}
	return c.manualString()
}

// manualString renders the settings as flag: value lines
func (c *Config) manualString() string {
	pkg := "auto"
	if c.Measure.Package != nil {
		pkg = strconv.Itoa(*c.Measure.Package)
	}

	var sb strings.Builder
	line := func(key string, value any) {
		fmt.Fprintf(&sb, "%s: %v\n", key, value)
	}
	line(LogLevelFlag, c.Log.Level)
	line(LogFormatFlag, c.Log.Format)
	line(HostSysFSFlag, c.Host.SysFS)
	line(HostProcFSFlag, c.Host.ProcFS)
	line(HostMSRFlag, c.Host.MSR)
	line(DurationFlag, c.Measure.Duration)
	line(MeasureCPUFlag, c.Measure.CPUs)
	line(MeasureAllThreadsFlag, ptr.Deref(c.Measure.AllThreads, false))
	line(MeasurePackageFlag, pkg)
	line("measure.vendor-check", ptr.Deref(c.Measure.VendorCheck, true))
	line(OutputFormatFlag, c.Output.Format)
	return sb.String()
}
