// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultMSRPath is the device path template of the Linux msr driver
const DefaultMSRPath = "/dev/cpu/%d/msr"

// msrValueSize is the size of every MSR value; the msr driver only accepts
// reads of exactly this many bytes at a register aligned offset
const msrValueSize = 8

// RegisterReader reads 64-bit model-specific registers of a logical CPU
type RegisterReader interface {
	// Read returns the value of the register at address on the given cpu
	Read(cpu int, address uint32) (uint64, error)

	// Close releases all resources held by the reader
	Close() error
}

// msrReader implements RegisterReader using the Linux msr driver.
// Device files are opened on first use and cached per CPU until Close.
// It is not safe for concurrent use.
type msrReader struct {
	devicePath string           // MSR device path template
	files      map[int]*os.File // CPU ID -> MSR file handle
	logger     *slog.Logger
}

var _ RegisterReader = (*msrReader)(nil)

// NewMSRReader creates a new MSR reader using the specified device path template
func NewMSRReader(devicePath string, logger *slog.Logger) *msrReader {
	if logger == nil {
		logger = slog.Default()
	}
	if devicePath == "" {
		devicePath = DefaultMSRPath
	}

	return &msrReader{
		devicePath: devicePath,
		files:      make(map[int]*os.File),
		logger:     logger.With("service", "msr-reader"),
	}
}

// Name returns the name of this register reader implementation
func (m *msrReader) Name() string {
	return "msr"
}

// Available checks if the msr device tree exists and at least one CPU
// exposes an MSR device file
func (m *msrReader) Available() bool {
	cpus, err := m.cpus()
	if err != nil {
		m.logger.Debug("MSR not available: failed to scan for CPUs", "error", err)
		return false
	}
	if len(cpus) == 0 {
		m.logger.Debug("MSR not available: no CPUs with MSR device found")
		return false
	}
	return true
}

// Read performs a positioned 8 byte read of the register at address on cpu
func (m *msrReader) Read(cpu int, address uint32) (uint64, error) {
	file, err := m.open(cpu)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, msrValueSize)
	n, err := unix.Pread(int(file.Fd()), buf, int64(address))
	if err == nil && n != msrValueSize {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, &MSRError{Op: "read", CPU: cpu, Address: address, Kind: readErrorKind(err), Err: err}
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// Close closes all cached MSR files. It is safe to call more than once.
func (m *msrReader) Close() error {
	var errs []error
	for cpu, file := range m.files {
		if err := file.Close(); err != nil {
			m.logger.Warn("Failed to close MSR file", "cpu", cpu, "error", err)
			errs = append(errs, err)
		}
	}
	m.files = make(map[int]*os.File)
	return errors.Join(errs...)
}

func (m *msrReader) open(cpu int) (*os.File, error) {
	if file, ok := m.files[cpu]; ok {
		return file, nil
	}

	path := fmt.Sprintf(m.devicePath, cpu)
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, &MSRError{Op: "open", CPU: cpu, Kind: openErrorKind(err), Err: err}
	}
	m.logger.Debug("Opened MSR device", "cpu", cpu, "path", path)
	m.files[cpu] = file
	return file, nil
}

// cpus finds all CPUs that have an MSR device file
func (m *msrReader) cpus() ([]int, error) {
	// e.g. "/dev/cpu/%d/msr" -> "/dev/cpu"
	cpuDir := filepath.Dir(filepath.Dir(m.devicePath))
	entries, err := os.ReadDir(cpuDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read CPU directory %s: %w", cpuDir, err)
	}

	var ids []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(fmt.Sprintf(m.devicePath, id)); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}
