// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// vendors whose processors implement the AMD RAPL MSRs
var supportedVendors = map[string]bool{
	"AuthenticAMD": true,
	"HygonGenuine": true,
}

// procFS is an interface for CPUInfo.
type procFS interface {
	CPUInfo() ([]procfs.CPUInfo, error)
}

// CheckVendor returns ErrDeviceUnavailable unless the CPU described by
// procfsPath/cpuinfo is supported
func CheckVendor(procfsPath string) (string, error) {
	fs, err := procfs.NewFS(procfsPath)
	if err != nil {
		return "", fmt.Errorf("failed to open procfs %s: %w", procfsPath, err)
	}
	return checkVendor(fs)
}

func checkVendor(fs procFS) (string, error) {
	infos, err := fs.CPUInfo()
	if err != nil {
		return "", fmt.Errorf("failed to read cpuinfo: %w", err)
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("%w: empty cpuinfo", ErrDeviceUnavailable)
	}

	info := infos[0]
	if !supportedVendors[info.VendorID] {
		return info.ModelName, fmt.Errorf("%w: unsupported CPU vendor %q", ErrDeviceUnavailable, info.VendorID)
	}
	return info.ModelName, nil
}
