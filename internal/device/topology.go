// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/procfs/sysfs"
	"k8s.io/utils/cpuset"
)

// LogicalCore identifies one logical CPU and where it sits in the topology
type LogicalCore struct {
	ID        int // logical cpu number, selects /dev/cpu/<ID>/msr
	CoreID    int // physical core id within the package
	PackageID int // physical package (socket) id
}

func (c LogicalCore) String() string {
	return fmt.Sprintf("cpu%d(core %d, package %d)", c.ID, c.CoreID, c.PackageID)
}

// TopologyOpts controls core selection in DetectCores
type TopologyOpts struct {
	// AllThreads keeps every SMT sibling instead of one thread per physical core
	AllThreads bool

	// Package selects the package to measure; negative means the package of
	// the lowest numbered cpu
	Package int

	// CPUs restricts the result to these logical cpus
	CPUs []int

	Logger *slog.Logger
}

// cpuLister is an interface over sysfs used by DetectCores to mock for testing
type cpuLister interface {
	CPUs() ([]sysfs.CPU, error)
}

// DetectCores enumerates the logical cores of one package from sysfs
func DetectCores(sysfsPath string, opts TopologyOpts) ([]LogicalCore, error) {
	fs, err := sysfs.NewFS(sysfsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs %s: %w", sysfsPath, err)
	}
	return detectCores(fs, opts)
}

func detectCores(fs cpuLister, opts TopologyOpts) ([]LogicalCore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "topology")

	cpus, err := fs.CPUs()
	if err != nil {
		return nil, fmt.Errorf("failed to list cpus: %w", err)
	}

	type entry struct {
		core         LogicalCore
		firstSibling int
	}
	var all []entry
	for _, cpu := range cpus {
		id, err := strconv.Atoi(cpu.Number())
		if err != nil {
			continue
		}
		topo, err := cpu.Topology()
		if errors.Is(err, iofs.ErrNotExist) {
			// offline cpus have no topology directory
			logger.Debug("Skipping cpu without topology", "cpu", id, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read topology of cpu %d: %w", id, err)
		}
		core, err := parseTopology(id, topo)
		if err != nil {
			return nil, err
		}
		siblings := []int{id}
		if set, err := cpuset.Parse(topo.ThreadSiblingsList); err == nil && set.Size() > 0 {
			siblings = set.List()
		}
		logger.Debug("Detected cpu", "cpu", id, "core", core.CoreID, "package", core.PackageID, "siblings", siblings)
		all = append(all, entry{core: core, firstSibling: siblings[0]})
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no cpu topology found", ErrDeviceUnavailable)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].core.ID < all[j].core.ID })

	pkg := opts.Package
	if pkg < 0 {
		pkg = all[0].core.PackageID
	}

	wanted := make(map[int]bool, len(opts.CPUs))
	for _, id := range opts.CPUs {
		wanted[id] = true
	}

	var cores []LogicalCore
	for _, e := range all {
		c := e.core
		if c.PackageID != pkg {
			continue
		}
		if len(wanted) != 0 {
			if !wanted[c.ID] {
				continue
			}
			delete(wanted, c.ID)
		} else if !opts.AllThreads && e.firstSibling != c.ID {
			continue
		}
		cores = append(cores, c)
	}

	if len(wanted) != 0 {
		missing := make([]int, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		sort.Ints(missing)
		return nil, fmt.Errorf("cpus %v not found in package %d", missing, pkg)
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("no cpus found in package %d", pkg)
	}
	return cores, nil
}

func parseTopology(id int, topo *sysfs.CPUTopology) (LogicalCore, error) {
	coreID, err := strconv.Atoi(strings.TrimSpace(topo.CoreID))
	if err != nil {
		return LogicalCore{}, fmt.Errorf("invalid core_id of cpu %d: %w", id, err)
	}
	pkgID, err := strconv.Atoi(strings.TrimSpace(topo.PhysicalPackageID))
	if err != nil {
		return LogicalCore{}, fmt.Errorf("invalid physical_package_id of cpu %d: %w", id, err)
	}
	return LogicalCore{ID: id, CoreID: coreID, PackageID: pkgID}, nil
}
