// Package sysinfo answers host-capacity questions for the pipeline: the
// default stage pool sizes and, while a run is in progress, a periodic
// snapshot of CPU/memory pressure for the stats reporter.
package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LogicalCPUCount returns the number of logical CPUs visible to this
// process, used as the default for --mapper-threads and --folder-threads
// when the user doesn't specify a count. Falls back to runtime.NumCPU if
// gopsutil can't determine it (e.g. inside some restricted containers).
func LogicalCPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Snapshot is a point-in-time read of host resource pressure.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sample collects a Snapshot. Errors from either collector are swallowed and
// leave the corresponding field at zero: this is a best-effort diagnostic,
// not a correctness-affecting input to the pipeline.
func Sample() Snapshot {
	var snap Snapshot

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
	}

	return snap
}
