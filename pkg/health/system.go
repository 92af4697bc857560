// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
)

const (
	memoryThresholdDegraded = 85.0 // percent
	diskThresholdDegraded   = 85.0 // percent
)

// ResourceReport is a point-in-time snapshot of process/host resource usage.
type ResourceReport struct {
	MemoryUsedMB  uint64
	MemoryTotalMB uint64
	MemoryPercent float64
	DiskUsedGB    uint64
	DiskTotalGB   uint64
	DiskPercent   float64
	GoRoutines    int
}

// ReadResources snapshots current memory, disk and goroutine usage.
func ReadResources() ResourceReport {
	var r ResourceReport

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryUsedMB = m.Alloc / 1024 / 1024
	r.MemoryTotalMB = m.Sys / 1024 / 1024
	if r.MemoryTotalMB > 0 {
		r.MemoryPercent = float64(r.MemoryUsedMB) / float64(r.MemoryTotalMB) * 100
	}
	r.GoRoutines = runtime.NumGoroutine()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err == nil {
		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bfree * uint64(stat.Bsize)
		r.DiskTotalGB = total / 1024 / 1024 / 1024
		r.DiskUsedGB = (total - free) / 1024 / 1024 / 1024
		if r.DiskTotalGB > 0 {
			r.DiskPercent = float64(r.DiskUsedGB) / float64(r.DiskTotalGB) * 100
		}
	}

	return r
}

// ResourceHealthCheck reports unhealthy once memory or disk usage passes
// memoryThresholdDegraded/diskThresholdDegraded.
func ResourceHealthCheck(ctx context.Context) error {
	r := ReadResources()
	if r.MemoryPercent >= memoryThresholdDegraded {
		return fmt.Errorf("memory usage at %.1f%%", r.MemoryPercent)
	}
	if r.DiskPercent >= diskThresholdDegraded {
		return fmt.Errorf("disk usage at %.1f%%", r.DiskPercent)
	}
	return nil
}
