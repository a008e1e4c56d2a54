package httpapi

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthProbeTimeout bounds the gopsutil syscalls so a slow disk stat
// never blocks the health endpoint past a client's own timeout.
const healthProbeTimeout = 2 * time.Second

// healthStatus is the result of one probe run.
type healthStatus struct {
	Status     string  `json:"status"`
	DiskUsedPct float64 `json:"disk_used_pct"`
	MemUsedPct  float64 `json:"mem_used_pct"`
	CheckedAt  time.Time `json:"checked_at"`
}

// healthReport runs the disk/memory probes with a bounded timeout. A
// probe failure degrades the field to zero rather than failing the whole
// health check, since the probe is diagnostic, not load-bearing.
func healthReport(ctx context.Context) healthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	report := healthStatus{Status: "ok", CheckedAt: time.Now()}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		report.DiskUsedPct = usage.UsedPercent
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.MemUsedPct = vm.UsedPercent
	}
	return report
}
