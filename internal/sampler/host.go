package sampler

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host is the operating-system surface the sampler reads from.
type Host interface {
	Temperatures(ctx context.Context) ([]host.TemperatureStat, error)
	CPUPercent(ctx context.Context, window time.Duration) ([]float64, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
}

type gopsutilHost struct{}

// NewHost returns a Host backed by gopsutil.
func NewHost() Host {
	return gopsutilHost{}
}

func (gopsutilHost) Temperatures(ctx context.Context) ([]host.TemperatureStat, error) {
	return host.SensorsTemperaturesWithContext(ctx)
}

func (gopsutilHost) CPUPercent(ctx context.Context, window time.Duration) ([]float64, error) {
	return cpu.PercentWithContext(ctx, window, false)
}

func (gopsutilHost) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilHost) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}
