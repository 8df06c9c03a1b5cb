package domain

import "context"

type MemoryUsage struct {
	Percent float64
	UsedMB  uint64
	TotalMB uint64
}

type StorageUsage struct {
	Percent float64
	UsedGB  float64
	TotalGB float64
}

// Sampler reads host metrics. Every failure is reported as an error
// matching ErrUnavailable.
type Sampler interface {
	Sample(ctx context.Context, category Category) (Reading, error)
	CPUTemperature(ctx context.Context) (float64, error)
	CPUUtilization(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (MemoryUsage, error)
	Storage(ctx context.Context) (StorageUsage, error)
}

// Snapshot is the current-utilization response. Nil fields were
// unavailable and encode as JSON null.
type Snapshot struct {
	CPUTemperature     *Decimal `json:"cpu_temperature"`
	CPUUtilization     *Decimal `json:"cpu_utilization"`
	MemoryUtilization  *Decimal `json:"memory_utilization"`
	MemoryUsed         *uint64  `json:"memory_used"`
	MemoryTotal        *uint64  `json:"memory_total"`
	StorageUtilization *Decimal `json:"storage_utilization"`
	StorageUsed        *Decimal `json:"storage_used"`
	StorageTotal       *Decimal `json:"storage_total"`
}
