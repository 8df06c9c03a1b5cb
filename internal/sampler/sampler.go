// Package sampler reads CPU temperature, CPU utilization, memory and
// storage usage from the host. Failures never leave the package as
// anything other than domain.ErrUnavailable.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"hostdash/internal/domain"
	"hostdash/internal/util"
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024

	DefaultTimeout     = 2 * time.Second
	DefaultStoragePath = "/"
)

// DefaultTemperatureGroups lists the thermal sensor groups checked, in
// order: Raspberry Pi SoC first, then Intel/AMD core sensors.
var DefaultTemperatureGroups = []string{"cpu_thermal", "coretemp"}

var errTimeout = errors.New("host read timed out")

type Config struct {
	// Timeout bounds every host read.
	Timeout time.Duration
	// CPUWindow is the measurement window for CPU utilization. Zero
	// means "since the previous call".
	CPUWindow         time.Duration
	StoragePath       string
	TemperatureGroups []string
}

type Sampler struct {
	host   Host
	cfg    Config
	logger *util.MetricsLogger
	now    func() time.Time
}

var _ domain.Sampler = (*Sampler)(nil)

func New(host Host, cfg Config, logger *util.MetricsLogger) *Sampler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = DefaultStoragePath
	}
	if len(cfg.TemperatureGroups) == 0 {
		cfg.TemperatureGroups = DefaultTemperatureGroups
	}
	return &Sampler{host: host, cfg: cfg, logger: logger, now: time.Now}
}

// Sample reads one category and stamps it with the current time.
func (s *Sampler) Sample(ctx context.Context, category domain.Category) (domain.Reading, error) {
	reading := domain.Reading{Category: category, Timestamp: s.now()}

	var err error
	switch category {
	case domain.CPUTemperature:
		reading.Value, err = s.CPUTemperature(ctx)
	case domain.CPUUtilization:
		reading.Value, err = s.CPUUtilization(ctx)
	case domain.MemoryUtilization:
		var usage domain.MemoryUsage
		usage, err = s.Memory(ctx)
		reading.Value = usage.Percent
	case domain.StorageUtilization:
		var usage domain.StorageUsage
		usage, err = s.Storage(ctx)
		reading.Value = usage.Percent
	default:
		return domain.Reading{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, string(category))
	}
	if err != nil {
		return domain.Reading{}, err
	}
	return reading, nil
}

// CPUTemperature averages the sensors of the first known group that has
// any readings.
func (s *Sampler) CPUTemperature(ctx context.Context) (float64, error) {
	temps, err := callHost(ctx, s.cfg.Timeout, s.host.Temperatures)
	if len(temps) == 0 {
		if err == nil {
			err = errors.New("no thermal sensors reported")
		}
		return 0, s.unavailable(domain.CPUTemperature, err)
	}

	// gopsutil returns partial results alongside per-sensor warnings.
	for _, group := range s.cfg.TemperatureGroups {
		var (
			sum float64
			n   int
		)
		for _, t := range temps {
			if inGroup(t.SensorKey, group) {
				sum += t.Temperature
				n++
			}
		}
		if n > 0 {
			avg := round2(sum / float64(n))
			if !finite(avg) {
				return 0, s.unavailable(domain.CPUTemperature, fmt.Errorf("group %s reported %v", group, avg))
			}
			return avg, nil
		}
	}
	return 0, s.unavailable(domain.CPUTemperature, fmt.Errorf("no sensor group among %v", s.cfg.TemperatureGroups))
}

func (s *Sampler) CPUUtilization(ctx context.Context) (float64, error) {
	window := s.cfg.CPUWindow
	percents, err := callHost(ctx, s.cfg.Timeout+window, func(ctx context.Context) ([]float64, error) {
		return s.host.CPUPercent(ctx, window)
	})
	if err != nil {
		return 0, s.unavailable(domain.CPUUtilization, err)
	}
	if len(percents) == 0 {
		return 0, s.unavailable(domain.CPUUtilization, errors.New("no cpu percentage reported"))
	}

	value := round2(percents[0])
	if !finite(value) {
		return 0, s.unavailable(domain.CPUUtilization, fmt.Errorf("cpu percentage reported %v", value))
	}
	if value == 0 && window == 0 {
		// Without a window the first call has no baseline and reads 0.
		return 0, s.unavailable(domain.CPUUtilization, errors.New("zero reading without a measurement window"))
	}
	return value, nil
}

func (s *Sampler) Memory(ctx context.Context) (domain.MemoryUsage, error) {
	vm, err := callHost(ctx, s.cfg.Timeout, s.host.VirtualMemory)
	if err == nil && vm == nil {
		err = errors.New("no memory statistics reported")
	}
	if err != nil {
		return domain.MemoryUsage{}, s.unavailable(domain.MemoryUtilization, err)
	}
	if !finite(vm.UsedPercent) {
		return domain.MemoryUsage{}, s.unavailable(domain.MemoryUtilization, fmt.Errorf("memory percentage reported %v", vm.UsedPercent))
	}

	return domain.MemoryUsage{
		Percent: round2(vm.UsedPercent),
		UsedMB:  vm.Used / bytesPerMB,
		TotalMB: vm.Total / bytesPerMB,
	}, nil
}

func (s *Sampler) Storage(ctx context.Context) (domain.StorageUsage, error) {
	usage, err := callHost(ctx, s.cfg.Timeout, func(ctx context.Context) (*disk.UsageStat, error) {
		return s.host.DiskUsage(ctx, s.cfg.StoragePath)
	})
	if err == nil && usage == nil {
		err = errors.New("no disk statistics reported")
	}
	if err != nil {
		return domain.StorageUsage{}, s.unavailable(domain.StorageUtilization, err)
	}
	if !finite(usage.UsedPercent) {
		return domain.StorageUsage{}, s.unavailable(domain.StorageUtilization, fmt.Errorf("disk percentage reported %v", usage.UsedPercent))
	}

	return domain.StorageUsage{
		Percent: round2(usage.UsedPercent),
		UsedGB:  round2(float64(usage.Used) / bytesPerGB),
		TotalGB: round2(float64(usage.Total) / bytesPerGB),
	}, nil
}

func (s *Sampler) unavailable(category domain.Category, cause error) error {
	s.logger.LogFields(util.LOG_LEVEL_WARN, "Couldn't read host metric",
		zap.String("category", category.String()),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, category, cause)
}

// callHost runs fn with a deadline and recovers panics, so a stuck or
// crashing sensor read cannot stall or kill the caller.
func callHost[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("host read panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errTimeout
		}
		return zero, ctx.Err()
	}
}

func inGroup(sensorKey, group string) bool {
	return sensorKey == group || strings.HasPrefix(sensorKey, group+"_")
}

// finite reports whether v can be stored and rendered as a reading.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
