// Package tasks builds the sampling and retention jobs and registers them
// on a scheduler.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hostdash/internal/domain"
	"hostdash/internal/scheduler"
	"hostdash/internal/telemetry"
	"hostdash/internal/util"
)

const EvictJobID = "delete_old_records"

// SampleJobID names the job recording category.
func SampleJobID(category domain.Category) string {
	return "record_" + string(category)
}

type Retention struct {
	Enabled  bool
	MaxAge   time.Duration
	Interval time.Duration
}

type Config struct {
	// Intervals holds the sampling interval per category. A missing or
	// zero entry disables that category's job.
	Intervals map[domain.Category]time.Duration
	Retention Retention
}

type Deps struct {
	Sampler domain.Sampler
	Store   domain.MetricStore
	Logger  *util.MetricsLogger
	Metrics *telemetry.Metrics
}

// Register adds one sampling job per enabled category and, when
// retention is enabled, the eviction job. It returns the registered ids.
func Register(s *scheduler.Scheduler, cfg Config, deps Deps) ([]string, error) {
	var ids []string

	for _, category := range domain.Categories() {
		interval := cfg.Intervals[category]
		if interval <= 0 {
			deps.Logger.LogFields(util.LOG_LEVEL_INFO, "Sampling job disabled", zap.String("category", category.String()))
			continue
		}
		job := scheduler.Job{
			ID:       SampleJobID(category),
			Interval: interval,
			Action:   SampleAction(category, deps),
		}
		if err := s.Register(job); err != nil {
			return ids, fmt.Errorf("register %s: %w", job.ID, err)
		}
		ids = append(ids, job.ID)
	}

	if cfg.Retention.Enabled {
		job := scheduler.Job{
			ID:       EvictJobID,
			Interval: cfg.Retention.Interval,
			Action:   EvictAction(cfg.Retention.MaxAge, deps),
		}
		if err := s.Register(job); err != nil {
			return ids, fmt.Errorf("register %s: %w", job.ID, err)
		}
		ids = append(ids, job.ID)
	}

	return ids, nil
}

// SampleAction reads category and stores the reading. An unavailable
// reading is skipped, not stored and not reported as a job failure.
func SampleAction(category domain.Category, deps Deps) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		reading, err := deps.Sampler.Sample(ctx, category)
		if errors.Is(err, domain.ErrUnavailable) {
			deps.Metrics.Unavailable(category.String())
			deps.Logger.LogFields(util.LOG_LEVEL_DEBUG, "Reading unavailable, nothing stored",
				zap.String("category", category.String()),
				zap.Error(err),
			)
			return nil
		}
		if err != nil {
			return err
		}

		if err := deps.Store.Insert(ctx, category, reading.Value, reading.Timestamp); err != nil {
			return fmt.Errorf("store %s reading: %w", category, err)
		}
		deps.Metrics.Stored(category.String(), reading.Value)
		return nil
	}
}

// EvictAction deletes readings older than maxAge from every category.
func EvictAction(maxAge time.Duration, deps Deps) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		counts, err := deps.Store.Evict(ctx, maxAge)

		var total int64
		for category, n := range counts {
			deps.Metrics.Evicted(category.String(), n)
			total += n
		}
		deps.Logger.LogFields(util.LOG_LEVEL_INFO, "Old records deleted",
			zap.Int64("deleted", total),
			zap.Duration("older_than", maxAge),
		)
		return err
	}
}
