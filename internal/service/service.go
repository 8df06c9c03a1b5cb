// Package service answers read queries: the current host snapshot, taken
// directly from the sampler, and stored history per category.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hostdash/internal/domain"
	"hostdash/internal/util"
)

type Service struct {
	store   domain.MetricStore
	sampler domain.Sampler
	loc     *time.Location
	logger  *util.MetricsLogger
}

// New returns a Service rendering dates in loc (time.Local when nil).
func New(store domain.MetricStore, sampler domain.Sampler, loc *time.Location, logger *util.MetricsLogger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, sampler: sampler, loc: loc, logger: logger}
}

// Snapshot samples every category once. An unavailable category is left
// nil and does not affect the others.
func (s *Service) Snapshot(ctx context.Context) domain.Snapshot {
	var snap domain.Snapshot

	if v, err := s.sampler.CPUTemperature(ctx); err == nil {
		snap.CPUTemperature = decimal(v)
	}
	if v, err := s.sampler.CPUUtilization(ctx); err == nil {
		snap.CPUUtilization = decimal(v)
	}
	if m, err := s.sampler.Memory(ctx); err == nil {
		snap.MemoryUtilization = decimal(m.Percent)
		snap.MemoryUsed = &m.UsedMB
		snap.MemoryTotal = &m.TotalMB
	}
	if st, err := s.sampler.Storage(ctx); err == nil {
		snap.StorageUtilization = decimal(st.Percent)
		snap.StorageUsed = decimal(st.UsedGB)
		snap.StorageTotal = decimal(st.TotalGB)
	}
	return snap
}

// History returns the stored series for category. since is a
// recorded_after value; empty means the whole series. Both arguments are
// validated before the store is touched.
func (s *Service) History(ctx context.Context, category string, since string) (domain.SeriesResult, error) {
	result := domain.SeriesResult{Values: []domain.Decimal{}, Dates: []string{}}

	c, err := domain.ParseCategory(category)
	if err != nil {
		return result, err
	}

	var after *time.Time
	if since != "" {
		t, err := domain.ParseTimestamp(since, s.loc)
		if err != nil {
			return result, err
		}
		after = &t
	}

	series, err := s.store.Query(ctx, c, after)
	if err != nil {
		s.logger.LogFields(util.LOG_LEVEL_ERROR, "History query failed",
			zap.String("category", category),
			zap.Error(err),
		)
		return result, err
	}

	result.Values = make([]domain.Decimal, series.Len())
	result.Dates = make([]string, series.Len())
	for i := range series.Values {
		result.Values[i] = domain.Decimal(series.Values[i])
		result.Dates[i] = series.Timestamps[i].In(s.loc).Format(domain.TimestampLayout)
	}
	return result, nil
}

func decimal(v float64) *domain.Decimal {
	d := domain.Decimal(v)
	return &d
}
