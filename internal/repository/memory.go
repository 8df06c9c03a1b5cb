package repository

import (
	"context"
	"sync"
	"time"

	"hostdash/internal/domain"
)

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of the eviction cutoff.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type memorySeries struct {
	mu       sync.RWMutex
	readings []domain.Reading
}

// MemoryStore keeps every series in process memory. Nothing survives a
// restart.
type MemoryStore struct {
	series map[domain.Category]*memorySeries
	now    func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{now: o.now}
}

func (s *MemoryStore) Init() error {
	s.series = make(map[domain.Category]*memorySeries, len(tables))
	for _, c := range domain.Categories() {
		s.series[c] = &memorySeries{}
	}
	return nil
}

func (s *MemoryStore) seriesFor(category domain.Category) (*memorySeries, error) {
	if _, err := tableFor(category); err != nil {
		return nil, err
	}
	if s.series == nil {
		return nil, errNotInitialized
	}
	return s.series[category], nil
}

func (s *MemoryStore) Insert(ctx context.Context, category domain.Category, value float64, at time.Time) error {
	ms, err := s.seriesFor(category)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	ms.readings = append(ms.readings, domain.Reading{Category: category, Value: value, Timestamp: at})
	ms.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, category domain.Category, since *time.Time) (domain.Series, error) {
	var series domain.Series

	ms, err := s.seriesFor(category)
	if err != nil {
		return series, err
	}
	if err := ctx.Err(); err != nil {
		return series, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	// Timestamps are not assumed monotonic, so filter rather than search.
	for _, r := range ms.readings {
		if since != nil && !r.Timestamp.After(*since) {
			continue
		}
		series.Values = append(series.Values, r.Value)
		series.Timestamps = append(series.Timestamps, r.Timestamp)
	}
	return series, nil
}

func (s *MemoryStore) Evict(ctx context.Context, olderThan time.Duration) (map[domain.Category]int64, error) {
	if s.series == nil {
		return nil, errNotInitialized
	}

	cutoff := s.now().Add(-olderThan)
	deleted := make(map[domain.Category]int64, len(s.series))

	for _, c := range domain.Categories() {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		ms := s.series[c]

		var n int64
		ms.mu.Lock()
		kept := ms.readings[:0]
		for _, r := range ms.readings {
			if r.Timestamp.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, r)
		}
		clear(ms.readings[len(kept):])
		ms.readings = kept
		ms.mu.Unlock()

		deleted[c] = n
	}
	return deleted, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
