package domain

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

type Category string

const (
	CPUTemperature     Category = "cpu_temperature"
	CPUUtilization     Category = "cpu_utilization"
	MemoryUtilization  Category = "memory_utilization"
	StorageUtilization Category = "storage_utilization"
)

// TimestampLayout is the wire format for reading dates and the
// recorded_after filter. It carries no zone; values are interpreted in
// the store's configured location.
const TimestampLayout = "2006-01-02T15:04:05"

var categories = []Category{
	CPUTemperature,
	CPUUtilization,
	MemoryUtilization,
	StorageUtilization,
}

var categoryByName = map[string]Category{
	string(CPUTemperature):     CPUTemperature,
	string(CPUUtilization):     CPUUtilization,
	string(MemoryUtilization):  MemoryUtilization,
	string(StorageUtilization): StorageUtilization,
}

// Categories returns the closed set of categories in a stable order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(name string) (Category, error) {
	c, ok := categoryByName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryByName[string(c)]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// ParseTimestamp parses a recorded_after value in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TimestampLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: the 'recorded_after' parameter must be in the format 'YYYY-MM-DDTHH:MM:SS'", ErrMalformedTimestamp)
	}
	return t, nil
}

type Reading struct {
	Category  Category  `json:"category"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Series holds the readings of one category in insertion order.
type Series struct {
	Values     []float64
	Timestamps []time.Time
}

func (s Series) Len() int {
	return len(s.Values)
}

// Decimal marshals with exactly two fractional digits. NaN and ±Inf have
// no JSON form and marshal as null.
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	if !d.Finite() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(d), 'f', 2, 64)), nil
}

func (d Decimal) Finite() bool {
	return !math.IsNaN(float64(d)) && !math.IsInf(float64(d), 0)
}

func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', 2, 64)
}

type SeriesResult struct {
	Values []Decimal `json:"values"`
	Dates  []string  `json:"dates"`
}

type MetricStore interface {
	Init() error
	Insert(ctx context.Context, category Category, value float64, at time.Time) error
	Query(ctx context.Context, category Category, since *time.Time) (Series, error)
	Evict(ctx context.Context, olderThan time.Duration) (map[Category]int64, error)
	Close() error
}
