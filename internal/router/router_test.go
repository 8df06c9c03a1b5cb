package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostdash/internal/domain"
	"hostdash/internal/telemetry"
	"hostdash/internal/util"
)

type fakeQuerier struct {
	category string
}

func (f *fakeQuerier) Snapshot(ctx context.Context) domain.Snapshot {
	v := domain.Decimal(49)
	return domain.Snapshot{CPUTemperature: &v}
}

func (f *fakeQuerier) History(ctx context.Context, category string, since string) (domain.SeriesResult, error) {
	f.category = category
	if _, err := domain.ParseCategory(category); err != nil {
		return domain.SeriesResult{}, err
	}
	return domain.SeriesResult{Values: []domain.Decimal{1}, Dates: []string{"2024-01-02T12:00:00"}}, nil
}

func TestRoutes(t *testing.T) {
	q := &fakeQuerier{}
	metrics := telemetry.New()
	metrics.Evicted("cpu_temperature", 1)
	r := NewRouter(q, metrics, &util.MetricsLogger{})

	// current_utilization is not captured by {category}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/current_utilization", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cpu_temperature":49.00`)
	assert.Empty(t, q.category)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/memory_utilization", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "memory_utilization", q.category)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/bogus_table", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services/cpu_temperature", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hostdash_store_readings_evicted_total")
}

func TestRoutes_WithoutTelemetry(t *testing.T) {
	r := NewRouter(&fakeQuerier{}, nil, &util.MetricsLogger{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeAndShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", NewRouter(&fakeQuerier{}, nil, &util.MetricsLogger{}))

	done := make(chan error, 1)
	go func() { done <- Serve(server, &util.MetricsLogger{}) }()

	// Shutdown may race with ListenAndServe starting; either way Serve
	// must return without error.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, GracefulShutdown(server, time.Second))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
}
