package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostdash/internal/domain"
	"hostdash/internal/repository"
	"hostdash/internal/service"
	"hostdash/internal/util"
)

type MockQuerier struct {
	Snap     domain.Snapshot
	Result   domain.SeriesResult
	Err      error
	Category string
	Since    string
}

func (m *MockQuerier) Snapshot(ctx context.Context) domain.Snapshot {
	return m.Snap
}

func (m *MockQuerier) History(ctx context.Context, category string, since string) (domain.SeriesResult, error) {
	m.Category = category
	m.Since = since
	if m.Err != nil {
		return domain.SeriesResult{}, m.Err
	}
	return m.Result, nil
}

type stubSampler struct{}

func (stubSampler) Sample(ctx context.Context, c domain.Category) (domain.Reading, error) {
	return domain.Reading{}, domain.ErrUnavailable
}
func (stubSampler) CPUTemperature(context.Context) (float64, error) { return 49, nil }
func (stubSampler) CPUUtilization(context.Context) (float64, error) {
	return 0, fmt.Errorf("%w: no baseline", domain.ErrUnavailable)
}
func (stubSampler) Memory(context.Context) (domain.MemoryUsage, error) {
	return domain.MemoryUsage{Percent: 43.75, UsedMB: 3584, TotalMB: 8192}, nil
}
func (stubSampler) Storage(context.Context) (domain.StorageUsage, error) {
	return domain.StorageUsage{}, fmt.Errorf("%w: statfs failed", domain.ErrUnavailable)
}

func historyRequest(method, category, query string) *http.Request {
	target := "/services/" + category
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(method, target, nil)
	return mux.SetURLVars(req, map[string]string{"category": category})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &errResp))
	return errResp
}

func TestHistoryHandler(t *testing.T) {
	mock := &MockQuerier{Result: domain.SeriesResult{
		Values: []domain.Decimal{49, 51.5},
		Dates:  []string{"2024-01-02T12:00:00", "2024-01-02T12:01:00"},
	}}
	metricsHandler := &Metrics{}
	metricsHandler.Init(mock, &util.MetricsLogger{})

	// case 1: success passes category and recorded_after through
	rr := httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", "recorded_after=2024-01-02T11:00:00"))

	assert.Equal(t, http.StatusOK, rr.Code, "Expected status OK")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), "Expected Content-Type: application/json")
	assert.JSONEq(t, `{"values":[49.00,51.50],"dates":["2024-01-02T12:00:00","2024-01-02T12:01:00"]}`, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "49.00")
	assert.Equal(t, "cpu_temperature", mock.Category)
	assert.Equal(t, "2024-01-02T11:00:00", mock.Since)

	// case 2: unknown category
	mock.Err = fmt.Errorf("%w: %q", domain.ErrUnknownCategory, "bogus_table")
	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "bogus_table", ""))

	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected Bad Request for unknown category")
	errResp := decodeError(t, rr)
	assert.Equal(t, UNKNOWN_CATEGORY, errResp.ErrorCode)
	assert.Contains(t, errResp.Error, "failed to retrieve data: ")
	assert.Contains(t, errResp.Error, "bogus_table")

	// case 3: malformed timestamp
	_, parseErr := domain.ParseTimestamp("not-a-date", time.UTC)
	mock.Err = parseErr
	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", "recorded_after=not-a-date"))

	assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected Bad Request for malformed timestamp")
	errResp = decodeError(t, rr)
	assert.Equal(t, MALFORMED_TIMESTAMP, errResp.ErrorCode)
	assert.Contains(t, errResp.Error, "YYYY-MM-DDTHH:MM:SS")

	// case 4: store failure leaks no detail
	mock.Err = fmt.Errorf("%w: query cpu_temperature: database disk image is malformed", domain.ErrStoreUnavailable)
	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", ""))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	errResp = decodeError(t, rr)
	assert.Equal(t, STORE_UNAVAILABLE, errResp.ErrorCode)
	assert.Equal(t, ErrInternal.Error(), errResp.Error)
	assert.NotContains(t, rr.Body.String(), "malformed")

	// case 5: cancelled request
	mock.Err = context.Canceled
	req := historyRequest(http.MethodGet, "cpu_temperature", "")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, req.WithContext(ctx))

	assert.Equal(t, http.StatusRequestTimeout, rr.Code, "Expected Request Timeout for cancelled context")
	errResp = decodeError(t, rr)
	assert.Equal(t, REQUEST_CANCELLED, errResp.ErrorCode)
	assert.Contains(t, errResp.Error, ErrRequestCancelled.Error())

	// case 6: POST is rejected
	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodPost, "cpu_temperature", ""))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	errResp = decodeError(t, rr)
	assert.Equal(t, METHOD_NOT_ALLOWED, errResp.ErrorCode)
}

func TestHistoryHandler_WithService(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.Init())
	require.NoError(t, store.Insert(context.Background(), domain.CPUTemperature, 49, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))

	metricsHandler := &Metrics{}
	metricsHandler.Init(service.New(store, stubSampler{}, time.UTC, &util.MetricsLogger{}), &util.MetricsLogger{})

	rr := httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"values":[49.00],"dates":["2024-01-02T12:00:00"]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", "recorded_after=2024-01-02T12:00:00"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"values":[],"dates":[]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_temperature", "recorded_after=not-a-date"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryHandler_NonFiniteValue(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.Init())
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(context.Background(), domain.CPUUtilization, 10, at))
	require.NoError(t, store.Insert(context.Background(), domain.CPUUtilization, math.Inf(1), at.Add(time.Minute)))

	metricsHandler := &Metrics{}
	metricsHandler.Init(service.New(store, stubSampler{}, time.UTC, &util.MetricsLogger{}), &util.MetricsLogger{})

	rr := httptest.NewRecorder()
	metricsHandler.HistoryHandler(rr, historyRequest(http.MethodGet, "cpu_utilization", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"values":[10.00,null],"dates":["2024-01-02T12:00:00","2024-01-02T12:01:00"]}`, rr.Body.String())
}

func TestCurrentUtilizationHandler(t *testing.T) {
	metricsHandler := &Metrics{}
	metricsHandler.Init(service.New(nil, stubSampler{}, time.UTC, &util.MetricsLogger{}), &util.MetricsLogger{})

	rr := httptest.NewRecorder()
	metricsHandler.CurrentUtilizationHandler(rr, httptest.NewRequest(http.MethodGet, "/services/current_utilization", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"cpu_temperature": 49.00,
		"cpu_utilization": null,
		"memory_utilization": 43.75,
		"memory_used": 3584,
		"memory_total": 8192,
		"storage_utilization": null,
		"storage_used": null,
		"storage_total": null
	}`, rr.Body.String())

	rr = httptest.NewRecorder()
	metricsHandler.CurrentUtilizationHandler(rr, httptest.NewRequest(http.MethodDelete, "/services/current_utilization", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
