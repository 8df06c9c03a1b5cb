package endpoints

import (
	"context"
	"errors"
	"net/http"

	"hostdash/internal/domain"
	"hostdash/internal/util"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Querier interface {
	Snapshot(ctx context.Context) domain.Snapshot
	History(ctx context.Context, category string, since string) (domain.SeriesResult, error)
}

type Metrics struct {
	Response APIResponse
	logger   *util.MetricsLogger
	service  Querier
}

func (m *Metrics) Init(service Querier, webSlogger *util.MetricsLogger) {
	m.service = service
	m.logger = webSlogger
}

func (m *Metrics) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
	m.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, ErrMethodNotAllowed.Error(), http.StatusMethodNotAllowed)
	return false
}

// CurrentUtilizationHandler serves a fresh host snapshot. Unavailable
// readings are null.
func (m *Metrics) CurrentUtilizationHandler(w http.ResponseWriter, r *http.Request) {
	if !m.allowGet(w, r) {
		return
	}

	snapshot := m.service.Snapshot(r.Context())
	m.Response.WriteResultResponse(w, snapshot)
}

// HistoryHandler serves the stored series named by the {category} path
// variable, optionally filtered by the recorded_after query parameter.
func (m *Metrics) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !m.allowGet(w, r) {
		return
	}

	category := mux.Vars(r)["category"]
	since := r.URL.Query().Get("recorded_after")

	result, err := m.service.History(r.Context(), category, since)
	if err != nil {
		m.writeHistoryError(w, r, category, err)
		return
	}

	m.Response.WriteResultResponse(w, result)
}

func (m *Metrics) writeHistoryError(w http.ResponseWriter, r *http.Request, category string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, domain.ErrMalformedTimestamp):
		m.logger.LogFields(util.LOG_LEVEL_WARN, "Rejected history request",
			zap.String("category", category),
			zap.Error(err),
		)
		m.Response.WriteErrorResponseWithStatusCode(w, err, errRetrievePrefixMsg+err.Error(), http.StatusBadRequest)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), r.Context().Err() != nil:
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled")
		m.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, ErrRequestCancelled.Error(), http.StatusRequestTimeout)

	default:
		m.logger.LogFields(util.LOG_LEVEL_ERROR, "History query failed",
			zap.String("category", category),
			zap.Error(err),
		)
		m.Response.WriteErrorResponseWithStatusCode(w, err, ErrInternal.Error(), http.StatusInternalServerError)
	}
}
