package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hostdash/internal/endpoints"
	"hostdash/internal/telemetry"
	"hostdash/internal/util"
)

const ShutdownTimeout = 25 * time.Second

func NewRouter(querier endpoints.Querier, metrics *telemetry.Metrics, webSlogger *util.MetricsLogger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, querier, metrics, webSlogger)

	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, querier endpoints.Querier, metrics *telemetry.Metrics, webSlogger *util.MetricsLogger) {

	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(querier, webSlogger)

	// current_utilization must be registered before the {category} pattern.
	r.HandleFunc("/services/current_utilization", metricsHandler.CurrentUtilizationHandler).Methods("GET")
	r.HandleFunc("/services/{category}", metricsHandler.HistoryHandler).Methods("GET")

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Serve blocks until the server stops. A server closed by Shutdown is
// not an error.
func Serve(server *http.Server, webSlogger *util.MetricsLogger) error {
	webSlogger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Listening on %s", server.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func GracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s", r.Method, r.RequestURI))
			next.ServeHTTP(w, r)
		})
	}
}
