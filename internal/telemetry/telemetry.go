// Package telemetry exposes the service's own Prometheus collectors:
// job executions, evictions and the last stored reading per category.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostdash"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	readingsEvicted *prometheus.CounterVec
	lastReading     *prometheus.GaugeVec
	unavailable     *prometheus.CounterVec
}

// New builds a private registry with the Go and process collectors plus
// the service collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Job fire events by job id and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Wall time of completed job executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		readingsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "readings_evicted_total",
			Help:      "Readings deleted by the retention job.",
		}, []string{"category"}),
		lastReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "last_reading",
			Help:      "Most recently stored value per category.",
		}, []string{"category"}),
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "unavailable_total",
			Help:      "Scheduled samples dropped because the host metric was unavailable.",
		}, []string{"category"}),
	}

	reg.MustRegister(m.jobRuns, m.jobDuration, m.readingsEvicted, m.lastReading, m.unavailable)
	return m
}

// The recorders below accept a nil receiver so components can run
// without telemetry.

func (m *Metrics) JobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

func (m *Metrics) JobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) Evicted(category string, n int64) {
	if m == nil {
		return
	}
	m.readingsEvicted.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) Stored(category string, value float64) {
	if m == nil {
		return
	}
	m.lastReading.WithLabelValues(category).Set(value)
}

func (m *Metrics) Unavailable(category string) {
	if m == nil {
		return
	}
	m.unavailable.WithLabelValues(category).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
