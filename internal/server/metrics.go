package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

// Metrics holds the server's Prometheus collectors. Each Server registers
// them on its own registry.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequestsTotal   *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	calculationsTotal   *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	rateLimited         prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "efftrack_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "efftrack_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		calculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "efftrack_calculations_total",
			Help: "Stored calculations by overall building grade.",
		}, []string{"grade"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efftrack_persistence_failures_total",
			Help: "Calculations that could not be stored.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efftrack_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.calculationsTotal,
		m.persistenceFailures,
		m.rateLimited,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request count and latency for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Calculation counts a stored calculation.
func (m *Metrics) Calculation(grade efficiency.Grade) {
	if m == nil {
		return
	}
	m.calculationsTotal.WithLabelValues(string(grade)).Inc()
}

// PersistenceFailure counts a failed insert.
func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
