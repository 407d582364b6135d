// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal                 *prometheus.CounterVec
	postingsTotal              *prometheus.CounterVec
	sourceStopsTotal           *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	activeSources              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobradar_pages_total",
				Help: "Listing pages processed, labeled by source and result.",
			},
			[]string{"source", "result"},
		)

		postingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobradar_postings_total",
				Help: "Ingest outcomes, labeled by source and disposition.",
			},
			[]string{"source", "disposition"},
		)

		sourceStopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobradar_source_stops_total",
				Help: "Per-source crawl terminations, labeled by stop reason.",
			},
			[]string{"source", "reason"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobradar_runs_total",
				Help: "Completed crawl runs, labeled by final status.",
			},
			[]string{"status"},
		)

		activeSources = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobradar_active_sources",
				Help: "Sources currently being crawled.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for one fetched or failed page.
func ObservePage(source, result string) {
	pagesTotal.WithLabelValues(source, result).Inc()
}

// ObservePosting increments the ingest counter for one outcome.
func ObservePosting(source, disposition string) {
	postingsTotal.WithLabelValues(source, disposition).Inc()
}

// ObserveSourceStop records why a source's crawl ended.
func ObserveSourceStop(source, reason string) {
	sourceStopsTotal.WithLabelValues(source, reason).Inc()
}

// ObserveRun records the final status of a crawl run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// IncActiveSources increments the active sources gauge.
func IncActiveSources() {
	activeSources.Inc()
}

// DecActiveSources decrements the active sources gauge.
func DecActiveSources() {
	activeSources.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
