// Package metrics defines the Prometheus metric collectors used by the
// builder and the searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	IndexReloadsTotal  *prometheus.CounterVec
	IndexPages         prometheus.Gauge
	IndexWords         prometheus.Gauge

	DocumentsBuiltTotal *prometheus.CounterVec
	PagesRenderedTotal  *prometheus.CounterVec
	PagesReusedTotal    prometheus.Counter
	BuildDuration       prometheus.Histogram

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of pages returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Search index loads by status.",
			},
			[]string{"status"},
		),
		IndexPages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_pages",
				Help: "Pages in the loaded search index.",
			},
		),
		IndexWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_words",
				Help: "Distinct words in the loaded search index.",
			},
		),
		DocumentsBuiltTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "build_documents_total",
				Help: "Documents processed by the builder by status (indexed, empty, failed).",
			},
			[]string{"status"},
		),
		PagesRenderedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "build_pages_rendered_total",
				Help: "Page images encoded by variant.",
			},
			[]string{"variant"},
		),
		PagesReusedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "build_pages_reused_total",
				Help: "Pages whose renders were all found in the render cache.",
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "build_duration_seconds",
				Help:    "Wall time of a full build.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexReloadsTotal,
		m.IndexPages,
		m.IndexWords,
		m.DocumentsBuiltTotal,
		m.PagesRenderedTotal,
		m.PagesReusedTotal,
		m.BuildDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
