// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram

	SynthesisTotal   *prometheus.CounterVec
	SynthesisLatency prometheus.Histogram

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	DocsIndexedTotal    prometheus.Counter
	SnapshotBuildsTotal *prometheus.CounterVec
	SnapshotGeneration  prometheus.Gauge
	SnapshotDocCount    prometheus.Gauge

	LiveFetchesTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
				Help: "Total search queries by outcome (match, empty_query, no_results, below_threshold, live, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds by source (local, live).",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"source"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		SynthesisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthesis_total",
				Help: "Synthesized answers by confidence (full, low).",
			},
			[]string{"confidence"},
		),
		SynthesisLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synthesis_latency_seconds",
				Help:    "Answer synthesis latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Query cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_indexed_total",
				Help: "Documents processed by index builds.",
			},
		),
		SnapshotBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_builds_total",
				Help: "Index snapshot builds by result (ok, error).",
			},
			[]string{"result"},
		),
		SnapshotGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_generation",
				Help: "Generation id of the currently published snapshot.",
			},
		),
		SnapshotDocCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapshot_document_count",
				Help: "Documents in the currently published snapshot.",
			},
		),
		LiveFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "live_fetches_total",
				Help: "Live Stack Exchange fetches by result (ok, error, rate_limited).",
			},
			[]string{"result"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SynthesisTotal,
		m.SynthesisLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.SnapshotBuildsTotal,
		m.SnapshotGeneration,
		m.SnapshotDocCount,
		m.LiveFetchesTotal,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
