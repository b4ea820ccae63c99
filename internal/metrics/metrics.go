// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_cache_lookups_total",
			Help: "Cache lookups by key namespace and outcome",
		},
		[]string{"namespace", "outcome"}, // outcome: hit, stale, negative, miss
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_cache_evictions_total",
			Help: "Entries evicted from the memory tier by the eviction policy",
		},
		[]string{"policy"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_cache_entries",
			Help: "Current number of entries per cache tier",
		},
		[]string{"tier"},
	)

	CacheDurableErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_cache_durable_errors_total",
			Help: "Durable tier operations that failed",
		},
		[]string{"operation"},
	)

	CacheBackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_cache_background_refreshes_total",
			Help: "Background refreshes triggered by stale reads",
		},
		[]string{"result"},
	)

	CacheSweptEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consensus_cache_swept_entries_total",
			Help: "Memory tier entries dropped past the retention window",
		},
	)

	CacheGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_cache_gc_runs_total",
			Help: "Durable tier value log GC runs",
		},
		[]string{"result"},
	)

	// Rate Limiter Metrics
	RateLimitQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_ratelimit_queue_depth",
			Help: "Callers waiting for a concurrency slot",
		},
		[]string{"source"},
	)

	RateLimitInflight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_ratelimit_inflight",
			Help: "Calls currently holding a concurrency slot",
		},
		[]string{"source"},
	)

	RateLimitQueueFull = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_ratelimit_queue_full_total",
			Help: "Calls rejected because the admission queue was full",
		},
		[]string{"source"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_ratelimit_wait_seconds",
			Help:    "Time spent waiting for admission and spacing",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// Upstream Metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_upstream_requests_total",
			Help: "Upstream rating lookups by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: found, not_found, transient, skipped
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_upstream_duration_seconds",
			Help:    "Upstream HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status_code"},
	)

	MirrorQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_mirror_query_duration_seconds",
			Help:    "Duration of local mirror DuckDB queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	// Scraper Metrics
	ScrapeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_scrape_attempts_total",
			Help: "Scrape page fetches by site and result",
		},
		[]string{"site", "result"}, // result: success, not_found, parse_error, transient
	)

	ScrapeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_scrape_outcomes_total",
			Help: "Final per-item scrape outcomes",
		},
		[]string{"site", "outcome"},
	)

	// Batch and Consolidation Metrics
	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_batch_items_total",
			Help: "Items seen by the batch fetcher",
		},
		[]string{"result"}, // result: fetched, absent, skipped, timeout, panic
	)

	Consolidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_consolidations_total",
			Help: "Consolidation results by outcome and color",
		},
		[]string{"outcome", "color"},
	)

	ConsolidatedSourceCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consensus_consolidated_source_count",
			Help:    "Number of sources contributing to a consolidated rating",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consensus_api_active_requests",
			Help: "HTTP requests currently being served",
		},
	)
)

// RecordCacheLookup records a cache read.
func RecordCacheLookup(namespace, outcome string) {
	CacheLookups.WithLabelValues(namespace, outcome).Inc()
}

// RecordUpstream records an upstream lookup outcome.
func RecordUpstream(source, outcome string) {
	UpstreamRequests.WithLabelValues(source, outcome).Inc()
}

// RecordUpstreamHTTP records the latency of one upstream HTTP exchange.
// A zero status means the request never produced a response.
func RecordUpstreamHTTP(source string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	UpstreamDuration.WithLabelValues(source, code).Observe(duration.Seconds())
}

// RecordMirrorQuery records a local mirror query.
func RecordMirrorQuery(table string, duration time.Duration) {
	MirrorQueryDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordScrapeAttempt records one page fetch.
func RecordScrapeAttempt(site, result string) {
	ScrapeAttempts.WithLabelValues(site, result).Inc()
}

// RecordConsolidation records a consolidation. color is empty when no
// sources were available.
func RecordConsolidation(color string, sources int) {
	if sources == 0 {
		Consolidations.WithLabelValues("empty", "none").Inc()
		return
	}
	Consolidations.WithLabelValues("rated", color).Inc()
	ConsolidatedSourceCount.Observe(float64(sources))
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
