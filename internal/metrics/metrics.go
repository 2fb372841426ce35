// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

// Package metrics provides Prometheus instrumentation for the service:
// generation pipeline timing, external provider calls, circuit breaker
// state, cache efficiency, database queries, and API latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation pipeline metrics.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resonate_generation_duration_seconds",
			Help:    "Duration of full recommendation generation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GenerationCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_generation_candidates",
			Help:    "Candidates produced per generation strategy before aggregation",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 25, 50},
		},
		[]string{"source"},
	)

	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_generation_errors_total",
			Help: "Total generator failures swallowed by the aggregation pipeline",
		},
		[]string{"source"},
	)

	RecommendationsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resonate_recommendations_persisted_total",
			Help: "Total recommendation rows written or updated",
		},
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_candidates_dropped_total",
			Help: "Candidates dropped during aggregation",
		},
		[]string{"reason"}, // "owned", "invalid", "duplicate", "over_limit"
	)

	// External metadata provider metrics.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_provider_requests_total",
			Help: "Total external metadata provider requests",
		},
		[]string{"method", "outcome"}, // outcome: "success", "error"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_provider_request_duration_seconds",
			Help:    "Duration of external metadata provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Circuit breaker metrics. State: 0=closed, 1=half-open, 2=open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonate_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Provider response cache metrics.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resonate_provider_cache_hits_total",
			Help: "Total provider cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resonate_provider_cache_misses_total",
			Help: "Total provider cache misses",
		},
	)

	// Database metrics.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_db_query_errors_total",
			Help: "Total DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API metrics.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonate_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonate_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)
)

// RecordDBQuery records a database query with duration and error status.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request with latency and status.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordProviderRequest records an external provider call.
func RecordProviderRequest(method string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(method, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
