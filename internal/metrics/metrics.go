// Package metrics defines the prometheus collectors for the verification core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission control metrics
var (
	// AdmissionDecisionsTotal tracks admission decisions by limiter and outcome
	AdmissionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission-control decisions by limiter and outcome (allowed/rejected)",
		},
		[]string{"limiter", "outcome"},
	)

	// AdmissionDegradedTotal tracks fail-open fallbacks to the local store
	AdmissionDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_degraded_total",
			Help: "Admission checks served by the local fallback because the shared store was unreachable",
		},
		[]string{"limiter"},
	)

	// BotCheckResultsTotal tracks bot-likelihood check outcomes
	BotCheckResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_check_results_total",
			Help: "Bot-likelihood check results (pass/reject/fail_open/fail_closed)",
		},
		[]string{"result"},
	)
)

// Verification ledger metrics
var (
	// SubmissionsTotal tracks observation submissions by result
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_submissions_total",
			Help: "Observation submissions by result (accepted/duplicate/invalid/error)",
		},
		[]string{"result"},
	)

	// VotesTotal tracks vote casts by result
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_votes_total",
			Help: "Vote casts by result (created/flipped/duplicate/error)",
		},
		[]string{"result"},
	)

	// RescoreDurationSeconds tracks the synchronous rescoring transaction latency
	RescoreDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_rescore_duration_seconds",
			Help:    "Duration of the atomic submit/vote + rescore transaction",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Batch job metrics
var (
	// DecaySweepRunsTotal counts decay sweep executions
	DecaySweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "decay_sweep_runs_total",
			Help: "Total decay sweep executions",
		},
	)

	// DecaySweepDurationSeconds tracks full sweep duration
	DecaySweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decay_sweep_duration_seconds",
			Help:    "Decay sweep duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		},
	)

	// DecaySweepRecordsTotal tracks per-record sweep outcomes
	DecaySweepRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decay_sweep_records_total",
			Help: "Decay sweep records by outcome (updated/unchanged/error)",
		},
		[]string{"outcome"},
	)

	// CleanupDeletedTotal tracks retention cleanup deletions by entity
	CleanupDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_deleted_total",
			Help: "Rows removed by retention cleanup, by entity",
		},
		[]string{"entity"},
	)
)

// Read cache metrics
var (
	// ReadCacheRequestsTotal tracks acceptance read-cache hits and misses
	ReadCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "read_cache_requests_total",
			Help: "Acceptance read-cache lookups by result (hit/miss/error)",
		},
		[]string{"result"},
	)
)

// Redis operations metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
