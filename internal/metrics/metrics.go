// Package metrics provides Prometheus metrics for benchmark runs, the HTTP
// API and the leaderboard cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ShayCichocki/agentboard/pkg/models"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_runs_total",
			Help: "Total number of benchmark runs by outcome",
		},
		[]string{"outcome"},
	)
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentboard_runs_active",
			Help: "Number of benchmark runs currently in progress",
		},
	)
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_executions_total",
			Help: "Total number of agent executions by terminal status",
		},
		[]string{"provider", "model", "status"},
	)
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentboard_execution_duration_seconds",
			Help:    "Agent execution wall-clock duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"provider", "model", "status"},
	)
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_tokens_total",
			Help: "Total tokens consumed by agent executions",
		},
		[]string{"provider", "model"},
	)
	EvaluationScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentboard_evaluation_score",
			Help:    "Evaluator scores per agent",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
		[]string{"provider", "model"},
	)
	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_evaluation_errors_total",
			Help: "Total number of evaluations that could not produce a score",
		},
		[]string{"provider", "model"},
	)
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_store_errors_total",
			Help: "Total number of failed persistence operations",
		},
		[]string{"operation"},
	)
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_cache_requests_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordRunStarted() {
	RunsActive.Inc()
}

// RecordRunFinished marks a run done. degraded is true when persistence
// failed and results were ranked in memory.
func RecordRunFinished(degraded bool) {
	RunsActive.Dec()
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	RunsTotal.WithLabelValues(outcome).Inc()
}

func RecordExecution(ref models.ModelRef, status models.ExecutionStatus, duration time.Duration, tokens int64) {
	provider := string(ref.Provider)
	ExecutionsTotal.WithLabelValues(provider, ref.Model, string(status)).Inc()
	ExecutionDuration.WithLabelValues(provider, ref.Model, string(status)).Observe(duration.Seconds())
	if tokens > 0 {
		TokensTotal.WithLabelValues(provider, ref.Model).Add(float64(tokens))
	}
}

func RecordEvaluation(ref models.ModelRef, score int) {
	EvaluationScore.WithLabelValues(string(ref.Provider), ref.Model).Observe(float64(score))
}

func RecordEvaluationError(ref models.ModelRef) {
	EvaluationErrors.WithLabelValues(string(ref.Provider), ref.Model).Inc()
}

func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
