package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dedupe outcome labels for RecordDedupeOutcome.
const (
	DedupeOutcomeStrictDuplicate = "strict_duplicate"
	DedupeOutcomeJudgedDuplicate = "judged_duplicate"
	DedupeOutcomeDistinct        = "distinct"
	DedupeOutcomeFailOpen        = "fail_open"
)

// Provider call outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// CoreMetrics contains the service-level metrics for forkfolio.
type CoreMetrics struct {
	// Service lifecycle
	ServiceStatus     *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec

	// Ingestion and dedupe
	RecipesIngested *prometheus.CounterVec
	DedupeOutcomes  *prometheus.CounterVec

	// Search and reranking
	Searches       prometheus.Counter
	RerankOutcomes *prometheus.CounterVec

	// Provider calls
	EmbeddingCalls *prometheus.CounterVec
	JudgeCalls     *prometheus.CounterVec

	// Request handling
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec

	// NATS
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewCoreMetrics creates a new CoreMetrics instance.
func NewCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "forkfolio",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping)",
			},
			[]string{"service"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "forkfolio",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		RecipesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "ingest",
				Name:      "recipes_total",
				Help:      "Total recipes processed by the ingestion pipeline",
			},
			[]string{"status"},
		),

		DedupeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "dedupe",
				Name:      "outcomes_total",
				Help:      "Dedupe gate outcomes by zone",
			},
			[]string{"outcome"},
		),

		Searches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "search",
				Name:      "queries_total",
				Help:      "Total semantic search queries",
			},
		),

		RerankOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "search",
				Name:      "rerank_outcomes_total",
				Help:      "Rerank outcomes (strict, fallback, degraded, empty)",
			},
			[]string{"mode"},
		),

		EmbeddingCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "provider",
				Name:      "embedding_calls_total",
				Help:      "Embedding provider calls by outcome",
			},
			[]string{"outcome"},
		),

		JudgeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "provider",
				Name:      "judge_calls_total",
				Help:      "Judgment provider calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "forkfolio",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Operation processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "forkfolio",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "forkfolio",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// mustRegister registers all core metrics on the given registry.
func (c *CoreMetrics) mustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		c.ServiceStatus,
		c.HealthCheckStatus,
		c.RecipesIngested,
		c.DedupeOutcomes,
		c.Searches,
		c.RerankOutcomes,
		c.EmbeddingCalls,
		c.JudgeCalls,
		c.ProcessingDuration,
		c.ErrorsTotal,
		c.NATSConnected,
		c.NATSReconnects,
	)
}

// RecordServiceStatus updates the service status metric.
func (c *CoreMetrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordHealthStatus updates the health check status metric.
func (c *CoreMetrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordRecipeIngested increments the ingested recipe counter.
// Status is one of "stored", "duplicate", "failed".
func (c *CoreMetrics) RecordRecipeIngested(status string) {
	c.RecipesIngested.WithLabelValues(status).Inc()
}

// RecordDedupeOutcome increments the dedupe outcome counter.
func (c *CoreMetrics) RecordDedupeOutcome(outcome string) {
	c.DedupeOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSearch increments the semantic search counter.
func (c *CoreMetrics) RecordSearch() {
	c.Searches.Inc()
}

// RecordRerankOutcome increments the rerank outcome counter.
// Mode is one of "strict", "fallback", "degraded", "empty".
func (c *CoreMetrics) RecordRerankOutcome(mode string) {
	c.RerankOutcomes.WithLabelValues(mode).Inc()
}

// RecordEmbeddingCall increments the embedding provider call counter.
func (c *CoreMetrics) RecordEmbeddingCall(outcome string) {
	c.EmbeddingCalls.WithLabelValues(outcome).Inc()
}

// RecordJudgeCall increments the judgment provider call counter.
func (c *CoreMetrics) RecordJudgeCall(operation, outcome string) {
	c.JudgeCalls.WithLabelValues(operation, outcome).Inc()
}

// RecordProcessingDuration records operation processing time.
func (c *CoreMetrics) RecordProcessingDuration(service, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter.
func (c *CoreMetrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordNATSStatus updates the NATS connection status metric.
func (c *CoreMetrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments the reconnection counter.
func (c *CoreMetrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
