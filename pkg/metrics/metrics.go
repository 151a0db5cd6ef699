package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_validations_total",
		Help: "The total number of fulfillment validations by outcome",
	}, []string{"direction", "chain_id", "result"})

	ValidationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "verifier_validation_seconds",
		Help:    "Time taken to validate a fulfillment, including registry lookups",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"direction"})

	ApprovalsSigned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_approvals_signed_total",
		Help: "The total number of signed approvals",
	}, []string{"chain_kind"})

	RegistryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_registry_lookups_total",
		Help: "Solver registry lookups by outcome",
	}, []string{"chain_kind", "outcome"})

	RegistryLookupTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verifier_registry_lookup_seconds",
		Help:    "Latency of solver registry queries",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_poll_errors_total",
		Help: "Errors while polling chain and indexer feeds",
	}, []string{"chain_id", "source"})

	TrackedIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verifier_tracked_intents",
		Help: "The number of intents held by the readiness tracker",
	})

	TrackedEscrows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verifier_tracked_escrows",
		Help: "The number of escrows held by the readiness tracker",
	})

	ReadyIntents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verifier_intents_marked_ready_total",
		Help: "Intents whose requirements were confirmed on the connected chain",
	})

	RejectedIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_rejected_intents_total",
		Help: "Intents refused at intake",
	}, []string{"reason"})

	GmpMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_gmp_messages_total",
		Help: "GMP messages delivered through the relay",
	}, []string{"type", "outcome"})

	// Retry related metrics
	RetryQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verifier_retry_queue_size",
		Help: "Current size of the retry queue",
	})

	RetriesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_retries_executed_total",
		Help: "Number of retries that were executed",
	}, []string{"chain_id", "error_type"})

	MaxRetriesReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifier_max_retries_reached_total",
		Help: "Number of validations that reached maximum retry attempts",
	}, []string{"chain_id", "error_type"})

	JobQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verifier_job_queue_size",
		Help: "Validation jobs waiting for a worker",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "verifier_circuit_breaker_open",
		Help: "1 when the chain's circuit breaker is open",
	}, []string{"chain_id"})
)
