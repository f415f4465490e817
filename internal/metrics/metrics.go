// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProgressBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "permit_progress_batch_duration_seconds",
		Help:    "Time spent fetching and evaluating one batch of cases",
		Buckets: prometheus.DefBuckets,
	})

	ProgressCasesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_progress_cases_total",
		Help: "Cases evaluated by the progress evaluator, by outcome",
	}, []string{"outcome"})

	ProgressStaleBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permit_progress_stale_batches_total",
		Help: "Batches discarded because the case list was replaced",
	})

	CircuitResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_circuit_resolutions_total",
		Help: "Circuit lookups by request type, by source",
	}, []string{"source"})

	LockPrompts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_lock_prompts_total",
		Help: "Lock confirmation prompts answered, by trigger and answer",
	}, []string{"trigger", "answer"})

	MutationMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_mutation_messages_total",
		Help: "Messages emitted while processing mutations, by level and code",
	}, []string{"level", "code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_http_requests_total",
		Help: "HTTP requests served, by route and status",
	}, []string{"route", "status"})

	PortalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permit_portal_request_duration_seconds",
		Help:    "Latency of calls to the portal API",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)
