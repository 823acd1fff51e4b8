// Package metrics holds the Prometheus instruments the orchestrator and
// server emit. All instruments are registered with the default registry and
// exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsProcessed counts user turns by final outcome
	// (replied, blocked, rejected).
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmom_turns_total",
			Help: "Total number of user turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	// GuardrailBlocks counts guardrail blocks by reason.
	GuardrailBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmom_guardrail_blocks_total",
			Help: "Total number of turns blocked by guardrails, by reason",
		},
		[]string{"reason"},
	)

	// Redactions counts sensitive data redactions by category.
	Redactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmom_redactions_total",
			Help: "Total number of sensitive data redactions, by category",
		},
		[]string{"reason"},
	)

	// ModelCalls counts external model generations by model and status.
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmom_model_calls_total",
			Help: "Total number of external model calls, by model and status",
		},
		[]string{"model", "status"},
	)

	// TurnDuration observes end-to-end turn processing latency.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askmom_turn_duration_seconds",
			Help:    "End-to-end latency of processing a user turn",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SweepRuns counts retention sweep executions.
	SweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askmom_sweep_runs_total",
			Help: "Total number of retention sweep executions",
		},
	)

	// SweepRemoved counts conversations removed by the retention sweep.
	SweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askmom_sweep_removed_total",
			Help: "Total number of expired conversations removed by the sweep",
		},
	)
)
