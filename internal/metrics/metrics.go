// Package metrics exposes Prometheus instrumentation for the research loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Loop labels.
const (
	LoopSupervisor = "supervisor"
	LoopResearcher = "researcher"
)

// Dispatch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeOverflow = "overflow"
)

var (
	// LoopIterations counts think/act passes per loop kind.
	LoopIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sillysearch_loop_iterations_total",
			Help: "Total number of think/act passes",
		},
		[]string{"loop"},
	)

	// LoopTerminations counts loop terminations by reason.
	LoopTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sillysearch_loop_terminations_total",
			Help: "Total number of loop terminations by reason",
		},
		[]string{"loop", "reason"},
	)

	// DispatchTasks counts dispatched tool calls by outcome.
	DispatchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sillysearch_dispatch_tasks_total",
			Help: "Total number of dispatched tool calls by outcome",
		},
		[]string{"tool", "outcome"},
	)

	// DispatchDuration observes how long a full batch takes to join.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sillysearch_dispatch_batch_duration_seconds",
			Help:    "Time from batch start until every task has joined",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"tool"},
	)

	// SummarizationFallbacks counts summaries replaced by raw content.
	SummarizationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sillysearch_summarization_fallbacks_total",
			Help: "Total number of summarizations that fell back to original content",
		},
		[]string{"reason"},
	)

	// ModelCalls counts model requests by kind and status.
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sillysearch_model_calls_total",
			Help: "Total number of model calls",
		},
		[]string{"kind", "status"},
	)

	// SearchDocuments observes how many unique documents a search call returned.
	SearchDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sillysearch_search_documents",
			Help:    "Unique documents returned per search call",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
)

// RecordDispatch increments the dispatch counter.
func RecordDispatch(tool, outcome string) {
	DispatchTasks.WithLabelValues(tool, outcome).Inc()
}

// RecordTermination increments the termination counter.
func RecordTermination(loop, reason string) {
	LoopTerminations.WithLabelValues(loop, reason).Inc()
}
