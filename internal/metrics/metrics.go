// Package metrics exposes Prometheus counters for run and provider
// activity. Collectors are registered on the default registry and served
// from the control plane's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fathom_runs_started_total",
		Help: "Research runs started.",
	})

	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fathom_runs_finished_total",
		Help: "Research runs finished, by terminal status.",
	}, []string{"status"})

	SearchesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fathom_searches_total",
		Help: "Search adapter executions, by source and outcome.",
	}, []string{"source", "outcome"})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fathom_llm_calls_total",
		Help: "Constrained generation calls, by stage and outcome.",
	}, []string{"stage", "outcome"})

	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fathom_events_ingested_total",
		Help: "Events accepted by the ingest endpoint.",
	})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
