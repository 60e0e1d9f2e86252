// Package metrics exposes Prometheus counters for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. A single instance is shared between
// the dispatcher and the orchestrator.
type Metrics struct {
	RunsStarted         prometheus.Counter
	RunsCompleted       prometheus.Counter
	RunsFailed          prometheus.Counter
	RunsRequeued        prometheus.Counter
	CandidatesGenerated prometheus.Counter
	CandidatesPassed    prometheus.Counter
}

// New registers the counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_runs_started_total",
			Help: "Runs claimed and started by a worker.",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_runs_completed_total",
			Help: "Runs that reached COMPLETED.",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_runs_failed_total",
			Help: "Runs that reached FAILED.",
		}),
		RunsRequeued: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_runs_requeued_total",
			Help: "Stuck runs reset to PENDING by the reaper.",
		}),
		CandidatesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_candidates_generated_total",
			Help: "Candidate structures generated across all rounds.",
		}),
		CandidatesPassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "molforge_candidates_passed_total",
			Help: "Candidates that passed property screening.",
		}),
	}
}
