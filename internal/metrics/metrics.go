package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	// APIRequestsTotal counts API requests.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration observes request latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synapse_api_request_duration_seconds",
			Help:    "API request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Workflow engine metrics.
var (
	// PhaseTransitions counts phase lifecycle transitions by phase and result.
	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_phase_transitions_total",
			Help: "Phase lifecycle transitions",
		},
		[]string{"phase", "transition", "result"},
	)

	// VersionDecisions counts approve/reject decisions by artifact kind.
	VersionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_version_decisions_total",
			Help: "Version approval decisions",
		},
		[]string{"artifact", "decision"},
	)

	// AssignmentsCreated counts assignments created by type and priority.
	AssignmentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_assignments_created_total",
			Help: "Assignments created",
		},
		[]string{"type", "priority"},
	)

	// AssignmentsCompleted counts assignments completed by type.
	AssignmentsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synapse_assignments_completed_total",
			Help: "Assignments completed",
		},
		[]string{"type"},
	)

	// AssignmentCascades counts dependent assignments created by cascades.
	AssignmentCascades = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_assignment_cascades_total",
			Help: "Dependent assignments created by completion cascades",
		},
	)

	// SubstrateSignalFailures counts signal dispatches the substrate rejected.
	SubstrateSignalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synapse_substrate_signal_failures_total",
			Help: "Failed substrate signal dispatches",
		},
	)
)
