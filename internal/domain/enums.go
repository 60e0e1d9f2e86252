// Package domain defines the core domain models for the discovery orchestrator.
package domain

// RunStatus represents the status of a discovery run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsTerminal reports whether the status is a terminal state.
// No transition ever leaves a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Agent names recorded in trace entries.
const (
	AgentPlanner   = "PlannerAgent"
	AgentGenerator = "GeneratorAgent"
	AgentRanker    = "RankerAgent"
)

// Violation keys used in screening details and failure breakdowns.
const (
	ViolationWeight           = "weight_exceeded"
	ViolationLipophilicity    = "lipophilicity_exceeded"
	ViolationDonorCount       = "donor_count_exceeded"
	ViolationAcceptorCount    = "acceptor_count_exceeded"
	ViolationPolarSurfaceArea = "polar_surface_area_exceeded"
	ViolationRotatableBonds   = "rotatable_bonds_exceeded"
)
