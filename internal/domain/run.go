package domain

import (
	"fmt"
	"time"
)

// FilterConfig holds the screening thresholds. Each threshold is a simple
// exceeds-max predicate against the matching property.
type FilterConfig struct {
	MaxWeight           float64 `json:"max_weight"`
	MaxLipophilicity    float64 `json:"max_lipophilicity"`
	MaxDonors           int     `json:"max_donors"`
	MaxAcceptors        int     `json:"max_acceptors"`
	MaxPolarSurfaceArea float64 `json:"max_polar_surface_area"`
	MaxRotatableBonds   int     `json:"max_rotatable_bonds"`
	MaxViolations       int     `json:"max_violations"`
}

// DefaultFilters returns the standard screening thresholds.
func DefaultFilters() FilterConfig {
	return FilterConfig{
		MaxWeight:           500.0,
		MaxLipophilicity:    5.0,
		MaxDonors:           5,
		MaxAcceptors:        10,
		MaxPolarSurfaceArea: 140.0,
		MaxRotatableBonds:   10,
		MaxViolations:       1,
	}
}

// RunConfig is the configuration a run is submitted with. It is persisted
// as an opaque JSON document on the run row; the orchestrator only reads
// the fields it needs.
type RunConfig struct {
	Seeds              []string     `json:"seeds"`
	NumRounds          int          `json:"num_rounds"`
	CandidatesPerRound int          `json:"candidates_per_round"`
	TopK               int          `json:"top_k"`
	Filters            FilterConfig `json:"filters"`
	PenaltyWeight      float64      `json:"penalty_weight"`
	Objective          string       `json:"objective,omitempty"`
}

// ApplyDefaults fills zero-valued config fields with their defaults.
func (c *RunConfig) ApplyDefaults() {
	if c.NumRounds == 0 {
		c.NumRounds = 1
	}
	if c.CandidatesPerRound == 0 {
		c.CandidatesPerRound = 50
	}
	if c.TopK == 0 {
		c.TopK = 10
	}
	if c.PenaltyWeight == 0 {
		c.PenaltyWeight = 0.1
	}
	if c.Filters == (FilterConfig{}) {
		c.Filters = DefaultFilters()
	}
}

// RankedCandidate is one entry of the final shortlist snapshot.
type RankedCandidate struct {
	Rank      int     `json:"rank"`
	Structure string  `json:"structure"`
	Score     float64 `json:"score"`
}

// ResultSummary is persisted on the run row once the run completes.
type ResultSummary struct {
	TotalGenerated       int               `json:"total_generated"`
	TotalValid           int               `json:"total_valid"`
	TotalPassedScreening int               `json:"total_passed_screening"`
	TopCandidatesCount   int               `json:"top_candidates_count"`
	FailureBreakdown     map[string]int    `json:"failure_breakdown"`
	DurationMs           float64           `json:"duration_ms"`
	TopCandidates        []RankedCandidate `json:"top_candidates"`
}

// Run is the persistent record of one discovery campaign. It is created on
// submission, mutated only by the orchestrator, and never deleted here.
// Once terminal, exactly one of ResultSummary/ErrorMessage is non-nil.
type Run struct {
	RunID         string         `json:"run_id"`
	Status        RunStatus      `json:"status"`
	Config        RunConfig      `json:"config"`
	ResultSummary *ResultSummary `json:"result_summary,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RoundPlan is one round of the generation schedule. Rounds beyond the
// first carry an empty seed list until reseeding resolves it at execution
// time from prior results. Not persisted independently; it folds into the
// planner's trace entry.
type RoundPlan struct {
	RoundNumber      int      `json:"round_number"`
	Seeds            []string `json:"seeds"`
	CandidatesTarget int      `json:"candidates_target"`
	Strategy         string   `json:"strategy"`
}

func (p RoundPlan) String() string {
	return fmt.Sprintf("round %d: %d seeds, target %d", p.RoundNumber, len(p.Seeds), p.CandidatesTarget)
}
