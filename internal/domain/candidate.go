package domain

// PropertyVector is the fixed descriptor set computed once per valid
// candidate by the structure service. Immutable value data.
type PropertyVector struct {
	Weight           float64 `json:"weight"`
	Lipophilicity    float64 `json:"lipophilicity"`
	DonorCount       int     `json:"donor_count"`
	AcceptorCount    int     `json:"acceptor_count"`
	PolarSurfaceArea float64 `json:"polar_surface_area"`
	RotatableBonds   int     `json:"rotatable_bonds"`
	Druglikeness     float64 `json:"druglikeness"`
}

// Candidate is one generated structure belonging to exactly one run.
// (run, structure) pairs are unique: a structure generated again in a later
// round is discarded before persistence, first write wins. Immutable once
// written; cascades with its run.
type Candidate struct {
	CandidateID     string          `json:"candidate_id"`
	RunID           string          `json:"run_id"`
	Structure       string          `json:"structure"`
	RoundGenerated  int             `json:"round_generated"`
	IsValid         bool            `json:"is_valid"`
	Properties      *PropertyVector `json:"properties,omitempty"`
	ViolationCount  *int            `json:"violation_count,omitempty"`
	PassedScreening *bool           `json:"passed_screening,omitempty"`
	Score           *float64        `json:"score,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Scoreable reports whether the candidate carries a usable score, i.e. it
// is valid, passed screening, and was actually scored.
func (c Candidate) Scoreable() bool {
	return c.IsValid && c.PassedScreening != nil && *c.PassedScreening && c.Score != nil
}
