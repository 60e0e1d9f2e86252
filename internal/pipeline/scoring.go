package pipeline

import (
	"math"

	"github.com/minhduc280903/molforge/internal/domain"
)

// ScreeningResult is the outcome of screening one property vector.
type ScreeningResult struct {
	ViolationCount int
	Details        map[string]bool
	Passed         bool
	Score          float64
}

// CountViolations applies the six exceeds-max predicates and returns the
// violation count plus a per-threshold detail map.
func CountViolations(props domain.PropertyVector, filters domain.FilterConfig) (int, map[string]bool) {
	details := map[string]bool{
		domain.ViolationWeight:           props.Weight > filters.MaxWeight,
		domain.ViolationLipophilicity:    props.Lipophilicity > filters.MaxLipophilicity,
		domain.ViolationDonorCount:       props.DonorCount > filters.MaxDonors,
		domain.ViolationAcceptorCount:    props.AcceptorCount > filters.MaxAcceptors,
		domain.ViolationPolarSurfaceArea: props.PolarSurfaceArea > filters.MaxPolarSurfaceArea,
		domain.ViolationRotatableBonds:   props.RotatableBonds > filters.MaxRotatableBonds,
	}

	count := 0
	for _, exceeded := range details {
		if exceeded {
			count++
		}
	}
	return count, details
}

// ComputeScore implements Score = druglikeness - (penaltyWeight * violations),
// rounded to 4 decimal places. The rounding is part of the contract: it
// makes scores reproducible and fixes ranking tie order.
func ComputeScore(druglikeness float64, violations int, penaltyWeight float64) float64 {
	return round4(druglikeness - penaltyWeight*float64(violations))
}

// ScoreProperties runs the full screening pass over one property vector.
// Pure and stateless.
func ScoreProperties(props domain.PropertyVector, filters domain.FilterConfig, penaltyWeight float64) ScreeningResult {
	count, details := CountViolations(props, filters)
	return ScreeningResult{
		ViolationCount: count,
		Details:        details,
		Passed:         count <= filters.MaxViolations,
		Score:          ComputeScore(props.Druglikeness, count, penaltyWeight),
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
