package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/domain"
)

// GeneratorInput carries one round's seeds and parameters.
type GeneratorInput struct {
	RunID            string
	RoundNumber      int
	Seeds            []string
	CandidatesTarget int
	Filters          domain.FilterConfig
	PenaltyWeight    float64
}

// GeneratorResult is one round's candidates and statistics.
type GeneratorResult struct {
	RoundNumber      int
	TotalGenerated   int
	ValidCount       int
	InvalidCount     int
	PassedCount      int
	FailedCount      int
	Candidates       []domain.Candidate
	FailureBreakdown map[string]int
	DurationMs       float64
}

// Generator drives the mutation search and screening for one round.
type Generator struct {
	agentBase
	svc    chem.StructureService
	search *MutationSearch
}

func NewGenerator(svc chem.StructureService, search *MutationSearch) *Generator {
	return &Generator{agentBase: agentBase{name: domain.AgentGenerator}, svc: svc, search: search}
}

// Execute generates, prunes, and screens one round of candidates.
// Per-candidate problems (failed validation, failed property computation)
// are recorded on the candidate and never abort the round.
func (g *Generator) Execute(ctx context.Context, in GeneratorInput) (*GeneratorResult, error) {
	t := startTimer()

	numSeeds := len(in.Seeds)
	if numSeeds == 0 {
		return nil, domain.ErrNoSeeds
	}
	mutationsPerSeed := in.CandidatesTarget / numSeeds
	if mutationsPerSeed < 1 {
		mutationsPerSeed = 1
	}

	raw := g.search.GenerateCandidates(ctx, in.Seeds, mutationsPerSeed)
	diverse := g.search.DiversityPrune(ctx, raw)

	result := &GeneratorResult{
		RoundNumber:      in.RoundNumber,
		FailureBreakdown: make(map[string]int),
	}

	for _, structure := range diverse {
		candidate := domain.Candidate{
			CandidateID:    "cnd_" + uuid.New().String()[:8],
			RunID:          in.RunID,
			Structure:      structure,
			RoundGenerated: in.RoundNumber,
		}

		validation, err := g.svc.Validate(ctx, structure)
		if err != nil {
			candidate.Error = fmt.Sprintf("validation call failed: %v", err)
			result.InvalidCount++
			result.Candidates = append(result.Candidates, candidate)
			continue
		}
		if !validation.IsValid {
			candidate.Error = validation.Error
			result.InvalidCount++
			result.Candidates = append(result.Candidates, candidate)
			continue
		}

		props, err := g.svc.ComputeProperties(ctx, structure)
		if err != nil {
			// Property failure downgrades the candidate to invalid but is
			// non-fatal to the round.
			candidate.Error = fmt.Sprintf("property computation failed: %v", err)
			result.InvalidCount++
			result.Candidates = append(result.Candidates, candidate)
			continue
		}

		candidate.IsValid = true
		candidate.Properties = &props
		result.ValidCount++

		screening := ScoreProperties(props, in.Filters, in.PenaltyWeight)
		candidate.ViolationCount = &screening.ViolationCount
		candidate.PassedScreening = &screening.Passed
		candidate.Score = &screening.Score

		if screening.Passed {
			result.PassedCount++
		} else {
			result.FailedCount++
			for key, exceeded := range screening.Details {
				if exceeded {
					result.FailureBreakdown[key]++
				}
			}
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	result.TotalGenerated = len(result.Candidates)
	result.DurationMs = t.elapsedMs()

	log.Printf("INFO: round %d generated %d candidates (%d valid, %d passed)",
		in.RoundNumber, result.TotalGenerated, result.ValidCount, result.PassedCount)

	return result, nil
}

// DescribeTrace builds the audit entry for one generation round.
func (g *Generator) DescribeTrace(in GeneratorInput, out *GeneratorResult) *domain.Trace {
	input := map[string]interface{}{
		"round_number": in.RoundNumber,
		"seeds":        in.Seeds,
		"target":       in.CandidatesTarget,
	}
	output := map[string]interface{}{
		"total":             out.TotalGenerated,
		"valid":             out.ValidCount,
		"passed":            out.PassedCount,
		"failure_breakdown": out.FailureBreakdown,
	}
	action := fmt.Sprintf("generation_round_%d", in.RoundNumber)
	return g.Trace(in.RunID, action, input, output, out.DurationMs)
}
