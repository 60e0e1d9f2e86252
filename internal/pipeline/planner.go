package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/domain"
)

// PlannerInput carries the run configuration into the planning stage.
type PlannerInput struct {
	RunID  string
	Config domain.RunConfig
}

// PlannerResult is the round schedule plus the echoed selection parameters.
type PlannerResult struct {
	ValidatedSeeds        []string
	InvalidSeeds          []string
	Rounds                []domain.RoundPlan
	TotalCandidatesTarget int
	Filters               domain.FilterConfig
	TopK                  int
	StrategySummary       string
	DurationMs            float64
}

// Planner validates seeds and builds the round schedule.
type Planner struct {
	agentBase
	svc chem.StructureService
}

func NewPlanner(svc chem.StructureService) *Planner {
	return &Planner{agentBase: agentBase{name: domain.AgentPlanner}, svc: svc}
}

// Execute partitions seeds into validated/invalid and lays out one RoundPlan
// per round. An individual invalid seed is logged, not fatal; an empty
// validated set fails the whole run with ErrNoValidSeeds. Round 1 carries
// the validated seeds; later rounds are reseeded at execution time from
// prior results, so their seed lists stay empty here.
func (p *Planner) Execute(ctx context.Context, in PlannerInput) (*PlannerResult, error) {
	t := startTimer()
	cfg := in.Config

	var validated, invalid []string
	for _, seed := range cfg.Seeds {
		result, err := p.svc.Validate(ctx, seed)
		if err != nil {
			invalid = append(invalid, seed)
			log.Printf("WARN: seed validation call failed: %v", err)
			continue
		}
		if result.IsValid {
			validated = append(validated, seed)
		} else {
			invalid = append(invalid, seed)
			log.Printf("WARN: invalid seed %q: %s", seed, result.Error)
		}
	}

	if len(validated) == 0 {
		return nil, domain.ErrNoValidSeeds
	}

	rounds := make([]domain.RoundPlan, 0, cfg.NumRounds)
	for num := 1; num <= cfg.NumRounds; num++ {
		plan := domain.RoundPlan{
			RoundNumber:      num,
			CandidatesTarget: cfg.CandidatesPerRound,
		}
		if num == 1 {
			plan.Seeds = validated
			plan.Strategy = "Exploratory generation from original seeds"
		} else {
			plan.Strategy = fmt.Sprintf("Refinement phase %d using top candidates", num)
		}
		rounds = append(rounds, plan)
	}

	summary := fmt.Sprintf(
		"Plan: %d round(s), %d candidates/round, top_k=%d, max_violations=%d",
		cfg.NumRounds, cfg.CandidatesPerRound, cfg.TopK, cfg.Filters.MaxViolations,
	)

	return &PlannerResult{
		ValidatedSeeds:        validated,
		InvalidSeeds:          invalid,
		Rounds:                rounds,
		TotalCandidatesTarget: cfg.NumRounds * cfg.CandidatesPerRound,
		Filters:               cfg.Filters,
		TopK:                  cfg.TopK,
		StrategySummary:       summary,
		DurationMs:            t.elapsedMs(),
	}, nil
}

// DescribeTrace builds the audit entry for one planning execution.
func (p *Planner) DescribeTrace(in PlannerInput, out *PlannerResult) *domain.Trace {
	input := map[string]interface{}{
		"seeds":                in.Config.Seeds,
		"num_rounds":           in.Config.NumRounds,
		"candidates_per_round": in.Config.CandidatesPerRound,
	}
	output := map[string]interface{}{
		"validated_seeds": out.ValidatedSeeds,
		"invalid_seeds":   out.InvalidSeeds,
		"strategy":        out.StrategySummary,
	}
	return p.Trace(in.RunID, "plan_created", input, output, out.DurationMs)
}
