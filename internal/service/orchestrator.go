package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/minhduc280903/molforge/internal/domain"
	"github.com/minhduc280903/molforge/internal/pipeline"
)

// Number of prior top candidates used to reseed refinement rounds.
const reseedTopN = 5

// ExecuteRun drives one run through the full pipeline. It is safe to call
// repeatedly and from multiple workers: the PENDING -> RUNNING transition is
// a conditional update, and only the worker that wins it executes anything.
// A run already RUNNING or terminal is a no-op.
//
// Domain errors (unknown run, no valid seeds) mark the run FAILED here.
// Infrastructure errors release the claim and bubble up for the dispatcher
// to retry.
func (s *Service) ExecuteRun(ctx context.Context, runID string) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return domain.ErrRunNotFound
	}
	if run.Status.IsTerminal() {
		log.Printf("INFO: run %s already %s, nothing to do", runID, run.Status)
		return nil
	}

	claimed, err := s.store.ClaimRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to claim run: %w", err)
	}
	if !claimed {
		log.Printf("INFO: run %s claimed elsewhere, skipping", runID)
		return nil
	}
	s.metrics.RunsStarted.Inc()
	log.Printf("INFO: run %s started", runID)

	summary, err := s.runPipeline(ctx, run)
	if err != nil {
		if isDomainError(err) {
			s.failRun(ctx, runID, err.Error())
			return err
		}
		// Release the claim so a retry can win it again.
		if _, reqErr := s.store.RequeueRun(ctx, runID); reqErr != nil {
			log.Printf("ERROR: failed to release claim on run %s: %v", runID, reqErr)
		}
		return err
	}

	completed, err := s.store.CompleteRun(ctx, runID, summary)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if !completed {
		return &domain.OrchestrationError{RunID: runID, From: domain.RunStatusRunning, To: domain.RunStatusCompleted}
	}
	s.metrics.RunsCompleted.Inc()
	log.Printf("INFO: run %s completed: %d candidates, %d in shortlist",
		runID, summary.TotalGenerated, summary.TopCandidatesCount)
	return nil
}

func (s *Service) runPipeline(ctx context.Context, run *domain.Run) (*domain.ResultSummary, error) {
	started := time.Now()
	runID := run.RunID

	planIn := pipeline.PlannerInput{RunID: runID, Config: run.Config}
	plan, err := s.planner.Execute(ctx, planIn)
	if err != nil {
		return nil, err
	}
	s.recordTrace(ctx, s.planner.DescribeTrace(planIn, plan))

	totalGenerated := 0
	totalValid := 0
	totalPassed := 0
	breakdown := make(map[string]int)

	for _, roundPlan := range plan.Rounds {
		seeds := roundPlan.Seeds
		if roundPlan.RoundNumber > 1 {
			seeds, err = s.reseed(ctx, runID, plan.ValidatedSeeds)
			if err != nil {
				return nil, err
			}
		}

		genIn := pipeline.GeneratorInput{
			RunID:            runID,
			RoundNumber:      roundPlan.RoundNumber,
			Seeds:            seeds,
			CandidatesTarget: roundPlan.CandidatesTarget,
			Filters:          plan.Filters,
			PenaltyWeight:    run.Config.PenaltyWeight,
		}
		genOut, err := s.generator.Execute(ctx, genIn)
		if err != nil {
			return nil, err
		}

		// Each round commits before the next starts: a crash loses at most
		// the round in flight.
		inserted, err := s.store.CreateCandidates(ctx, genOut.Candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to persist round %d candidates: %w", roundPlan.RoundNumber, err)
		}
		if inserted < len(genOut.Candidates) {
			log.Printf("INFO: run %s round %d: %d of %d candidates were already present",
				runID, roundPlan.RoundNumber, len(genOut.Candidates)-inserted, len(genOut.Candidates))
		}
		s.recordTrace(ctx, s.generator.DescribeTrace(genIn, genOut))
		if err := s.store.TouchRun(ctx, runID); err != nil {
			log.Printf("WARN: failed to touch run %s: %v", runID, err)
		}

		totalGenerated += genOut.TotalGenerated
		totalValid += genOut.ValidCount
		totalPassed += genOut.PassedCount
		for key, n := range genOut.FailureBreakdown {
			breakdown[key] += n
		}
		s.metrics.CandidatesGenerated.Add(float64(genOut.TotalGenerated))
		s.metrics.CandidatesPassed.Add(float64(genOut.PassedCount))
	}

	all, err := s.store.ListCandidates(ctx, runID, false, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates for ranking: %w", err)
	}
	rankIn := pipeline.RankerInput{RunID: runID, Candidates: all, TopK: plan.TopK}
	rankOut, err := s.ranker.Execute(ctx, rankIn)
	if err != nil {
		return nil, err
	}
	s.recordTrace(ctx, s.ranker.DescribeTrace(rankIn, rankOut))

	top := make([]domain.RankedCandidate, 0, len(rankOut.Ranked))
	for _, e := range rankOut.Ranked {
		top = append(top, domain.RankedCandidate{
			Rank:      e.Rank,
			Structure: e.Candidate.Structure,
			Score:     *e.Candidate.Score,
		})
	}

	return &domain.ResultSummary{
		TotalGenerated:       totalGenerated,
		TotalValid:           totalValid,
		TotalPassedScreening: totalPassed,
		TopCandidatesCount:   rankOut.TopKReturned,
		FailureBreakdown:     breakdown,
		DurationMs:           float64(time.Since(started).Milliseconds()),
		TopCandidates:        top,
	}, nil
}

// reseed picks the next round's seeds: the best-scoring candidates that
// passed screening so far, falling back to the validated original seeds
// when no candidate has passed yet.
func (s *Service) reseed(ctx context.Context, runID string, fallback []string) ([]string, error) {
	best, err := s.store.ListCandidates(ctx, runID, true, reseedTopN)
	if err != nil {
		return nil, fmt.Errorf("failed to load reseed candidates: %w", err)
	}
	if len(best) == 0 {
		return fallback, nil
	}
	seeds := make([]string, 0, len(best))
	for _, c := range best {
		seeds = append(seeds, c.Structure)
	}
	return seeds, nil
}

func (s *Service) failRun(ctx context.Context, runID, message string) {
	failed, err := s.store.FailRun(ctx, runID, message)
	if err != nil {
		log.Printf("ERROR: failed to mark run %s failed: %v", runID, err)
		return
	}
	if failed {
		s.metrics.RunsFailed.Inc()
		log.Printf("INFO: run %s failed: %s", runID, message)
	}
}

// recordTrace appends an audit entry. Trace storage failure never fails
// the run.
func (s *Service) recordTrace(ctx context.Context, trace *domain.Trace) {
	if trace == nil {
		return
	}
	if err := s.store.AppendTrace(ctx, trace); err != nil {
		log.Printf("ERROR: failed to record trace %s for run %s: %v", trace.Action, trace.RunID, err)
	}
}

// isDomainError reports whether the error is a property of the run itself
// rather than of the infrastructure. Domain errors fail the run immediately
// and are never retried.
func isDomainError(err error) bool {
	if errors.Is(err, domain.ErrNoValidSeeds) || errors.Is(err, domain.ErrNoSeeds) {
		return true
	}
	var oe *domain.OrchestrationError
	return errors.As(err, &oe)
}
