package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/minhduc280903/molforge/internal/domain"
)

// RunRejectedError indicates the admission policy blocked a submission.
type RunRejectedError struct {
	Reason string
}

func (e *RunRejectedError) Error() string {
	return "run rejected by policy: " + e.Reason
}

// SubmitRun validates a run configuration against the admission policy,
// persists it as PENDING, and hands it to the dispatcher.
func (s *Service) SubmitRun(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error) {
	cfg.ApplyDefaults()

	decision, reason, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{
		"seeds":                cfg.Seeds,
		"num_rounds":           cfg.NumRounds,
		"candidates_per_round": cfg.CandidatesPerRound,
		"top_k":                cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate admission policy: %w", err)
	}
	if decision == "block" {
		return nil, &RunRejectedError{Reason: reason}
	}

	now := time.Now()
	run := &domain.Run{
		RunID:     "run_" + uuid.New().String()[:8],
		Status:    domain.RunStatusPending,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.enqueue(run.RunID)
	log.Printf("INFO: run %s submitted (%d seeds, %d rounds)", run.RunID, len(cfg.Seeds), cfg.NumRounds)
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

// ListCandidates retrieves a run's candidates, best score first.
func (s *Service) ListCandidates(ctx context.Context, runID string, passedOnly bool, limit int) ([]domain.Candidate, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	candidates, err := s.store.ListCandidates(ctx, runID, passedOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, nil
}

// ListTraces retrieves a run's audit trail in execution order.
func (s *Service) ListTraces(ctx context.Context, runID string, limit int) ([]domain.Trace, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	traces, err := s.store.ListTraces(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	return traces, nil
}
