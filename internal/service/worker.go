package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/minhduc280903/molforge/internal/domain"
)

const (
	reaperInterval = 5 * time.Second
	sweepBatchSize = 100

	// PENDING runs sitting untouched this long are re-enqueued. Covers runs
	// that missed a full queue and runs left behind by a restart.
	pendingResubmitAge = 30 * time.Second
)

// StartWorkers launches the dispatch workers. They drain the run queue
// until the context is cancelled.
func (s *Service) StartWorkers(ctx context.Context) {
	for i := 0; i < s.config.Workers; i++ {
		go s.worker(ctx, i)
	}
	log.Printf("INFO: started %d pipeline workers", s.config.Workers)
}

func (s *Service) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case runID := <-s.queue:
			s.executeWithRetry(ctx, runID)
		}
	}
}

// enqueue hands a run to the workers without blocking. A full queue is not
// fatal: the pending sweep re-enqueues the run later.
func (s *Service) enqueue(runID string) bool {
	select {
	case s.queue <- runID:
		return true
	default:
		log.Printf("WARN: dispatch queue full, run %s stays pending", runID)
		return false
	}
}

// executeWithRetry runs the pipeline with bounded retries for infrastructure
// failures. Domain errors are final on the first attempt; the orchestrator
// has already marked the run FAILED for those.
func (s *Service) executeWithRetry(ctx context.Context, runID string) {
	var lastErr error
	for attempt := 1; attempt <= s.config.RetryAttempts; attempt++ {
		err := s.ExecuteRun(ctx, runID)
		if err == nil {
			return
		}
		if !isRetryable(err) {
			log.Printf("INFO: run %s not retried: %v", runID, err)
			return
		}
		lastErr = err
		log.Printf("WARN: run %s attempt %d/%d failed: %v", runID, attempt, s.config.RetryAttempts, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.RetryDelay):
		}
	}
	s.failRun(ctx, runID, lastErr.Error())
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrRunNotFound) {
		return false
	}
	return !isDomainError(err)
}

// RunReaper periodically recovers runs that fell out of the normal flow:
// RUNNING runs whose worker died are reset to PENDING, and aged PENDING
// runs are re-enqueued.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStuckRuns(ctx)
			s.sweepPendingRuns(ctx)
		}
	}
}

func (s *Service) sweepStuckRuns(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.config.RunTimeout)
	stuck, err := s.store.ListStuckRuns(sweepCtx, cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("WARN: stuck-run sweep failed: %v", err)
		return
	}

	for _, runID := range stuck {
		requeued, err := s.store.RequeueRun(sweepCtx, runID)
		if err != nil {
			log.Printf("WARN: failed to requeue stuck run %s: %v", runID, err)
			continue
		}
		if !requeued {
			continue
		}
		s.metrics.RunsRequeued.Inc()
		log.Printf("WARN: run %s stalled beyond %s, requeued", runID, s.config.RunTimeout)
		s.enqueue(runID)
	}
}

func (s *Service) sweepPendingRuns(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-pendingResubmitAge)
	pending, err := s.store.ListPendingRuns(sweepCtx, cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("WARN: pending-run sweep failed: %v", err)
		return
	}

	// Double-enqueueing is harmless: the loser of the claim is a no-op.
	for _, runID := range pending {
		s.enqueue(runID)
	}
}
