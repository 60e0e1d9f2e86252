// Package store defines the persistence interface and its SQLite
// implementation for runs, candidates, and traces.
package store

import (
	"context"
	"time"

	"github.com/minhduc280903/molforge/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Run operations. The run row is the single point of mutable shared
	// state; status changes go through conditional updates.
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// ClaimRun performs the atomic PENDING -> RUNNING transition and
	// reports whether this caller won the claim. Two workers can never
	// both observe PENDING and both proceed.
	ClaimRun(ctx context.Context, runID string) (bool, error)

	// TouchRun bumps updated_at so the stuck-run reaper can tell progress
	// from abandonment. Called after each round commit.
	TouchRun(ctx context.Context, runID string) error

	// CompleteRun moves RUNNING -> COMPLETED with the result summary.
	CompleteRun(ctx context.Context, runID string, summary *domain.ResultSummary) (bool, error)

	// FailRun moves a non-terminal run to FAILED with the causal message.
	FailRun(ctx context.Context, runID string, message string) (bool, error)

	// RequeueRun moves RUNNING -> PENDING (reaper recovery path).
	RequeueRun(ctx context.Context, runID string) (bool, error)

	// ListStuckRuns returns RUNNING runs whose updated_at is older than the
	// cutoff, oldest first.
	ListStuckRuns(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// ListPendingRuns returns PENDING runs whose updated_at is older than the
	// cutoff, oldest first. Used to re-enqueue runs after a restart or a full
	// dispatch queue.
	ListPendingRuns(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// Candidate operations. Inserts ignore (run, structure) duplicates:
	// first write wins.
	CreateCandidates(ctx context.Context, candidates []domain.Candidate) (int, error)
	ListCandidates(ctx context.Context, runID string, passedOnly bool, limit int) ([]domain.Candidate, error)
	CountCandidates(ctx context.Context, runID string) (int, error)

	// Trace operations. Append-only, read back in timestamp-ascending order.
	AppendTrace(ctx context.Context, trace *domain.Trace) error
	ListTraces(ctx context.Context, runID string, limit int) ([]domain.Trace, error)

	// Lifecycle
	Close() error
}
