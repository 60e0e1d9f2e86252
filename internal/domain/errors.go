package domain

import "errors"

// Fatal run-level errors. Stage-local problems (an invalid seed, a failed
// mutation attempt, a descriptor failure for one candidate) are absorbed
// into counters and never surface as errors.
var (
	// ErrRunNotFound indicates the run id is unknown. Fatal, never retried.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoValidSeeds indicates every configured seed failed validation.
	// Fatal to the run; a domain error, not an infrastructure one.
	ErrNoValidSeeds = errors.New("no valid seed structures provided")

	// ErrNoSeeds indicates the generator was invoked with an empty seed list.
	ErrNoSeeds = errors.New("no seeds provided for generation")
)

// OrchestrationError indicates an invalid state transition attempt.
// It signals a programming or race defect and is always fatal.
type OrchestrationError struct {
	RunID string
	From  RunStatus
	To    RunStatus
}

func (e *OrchestrationError) Error() string {
	return "invalid run transition " + string(e.From) + " -> " + string(e.To) + " for run " + e.RunID
}
