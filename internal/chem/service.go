// Package chem defines the structure-service boundary. The orchestrator
// never inspects structures; it treats them as opaque tokens plus the four
// operations below.
package chem

import (
	"context"

	"github.com/minhduc280903/molforge/internal/domain"
)

// ValidationResult is the outcome of validating a structure token.
type ValidationResult struct {
	IsValid bool
	Error   string
}

// TransformationResult is the outcome of applying a rule to a structure.
type TransformationResult struct {
	Success   bool
	Structure string
	Error     string
}

// StructureService is the external capability the pipeline consumes.
// Implementations are expected to block on I/O; every call takes a context.
type StructureService interface {
	// Validate checks whether the token denotes a well-formed structure.
	Validate(ctx context.Context, structure string) (ValidationResult, error)

	// ComputeProperties computes the descriptor set for a valid structure.
	ComputeProperties(ctx context.Context, structure string) (domain.PropertyVector, error)

	// ApplyTransformation applies a catalog rule to a structure. A rule that
	// does not apply is a non-error: Success is false and Error explains why.
	ApplyTransformation(ctx context.Context, structure, ruleID string) (TransformationResult, error)

	// Similarity returns a similarity coefficient in [0,1], or ok=false when
	// it is undefined because either structure is invalid.
	Similarity(ctx context.Context, a, b string) (sim float64, ok bool, err error)
}
