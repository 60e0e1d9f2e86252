package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/domain"
)

// fakeStructureService is a deterministic in-memory structure service.
// Behavior is overridable per test via the function fields.
type fakeStructureService struct {
	validateFn   func(structure string) chem.ValidationResult
	propertiesFn func(structure string) (domain.PropertyVector, error)
	transformFn  func(structure, ruleID string) chem.TransformationResult
	similarityFn func(a, b string) (float64, bool)

	transformCalls int
}

func (f *fakeStructureService) Validate(ctx context.Context, structure string) (chem.ValidationResult, error) {
	if f.validateFn != nil {
		return f.validateFn(structure), nil
	}
	if structure == "" || strings.HasPrefix(structure, "bad") {
		return chem.ValidationResult{IsValid: false, Error: "unparseable structure"}, nil
	}
	return chem.ValidationResult{IsValid: true}, nil
}

func (f *fakeStructureService) ComputeProperties(ctx context.Context, structure string) (domain.PropertyVector, error) {
	if f.propertiesFn != nil {
		return f.propertiesFn(structure)
	}
	return domain.PropertyVector{
		Weight:           300.0,
		Lipophilicity:    2.5,
		DonorCount:       2,
		AcceptorCount:    4,
		PolarSurfaceArea: 80.0,
		RotatableBonds:   4,
		Druglikeness:     0.8,
	}, nil
}

func (f *fakeStructureService) ApplyTransformation(ctx context.Context, structure, ruleID string) (chem.TransformationResult, error) {
	f.transformCalls++
	if f.transformFn != nil {
		return f.transformFn(structure, ruleID), nil
	}
	// Counter-based variants: every attempt yields a fresh structure, so a
	// search accepts exactly its requested number of mutations.
	return chem.TransformationResult{
		Success:   true,
		Structure: fmt.Sprintf("%s#%d", structure, f.transformCalls),
	}, nil
}

func (f *fakeStructureService) Similarity(ctx context.Context, a, b string) (float64, bool, error) {
	if f.similarityFn != nil {
		sim, ok := f.similarityFn(a, b)
		return sim, ok, nil
	}
	if a == b {
		return 1.0, true, nil
	}
	return 0.0, true, nil
}

func newSearch(svc chem.StructureService) *MutationSearch {
	return NewMutationSearch(svc, chem.DefaultRules, newTestRand())
}
