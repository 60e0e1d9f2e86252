package pipeline

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/minhduc280903/molforge/internal/chem"
)

const (
	// maxAttemptsPerMutation bounds the random search: a seed gets at most
	// maxAttemptsPerMutation * mutationsPerSeed transformation attempts.
	maxAttemptsPerMutation = 10

	// diversityThreshold is the similarity ceiling for the pruning pass.
	diversityThreshold = 0.7
)

// MutationSearch generates a deduplicated, diversity-pruned candidate set
// from seed structures using the structure service.
type MutationSearch struct {
	svc   chem.StructureService
	rules []chem.Rule
	rng   *rand.Rand
}

// NewMutationSearch creates a search over the given rule catalog. A nil rng
// gets a time-seeded source; tests inject a fixed seed.
func NewMutationSearch(svc chem.StructureService, rules []chem.Rule, rng *rand.Rand) *MutationSearch {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MutationSearch{svc: svc, rules: rules, rng: rng}
}

// Mutate produces up to numMutations novel variants of one seed. Each
// attempt picks a rule uniformly at random; a result is accepted only if
// the transformation succeeded, the structure is new for this seed, and it
// differs from the input (a no-op transform counts as a failure). Exhausting
// the attempt budget is not an error: the seed just contributes fewer
// variants.
func (m *MutationSearch) Mutate(ctx context.Context, seed string, numMutations int) []string {
	seen := map[string]bool{seed: true}
	var accepted []string

	budget := maxAttemptsPerMutation * numMutations
	for attempt := 0; attempt < budget && len(accepted) < numMutations; attempt++ {
		rule := m.rules[m.rng.Intn(len(m.rules))]

		result, err := m.svc.ApplyTransformation(ctx, seed, rule.ID)
		if err != nil {
			log.Printf("WARN: transformation %s failed for seed: %v", rule.ID, err)
			continue
		}
		if !result.Success || result.Structure == "" {
			continue
		}
		if result.Structure == seed || seen[result.Structure] {
			continue
		}

		seen[result.Structure] = true
		accepted = append(accepted, result.Structure)
	}
	return accepted
}

// GenerateCandidates runs the mutation search per seed and unions the
// results into one candidate set, deduplicated across seeds. Insertion
// order is preserved: the pruning pass downstream depends on it.
func (m *MutationSearch) GenerateCandidates(ctx context.Context, seeds []string, mutationsPerSeed int) []string {
	seen := make(map[string]bool)
	var all []string

	for _, seed := range seeds {
		for _, structure := range m.Mutate(ctx, seed, mutationsPerSeed) {
			if seen[structure] {
				continue
			}
			seen[structure] = true
			all = append(all, structure)
		}
	}
	return all
}

// DiversityPrune keeps a subset of candidates no two of which have
// similarity >= the threshold. The pass is greedy and deterministic: the
// first element is always kept, and every later candidate is compared
// against all kept elements in order. Reordering the input can change
// which candidates survive; that is accepted behavior, not a bug.
func (m *MutationSearch) DiversityPrune(ctx context.Context, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}

	kept := []string{candidates[0]}
	for _, candidate := range candidates[1:] {
		diverse := true
		for _, selected := range kept {
			sim, ok, err := m.svc.Similarity(ctx, candidate, selected)
			if err != nil {
				log.Printf("WARN: similarity check failed: %v", err)
				continue
			}
			if ok && sim >= diversityThreshold {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, candidate)
		}
	}
	return kept
}
