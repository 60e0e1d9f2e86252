package pipeline

import (
	"context"
	"log"
	"sort"

	"github.com/minhduc280903/molforge/internal/domain"
)

// RankerInput is the union of all rounds' candidates plus the shortlist size.
type RankerInput struct {
	RunID      string
	Candidates []domain.Candidate
	TopK       int
}

// RankedEntry is one shortlist position.
type RankedEntry struct {
	Rank      int              `json:"rank"`
	Candidate domain.Candidate `json:"candidate"`
}

// RankerResult is the ordered shortlist. ScoreRange spans every passing
// candidate, not just the returned top-k.
type RankerResult struct {
	TotalCandidates int
	TopKRequested   int
	TopKReturned    int
	Ranked          []RankedEntry
	ScoreMin        float64
	ScoreMax        float64
	DurationMs      float64
}

// Ranker selects and orders the final shortlist.
type Ranker struct {
	agentBase
}

func NewRanker() *Ranker {
	return &Ranker{agentBase: agentBase{name: domain.AgentRanker}}
}

// Execute filters to valid, screening-passed, scored candidates, stable-sorts
// by score descending (original collection order breaks ties), and assigns
// ranks 1..k to the first topK entries.
func (r *Ranker) Execute(ctx context.Context, in RankerInput) (*RankerResult, error) {
	t := startTimer()

	var passing []domain.Candidate
	for _, c := range in.Candidates {
		if c.Scoreable() {
			passing = append(passing, c)
		}
	}

	result := &RankerResult{TopKRequested: in.TopK}
	if len(passing) == 0 {
		log.Printf("INFO: ranking found no passing candidates out of %d", len(in.Candidates))
		result.DurationMs = t.elapsedMs()
		return result, nil
	}

	sort.SliceStable(passing, func(i, j int) bool {
		return *passing[i].Score > *passing[j].Score
	})

	limit := in.TopK
	if limit > len(passing) {
		limit = len(passing)
	}
	for i := 0; i < limit; i++ {
		result.Ranked = append(result.Ranked, RankedEntry{Rank: i + 1, Candidate: passing[i]})
	}

	// After the descending sort the range is just the two ends, and it
	// covers all passing candidates.
	result.TotalCandidates = len(passing)
	result.TopKReturned = len(result.Ranked)
	result.ScoreMax = *passing[0].Score
	result.ScoreMin = *passing[len(passing)-1].Score
	result.DurationMs = t.elapsedMs()
	return result, nil
}

// DescribeTrace builds the audit entry for the ranking stage.
func (r *Ranker) DescribeTrace(in RankerInput, out *RankerResult) *domain.Trace {
	input := map[string]interface{}{
		"total_candidates": len(in.Candidates),
		"top_k":            in.TopK,
	}
	top := make([]map[string]interface{}, 0, 5)
	for _, e := range out.Ranked {
		if len(top) == 5 {
			break
		}
		top = append(top, map[string]interface{}{
			"rank":      e.Rank,
			"structure": e.Candidate.Structure,
			"score":     e.Candidate.Score,
		})
	}
	output := map[string]interface{}{
		"candidates":     out.TotalCandidates,
		"top_k_returned": out.TopKReturned,
		"score_range":    []float64{out.ScoreMin, out.ScoreMax},
		"top_candidates": top,
	}
	return r.Trace(in.RunID, "ranking_complete", input, output, out.DurationMs)
}
