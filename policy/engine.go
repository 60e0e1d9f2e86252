// Package policy evaluates run admission rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine. Run configurations are evaluated before
// a run row is created; a "block" decision rejects the submission.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.run_policy.result"),
		rego.Module("run_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks a run configuration against the admission policy.
// Input is a map with keys: seeds, num_rounds, candidates_per_round, top_k.
// Returns: decision (allow, block), reason (optional), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; an empty result means it is missing.
		return "allow", "default", nil
	}

	val := results[0].Expressions[0].Value
	obj, ok := val.(map[string]interface{})
	if !ok {
		return "allow", "unexpected return type", nil
	}

	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	if decision == "" {
		decision = "allow"
	}
	return decision, reason, nil
}

// DefaultPolicy bounds run configurations to what the pipeline can serve.
const DefaultPolicy = `
package run_policy

default result = {"decision": "allow", "reason": ""}

result = {"decision": "block", "reason": "at least one seed structure is required"} {
	count(input.seeds) == 0
}

result = {"decision": "block", "reason": "num_rounds must be between 1 and 10"} {
	count(input.seeds) > 0
	not rounds_ok
}

result = {"decision": "block", "reason": "candidates_per_round must be between 10 and 500"} {
	count(input.seeds) > 0
	rounds_ok
	not candidates_ok
}

result = {"decision": "block", "reason": "top_k must be between 1 and 100"} {
	count(input.seeds) > 0
	rounds_ok
	candidates_ok
	not top_k_ok
}

rounds_ok {
	input.num_rounds >= 1
	input.num_rounds <= 10
}

candidates_ok {
	input.candidates_per_round >= 10
	input.candidates_per_round <= 500
}

top_k_ok {
	input.top_k >= 1
	input.top_k <= 100
}
`
