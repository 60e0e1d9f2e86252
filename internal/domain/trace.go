package domain

import "encoding/json"

// Trace is one append-only audit record of a stage execution. Entries are
// written in execution order and read back in timestamp-ascending order;
// they are never updated or deleted.
type Trace struct {
	TraceID        string          `json:"trace_id"`
	RunID          string          `json:"run_id"`
	AgentName      string          `json:"agent_name"`
	Action         string          `json:"action"`
	InputSnapshot  json.RawMessage `json:"input_snapshot,omitempty"`
	OutputSnapshot json.RawMessage `json:"output_snapshot,omitempty"`
	DurationMs     float64         `json:"duration_ms"`
	Ts             int64           `json:"ts"` // Unix milliseconds
}
