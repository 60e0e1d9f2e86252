// Package pipeline implements the three-stage candidate pipeline:
// plan -> generate -> rank. Stages are stateless; all run state is
// persisted by the orchestrator between stage executions.
package pipeline

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/minhduc280903/molforge/internal/domain"
)

// agentBase carries the trace-construction behavior shared by the three
// stages. Stages embed it; there is no inheritance hierarchy beyond this.
type agentBase struct {
	name string
}

// Name returns the agent name recorded in trace entries.
func (a agentBase) Name() string {
	return a.name
}

// Trace builds an audit entry for one execution of this agent. Input and
// output snapshots are opaque structured payloads; marshal failures are
// absorbed because a trace must never abort the stage that produced it.
func (a agentBase) Trace(runID, action string, input, output interface{}, durationMs float64) *domain.Trace {
	in, err := json.Marshal(input)
	if err != nil {
		log.Printf("WARN: failed to marshal trace input for %s: %v", a.name, err)
		in = nil
	}
	out, err := json.Marshal(output)
	if err != nil {
		log.Printf("WARN: failed to marshal trace output for %s: %v", a.name, err)
		out = nil
	}
	return &domain.Trace{
		TraceID:        "trc_" + uuid.New().String()[:8],
		RunID:          runID,
		AgentName:      a.name,
		Action:         action,
		InputSnapshot:  in,
		OutputSnapshot: out,
		DurationMs:     durationMs,
		Ts:             time.Now().UnixMilli(),
	}
}

// timer measures stage durations in milliseconds.
type timer struct {
	start time.Time
}

func startTimer() timer {
	return timer{start: time.Now()}
}

func (t timer) elapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
