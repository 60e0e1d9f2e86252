package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/minhduc280903/molforge/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestRun(runID string) *domain.Run {
	cfg := domain.RunConfig{Seeds: []string{"S1", "S2"}}
	cfg.ApplyDefaults()
	now := time.Now()
	return &domain.Run{
		RunID:     runID,
		Status:    domain.RunStatusPending,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.Status != domain.RunStatusPending {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.Config.Seeds) != 2 || got.Config.NumRounds != 1 {
		t.Fatalf("config not round-tripped: %+v", got.Config)
	}

	missing, err := store.GetRun(ctx, "nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing run, got %+v", missing)
	}

	claimed, err := store.ClaimRun(ctx, "r1")
	if err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must succeed")
	}

	summary := &domain.ResultSummary{TotalGenerated: 10, TotalValid: 8, TopCandidatesCount: 3}
	done, err := store.CompleteRun(ctx, "r1", summary)
	if err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if !done {
		t.Fatal("expected completion of a RUNNING run")
	}

	got, err = store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if got.ResultSummary == nil || got.ResultSummary.TotalGenerated != 10 {
		t.Fatalf("summary not persisted: %+v", got.ResultSummary)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("completed run must not carry an error message: %v", *got.ErrorMessage)
	}
}

func TestSQLiteStoreClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	first, err := store.ClaimRun(ctx, "r1")
	if err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	second, err := store.ClaimRun(ctx, "r1")
	if err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	if !first || second {
		t.Fatalf("exactly one claim must win: first=%v second=%v", first, second)
	}
}

func TestSQLiteStoreTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := store.ClaimRun(ctx, "r1"); err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}
	if _, err := store.FailRun(ctx, "r1", "descriptor service unreachable"); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != domain.RunStatusFailed || got.ErrorMessage == nil {
		t.Fatalf("unexpected run after failure: %+v", got)
	}

	// No transition may leave a terminal state.
	if ok, _ := store.ClaimRun(ctx, "r1"); ok {
		t.Fatal("claim must not succeed on a FAILED run")
	}
	if ok, _ := store.CompleteRun(ctx, "r1", &domain.ResultSummary{}); ok {
		t.Fatal("complete must not succeed on a FAILED run")
	}
	if ok, _ := store.RequeueRun(ctx, "r1"); ok {
		t.Fatal("requeue must not succeed on a FAILED run")
	}
	if ok, _ := store.FailRun(ctx, "r1", "again"); ok {
		t.Fatal("fail must not overwrite a terminal run")
	}
}

func TestSQLiteStoreRequeueAndStuckRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := store.ClaimRun(ctx, "r1"); err != nil {
		t.Fatalf("ClaimRun failed: %v", err)
	}

	stuck, err := store.ListStuckRuns(ctx, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStuckRuns failed: %v", err)
	}
	if len(stuck) != 1 || stuck[0] != "r1" {
		t.Fatalf("expected r1 stuck, got %v", stuck)
	}

	none, err := store.ListStuckRuns(ctx, time.Now().Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStuckRuns failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("recently touched run must not be reported stuck: %v", none)
	}

	requeued, err := store.RequeueRun(ctx, "r1")
	if err != nil {
		t.Fatalf("RequeueRun failed: %v", err)
	}
	if !requeued {
		t.Fatal("expected requeue of a RUNNING run")
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != domain.RunStatusPending {
		t.Fatalf("expected PENDING after requeue, got %s", got.Status)
	}

	pending, err := store.ListPendingRuns(ctx, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("ListPendingRuns failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != "r1" {
		t.Fatalf("expected r1 pending, got %v", pending)
	}
}

func testCandidate(runID, structure string, score float64, passed bool) domain.Candidate {
	violations := 0
	if !passed {
		violations = 2
	}
	return domain.Candidate{
		CandidateID:    "cnd_" + structure,
		RunID:          runID,
		Structure:      structure,
		RoundGenerated: 1,
		IsValid:        true,
		Properties: &domain.PropertyVector{
			Weight:        300.0,
			Lipophilicity: 2.5,
			Druglikeness:  0.8,
		},
		ViolationCount:  &violations,
		PassedScreening: &passed,
		Score:           &score,
	}
}

func TestSQLiteStoreCandidateUniqueness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	inserted, err := store.CreateCandidates(ctx, []domain.Candidate{
		testCandidate("r1", "A", 0.8, true),
		testCandidate("r1", "B", 0.6, true),
	})
	if err != nil {
		t.Fatalf("CreateCandidates failed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserts, got %d", inserted)
	}

	// Same structure again under a fresh candidate ID: first write wins.
	dup := testCandidate("r1", "A", 0.1, false)
	dup.CandidateID = "cnd_A2"
	inserted, err = store.CreateCandidates(ctx, []domain.Candidate{dup})
	if err != nil {
		t.Fatalf("CreateCandidates failed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("duplicate structure must be ignored, inserted %d", inserted)
	}

	count, err := store.CountCandidates(ctx, "r1")
	if err != nil {
		t.Fatalf("CountCandidates failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	rows, err := store.ListCandidates(ctx, "r1", false, 0)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	for _, c := range rows {
		if c.Structure == "A" && *c.Score != 0.8 {
			t.Fatalf("first write must win, got score %v", *c.Score)
		}
	}
}

func TestSQLiteStoreListCandidatesOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	unscored := domain.Candidate{
		CandidateID:    "cnd_X",
		RunID:          "r1",
		Structure:      "X",
		RoundGenerated: 1,
		IsValid:        false,
		Error:          "unparseable structure",
	}
	batch := []domain.Candidate{
		testCandidate("r1", "low", 0.2, true),
		testCandidate("r1", "high", 0.9, true),
		unscored,
		testCandidate("r1", "blocked", 0.5, false),
	}
	if _, err := store.CreateCandidates(ctx, batch); err != nil {
		t.Fatalf("CreateCandidates failed: %v", err)
	}

	all, err := store.ListCandidates(ctx, "r1", false, 0)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(all))
	}
	if all[0].Structure != "high" {
		t.Fatalf("expected highest score first, got %s", all[0].Structure)
	}
	if all[len(all)-1].Structure != "X" {
		t.Fatalf("unscored candidates must sort last, got %s", all[len(all)-1].Structure)
	}
	if all[0].Properties == nil || all[0].Properties.Weight != 300.0 {
		t.Fatalf("properties not round-tripped: %+v", all[0].Properties)
	}

	passed, err := store.ListCandidates(ctx, "r1", true, 0)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(passed) != 2 {
		t.Fatalf("expected 2 passing candidates, got %d", len(passed))
	}
	for _, c := range passed {
		if c.PassedScreening == nil || !*c.PassedScreening {
			t.Fatalf("non-passing candidate returned: %+v", c)
		}
	}

	limited, err := store.ListCandidates(ctx, "r1", false, 2)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit not applied, got %d rows", len(limited))
	}
}

func TestSQLiteStoreTraces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, newTestRun("r1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	base := time.Now().UnixMilli()
	entries := []domain.Trace{
		{TraceID: "t1", RunID: "r1", AgentName: domain.AgentPlanner, Action: "plan_created", OutputSnapshot: json.RawMessage(`{"rounds":2}`), Ts: base},
		{TraceID: "t2", RunID: "r1", AgentName: domain.AgentGenerator, Action: "generation_round_1", Ts: base + 5},
		{TraceID: "t3", RunID: "r1", AgentName: domain.AgentGenerator, Action: "generation_round_2", Ts: base + 5},
		{TraceID: "t4", RunID: "r1", AgentName: domain.AgentRanker, Action: "ranking_complete", Ts: base + 9},
	}
	for i := range entries {
		if err := store.AppendTrace(ctx, &entries[i]); err != nil {
			t.Fatalf("AppendTrace failed: %v", err)
		}
	}

	traces, err := store.ListTraces(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("ListTraces failed: %v", err)
	}
	if len(traces) != 4 {
		t.Fatalf("expected 4 traces, got %d", len(traces))
	}
	wantOrder := []string{"t1", "t2", "t3", "t4"}
	for i, tr := range traces {
		if tr.TraceID != wantOrder[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantOrder[i], tr.TraceID)
		}
	}
	if string(traces[0].OutputSnapshot) != `{"rounds":2}` {
		t.Fatalf("snapshot not round-tripped: %s", traces[0].OutputSnapshot)
	}

	limited, err := store.ListTraces(ctx, "r1", 2)
	if err != nil {
		t.Fatalf("ListTraces failed: %v", err)
	}
	if len(limited) != 2 || limited[0].TraceID != "t1" {
		t.Fatalf("limit must keep earliest entries: %+v", limited)
	}
}
