package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/minhduc280903/molforge/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			config TEXT NOT NULL,
			result_summary TEXT,
			error_message TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status_updated ON runs(status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			candidate_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			structure TEXT NOT NULL,
			round_generated INTEGER NOT NULL,
			is_valid INTEGER NOT NULL,
			weight REAL,
			lipophilicity REAL,
			donor_count INTEGER,
			acceptor_count INTEGER,
			polar_surface_area REAL,
			rotatable_bonds INTEGER,
			druglikeness REAL,
			violation_count INTEGER,
			passed_screening INTEGER,
			score REAL,
			error TEXT,
			UNIQUE (run_id, structure),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_run_score ON candidates(run_id, score)`,
		`CREATE TABLE IF NOT EXISTS traces (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			action TEXT NOT NULL,
			input_snapshot TEXT,
			output_snapshot TEXT,
			duration_ms REAL,
			ts INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_run_ts ON traces(run_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	config, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Status, string(config), run.CreatedAt, run.UpdatedAt)
	return err
}

// GetRun retrieves a run by ID. Returns nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var config string
	var summary, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, status, config, result_summary, error_message, created_at, updated_at
		 FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.Status, &config, &summary, &errMsg, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
	}
	if summary.Valid {
		var rs domain.ResultSummary
		if err := json.Unmarshal([]byte(summary.String), &rs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result summary: %w", err)
		}
		run.ResultSummary = &rs
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return &run, nil
}

// ClaimRun atomically transitions PENDING -> RUNNING. The conditional
// update is the idempotency guard: two workers cannot both win it.
func (s *SQLiteStore) ClaimRun(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ? AND status = ?`,
		domain.RunStatusRunning, time.Now(), runID, domain.RunStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TouchRun bumps updated_at on a RUNNING run.
func (s *SQLiteStore) TouchRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET updated_at = ? WHERE run_id = ? AND status = ?`,
		time.Now(), runID, domain.RunStatusRunning)
	return err
}

// CompleteRun transitions RUNNING -> COMPLETED with the result summary.
// error_message is cleared so exactly one terminal field is set.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *domain.ResultSummary) (bool, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return false, fmt.Errorf("failed to marshal result summary: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result_summary = ?, error_message = NULL, updated_at = ?
		 WHERE run_id = ? AND status = ?`,
		domain.RunStatusCompleted, string(data), time.Now(), runID, domain.RunStatusRunning)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FailRun moves a non-terminal run to FAILED with the causal message.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, result_summary = NULL, updated_at = ?
		 WHERE run_id = ? AND status IN (?, ?)`,
		domain.RunStatusFailed, message, time.Now(), runID, domain.RunStatusPending, domain.RunStatusRunning)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RequeueRun transitions RUNNING -> PENDING so the dispatcher can pick the
// run up again after a crash.
func (s *SQLiteStore) RequeueRun(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ? AND status = ?`,
		domain.RunStatusPending, time.Now(), runID, domain.RunStatusRunning)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListStuckRuns returns RUNNING runs not updated since the cutoff, oldest first.
func (s *SQLiteStore) ListStuckRuns(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return s.listRunIDs(ctx, domain.RunStatusRunning, cutoff, limit)
}

// ListPendingRuns returns PENDING runs not updated since the cutoff, oldest first.
func (s *SQLiteStore) ListPendingRuns(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return s.listRunIDs(ctx, domain.RunStatusPending, cutoff, limit)
}

func (s *SQLiteStore) listRunIDs(ctx context.Context, status domain.RunStatus, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE status = ? AND updated_at <= ? ORDER BY updated_at ASC LIMIT ?`,
		status, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateCandidates inserts a batch of candidates in one transaction.
// Duplicate (run, structure) pairs are silently skipped so the first write
// wins; the return value is the number of rows actually written.
func (s *SQLiteStore) CreateCandidates(ctx context.Context, candidates []domain.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO candidates (
			candidate_id, run_id, structure, round_generated, is_valid,
			weight, lipophilicity, donor_count, acceptor_count,
			polar_surface_area, rotatable_bonds, druglikeness,
			violation_count, passed_screening, score, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range candidates {
		var weight, lipo, psa, qed sql.NullFloat64
		var donors, acceptors, rotb sql.NullInt64
		if c.Properties != nil {
			weight = sql.NullFloat64{Float64: c.Properties.Weight, Valid: true}
			lipo = sql.NullFloat64{Float64: c.Properties.Lipophilicity, Valid: true}
			psa = sql.NullFloat64{Float64: c.Properties.PolarSurfaceArea, Valid: true}
			qed = sql.NullFloat64{Float64: c.Properties.Druglikeness, Valid: true}
			donors = sql.NullInt64{Int64: int64(c.Properties.DonorCount), Valid: true}
			acceptors = sql.NullInt64{Int64: int64(c.Properties.AcceptorCount), Valid: true}
			rotb = sql.NullInt64{Int64: int64(c.Properties.RotatableBonds), Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			c.CandidateID, c.RunID, c.Structure, c.RoundGenerated, c.IsValid,
			weight, lipo, donors, acceptors, psa, rotb, qed,
			nullInt(c.ViolationCount), nullBool(c.PassedScreening), nullFloat(c.Score),
			nullString(c.Error))
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListCandidates retrieves candidates for a run ordered by score descending,
// unscored rows last, insertion order breaking ties.
func (s *SQLiteStore) ListCandidates(ctx context.Context, runID string, passedOnly bool, limit int) ([]domain.Candidate, error) {
	query := `SELECT candidate_id, run_id, structure, round_generated, is_valid,
		weight, lipophilicity, donor_count, acceptor_count,
		polar_surface_area, rotatable_bonds, druglikeness,
		violation_count, passed_screening, score, error
		FROM candidates WHERE run_id = ?`
	if passedOnly {
		query += ` AND is_valid = 1 AND passed_screening = 1`
	}
	query += ` ORDER BY score IS NULL, score DESC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// CountCandidates returns the number of candidate rows for a run.
func (s *SQLiteStore) CountCandidates(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candidates WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// AppendTrace appends an audit entry. Traces are never updated or deleted.
func (s *SQLiteStore) AppendTrace(ctx context.Context, trace *domain.Trace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traces (trace_id, run_id, agent_name, action, input_snapshot, output_snapshot, duration_ms, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.TraceID, trace.RunID, trace.AgentName, trace.Action,
		nullStringBytes(trace.InputSnapshot), nullStringBytes(trace.OutputSnapshot),
		trace.DurationMs, trace.Ts)
	return err
}

// ListTraces retrieves traces for a run in timestamp-ascending order; the
// append sequence breaks same-millisecond ties.
func (s *SQLiteStore) ListTraces(ctx context.Context, runID string, limit int) ([]domain.Trace, error) {
	query := `SELECT trace_id, run_id, agent_name, action, input_snapshot, output_snapshot, duration_ms, ts
		FROM traces WHERE run_id = ? ORDER BY ts ASC, seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []domain.Trace
	for rows.Next() {
		var t domain.Trace
		var input, output sql.NullString
		if err := rows.Scan(&t.TraceID, &t.RunID, &t.AgentName, &t.Action, &input, &output, &t.DurationMs, &t.Ts); err != nil {
			return nil, err
		}
		if input.Valid {
			t.InputSnapshot = json.RawMessage(input.String)
		}
		if output.Valid {
			t.OutputSnapshot = json.RawMessage(output.String)
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (domain.Candidate, error) {
	var c domain.Candidate
	var weight, lipo, psa, qed, score sql.NullFloat64
	var donors, acceptors, rotb, violations sql.NullInt64
	var passed sql.NullBool
	var errMsg sql.NullString

	err := row.Scan(&c.CandidateID, &c.RunID, &c.Structure, &c.RoundGenerated, &c.IsValid,
		&weight, &lipo, &donors, &acceptors, &psa, &rotb, &qed,
		&violations, &passed, &score, &errMsg)
	if err != nil {
		return c, err
	}

	if weight.Valid {
		c.Properties = &domain.PropertyVector{
			Weight:           weight.Float64,
			Lipophilicity:    lipo.Float64,
			DonorCount:       int(donors.Int64),
			AcceptorCount:    int(acceptors.Int64),
			PolarSurfaceArea: psa.Float64,
			RotatableBonds:   int(rotb.Int64),
			Druglikeness:     qed.Float64,
		}
	}
	if violations.Valid {
		v := int(violations.Int64)
		c.ViolationCount = &v
	}
	if passed.Valid {
		p := passed.Bool
		c.PassedScreening = &p
	}
	if score.Valid {
		sc := score.Float64
		c.Score = &sc
	}
	if errMsg.Valid {
		c.Error = errMsg.String
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
