// Package ledger keeps an audit trail of review runs and their stage executions
// in a local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	KindReview = "review"
	KindSwarm  = "swarm"
)

// Run and stage statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one invocation of the review pipeline or the swarm.
type Run struct {
	ID          string
	Kind        string
	Scope       string
	Instance    string
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// StageExecution is one agent invocation within a run.
type StageExecution struct {
	ID         int64
	RunID      string
	Sequence   int
	Agent      string
	Stage      string
	Status     string
	Result     string
	ToolCalls  []string
	Warnings   []string
	Error      string
	StartedAt  time.Time
	DurationMs int64
}

// Ledger is a SQLite-backed run log.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path and applies the schema.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		instance TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT NOT NULL DEFAULT '',
		started_at_ms INTEGER NOT NULL,
		completed_at_ms INTEGER
	);

	CREATE TABLE IF NOT EXISTS stage_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		sequence_num INTEGER NOT NULL,
		agent TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		tool_calls TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT '',
		started_at_ms INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		UNIQUE(run_id, sequence_num)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ms);
	CREATE INDEX IF NOT EXISTS idx_stage_executions_run ON stage_executions(run_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// StartRun inserts a run in the running state.
func (l *Ledger) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, scope, instance, status, started_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Scope, run.Instance, run.Status, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun marks a run completed or failed.
func (l *Ledger) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at_ms = ? WHERE id = ?`,
		status, errMsg, time.Now().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordStage appends a stage execution to its run.
func (l *Ledger) RecordStage(ctx context.Context, exec *StageExecution) error {
	toolCalls, err := json.Marshal(nonNil(exec.ToolCalls))
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(nonNil(exec.Warnings))
	if err != nil {
		return err
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO stage_executions (run_id, sequence_num, agent, stage, status, result, tool_calls, warnings, error, started_at_ms, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.RunID, exec.Sequence, exec.Agent, exec.Stage, exec.Status, exec.Result,
		string(toolCalls), string(warnings), exec.Error, exec.StartedAt.UnixMilli(), exec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record stage %s of run %s: %w", exec.Stage, exec.RunID, err)
	}
	exec.ID, err = res.LastInsertId()
	return err
}

// GetRun returns one run; sql.ErrNoRows if it does not exist.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, kind, scope, instance, status, error, started_at_ms, completed_at_ms FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the newest runs first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, scope, instance, status, error, started_at_ms, completed_at_ms
		 FROM runs ORDER BY started_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StagesForRun returns a run's stage executions in sequence order.
func (l *Ledger) StagesForRun(ctx context.Context, runID string) ([]*StageExecution, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, sequence_num, agent, stage, status, result, tool_calls, warnings, error, started_at_ms, duration_ms
		 FROM stage_executions WHERE run_id = ? ORDER BY sequence_num`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*StageExecution
	for rows.Next() {
		var exec StageExecution
		var toolCalls, warnings string
		var startedAtMs int64
		if err := rows.Scan(&exec.ID, &exec.RunID, &exec.Sequence, &exec.Agent, &exec.Stage, &exec.Status,
			&exec.Result, &toolCalls, &warnings, &exec.Error, &startedAtMs, &exec.DurationMs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(toolCalls), &exec.ToolCalls); err != nil {
			return nil, fmt.Errorf("corrupt tool_calls for stage execution %d: %w", exec.ID, err)
		}
		if err := json.Unmarshal([]byte(warnings), &exec.Warnings); err != nil {
			return nil, fmt.Errorf("corrupt warnings for stage execution %d: %w", exec.ID, err)
		}
		exec.StartedAt = time.UnixMilli(startedAtMs)
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAtMs int64
	var completedAtMs sql.NullInt64
	if err := row.Scan(&run.ID, &run.Kind, &run.Scope, &run.Instance, &run.Status, &run.Error, &startedAtMs, &completedAtMs); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedAtMs)
	if completedAtMs.Valid {
		t := time.UnixMilli(completedAtMs.Int64)
		run.CompletedAt = &t
	}
	return &run, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
