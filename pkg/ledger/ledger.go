// Package ledger records simulate and invert runs in a SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so stored times sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run kinds
const (
	KindSimulate = "simulate"
	KindInvert   = "invert"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded invocation
type Run struct {
	ID         string
	Kind       string
	Scene      string
	Config     json.RawMessage
	Status     string
	Error      string
	FinalLoss  *float64
	Outputs    []string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Iteration is one recorded fitting iteration
type Iteration struct {
	Iteration      int
	Seed           int64
	Loss           float64
	ParameterError float64
	Reflectance    []float64
	Transmittance  []float64
	Duration       time.Duration
}

// Ledger is the run database
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path
func (l *Ledger) Path() string {
	return l.path
}

// StartRun records a new running run and returns its id. config is stored as JSON.
func (l *Ledger) StartRun(ctx context.Context, kind, scene string, config any) (string, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to encode run config: %w", err)
	}

	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, scene, config, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, scene, string(data), StatusRunning, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// RecordIteration stores one fitting iteration of a run
func (l *Ledger) RecordIteration(ctx context.Context, runID string, it Iteration) error {
	refl, err := json.Marshal(it.Reflectance)
	if err != nil {
		return err
	}
	trans, err := json.Marshal(it.Transmittance)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO iterations (run_id, iteration, seed, loss, parameter_error, reflectance, transmittance, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, it.Iteration, it.Seed, it.Loss, it.ParameterError, string(refl), string(trans),
		float64(it.Duration)/float64(time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to record iteration %d: %w", it.Iteration, err)
	}
	return nil
}

// FinishRun marks a run completed, or failed when runErr is not nil.
// finalLoss may be nil for runs without a loss.
func (l *Ledger) FinishRun(ctx context.Context, runID string, runErr error, finalLoss *float64, outputs []string) error {
	status, message := StatusCompleted, ""
	if runErr != nil {
		status, message = StatusFailed, runErr.Error()
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return err
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, final_loss = ?, outputs = ?, finished_at = ? WHERE id = ?`,
		status, nullString(message), finalLoss, string(data), formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs first, at most limit (0 for all)
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, kind, scene, config, status, error, final_loss, outputs, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run. A unique id prefix is accepted.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, scene, config, status, error, final_loss, outputs, started_at, finished_at
		 FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Iterations returns the recorded iterations of a run in order
func (l *Ledger) Iterations(ctx context.Context, runID string) ([]Iteration, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT iteration, seed, loss, parameter_error, reflectance, transmittance, duration_ms
		 FROM iterations WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var refl, trans string
		var durationMS float64
		if err := rows.Scan(&it.Iteration, &it.Seed, &it.Loss, &it.ParameterError, &refl, &trans, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if err := json.Unmarshal([]byte(refl), &it.Reflectance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(trans), &it.Transmittance); err != nil {
			return nil, err
		}
		it.Duration = time.Duration(durationMS * float64(time.Millisecond))
		out = append(out, it)
	}
	return out, rows.Err()
}

// scanRun reads one row of the runs table
func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var config, startedAt string
	var errText, outputs, finishedAt sql.NullString
	var finalLoss sql.NullFloat64

	if err := rows.Scan(&run.ID, &run.Kind, &run.Scene, &config, &run.Status, &errText, &finalLoss, &outputs, &startedAt, &finishedAt); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Config = json.RawMessage(config)
	run.Error = errText.String
	if finalLoss.Valid {
		v := finalLoss.Float64
		run.FinalLoss = &v
	}
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &run.Outputs); err != nil {
			return nil, fmt.Errorf("failed to decode outputs of run %s: %w", run.ID, err)
		}
	}

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("invalid start time of run %s: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finish time of run %s: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
