// Package sqlite implements the audit log on SQLite via the ncruces
// wasm-backed driver, so no cgo is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/odavlstudio/odavl/internal/types"
)

// SQLiteStorage implements the audit log interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// TrustEventRow is a stored learn-step record.
type TrustEventRow struct {
	ID        int64     `json:"id"`
	RecipeID  string    `json:"recipe_id"`
	Success   bool      `json:"success"`
	Trust     float64   `json:"trust"`
	Runs      int       `json:"runs"`
	CreatedAt time.Time `json:"created_at"`
}

// GuardianRunRow is a stored web audit result for one URL.
type GuardianRunRow struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	Accessibility int       `json:"accessibility"`
	Performance   int       `json:"performance"`
	Security      int       `json:"security"`
	Console       int       `json:"console"`
	IssueCount    int       `json:"issue_count"`
	ReportPath    string    `json:"report_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// New creates a new SQLite audit log backend
func New(path string) (*SQLiteStorage, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		// WAL mode for better concurrency between the engine and CLI reads
		dsn = "file:" + path + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// RecordCycle stores one cycle result. The full result, including metrics
// and gate details, is kept as JSON in the detail column; the indexed
// columns cover the common queries.
func (s *SQLiteStorage) RecordCycle(ctx context.Context, cycle *types.CycleResult) error {
	detail, err := json.Marshal(cycle)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles (id, recipe_id, phase, gates_passed, rolled_back, error, detail, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cycle.ID, cycle.RecipeID, string(cycle.Phase), cycle.GatesPassed, cycle.RolledBack,
		cycle.Error, string(detail), cycle.StartedAt, cycle.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}

// GetCycle returns a cycle by ID, or nil when not found.
func (s *SQLiteStorage) GetCycle(ctx context.Context, id string) (*types.CycleResult, error) {
	var detail string
	err := s.db.QueryRowContext(ctx, `SELECT detail FROM cycles WHERE id = ?`, id).Scan(&detail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}

	var cycle types.CycleResult
	if err := json.Unmarshal([]byte(detail), &cycle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle %s: %w", id, err)
	}
	return &cycle, nil
}

// ListCycles returns the most recent cycles, newest first.
func (s *SQLiteStorage) ListCycles(ctx context.Context, limit int) ([]*types.CycleResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail FROM cycles ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*types.CycleResult
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		var cycle types.CycleResult
		if err := json.Unmarshal([]byte(detail), &cycle); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cycle: %w", err)
		}
		cycles = append(cycles, &cycle)
	}
	return cycles, rows.Err()
}

// RecordTrustEvent stores one learn-step outcome.
func (s *SQLiteStorage) RecordTrustEvent(ctx context.Context, recipeID string, success bool, trust float64, runs int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_events (recipe_id, success, trust, runs, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, recipeID, success, trust, runs, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record trust event: %w", err)
	}
	return nil
}

// GetTrustEvents returns trust events for a recipe, newest first.
// An empty recipeID returns events across all recipes.
func (s *SQLiteStorage) GetTrustEvents(ctx context.Context, recipeID string, limit int) ([]*TrustEventRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, recipe_id, success, trust, runs, created_at FROM trust_events`
	args := []interface{}{}
	if recipeID != "" {
		query += ` WHERE recipe_id = ?`
		args = append(args, recipeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust events: %w", err)
	}
	defer rows.Close()

	var events []*TrustEventRow
	for rows.Next() {
		var ev TrustEventRow
		if err := rows.Scan(&ev.ID, &ev.RecipeID, &ev.Success, &ev.Trust, &ev.Runs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trust event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// RecordAttestation stores a verified-improvement record.
func (s *SQLiteStorage) RecordAttestation(ctx context.Context, att *types.Attestation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO attestations (id, recipe_id, hash, before_total, after_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, att.ID, att.RecipeID, att.Hash, att.BeforeTotal, att.AfterTotal, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record attestation: %w", err)
	}
	return nil
}

// ListAttestations returns the most recent attestations, newest first.
func (s *SQLiteStorage) ListAttestations(ctx context.Context, limit int) ([]*types.Attestation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipe_id, hash, before_total, after_total, created_at
		FROM attestations ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attestations: %w", err)
	}
	defer rows.Close()

	var atts []*types.Attestation
	for rows.Next() {
		var att types.Attestation
		if err := rows.Scan(&att.ID, &att.RecipeID, &att.Hash, &att.BeforeTotal, &att.AfterTotal, &att.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attestation: %w", err)
		}
		atts = append(atts, &att)
	}
	return atts, rows.Err()
}

// RecordGuardianRun stores a web audit result.
func (s *SQLiteStorage) RecordGuardianRun(ctx context.Context, run *GuardianRunRow) error {
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guardian_runs (url, accessibility, performance, security, console, issue_count, report_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.URL, run.Accessibility, run.Performance, run.Security, run.Console,
		run.IssueCount, run.ReportPath, created)
	if err != nil {
		return fmt.Errorf("failed to record guardian run: %w", err)
	}
	return nil
}

// ListGuardianRuns returns the most recent audit runs, newest first.
func (s *SQLiteStorage) ListGuardianRuns(ctx context.Context, limit int) ([]*GuardianRunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, accessibility, performance, security, console, issue_count, report_path, created_at
		FROM guardian_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list guardian runs: %w", err)
	}
	defer rows.Close()

	var runs []*GuardianRunRow
	for rows.Next() {
		var run GuardianRunRow
		if err := rows.Scan(&run.ID, &run.URL, &run.Accessibility, &run.Performance,
			&run.Security, &run.Console, &run.IssueCount, &run.ReportPath, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guardian run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
