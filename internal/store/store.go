// Package store handles SQLite persistence of run history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/labelmerge/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			output_path TEXT NOT NULL,
			total INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_sources (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			path TEXT NOT NULL,
			dataset TEXT NOT NULL,
			status TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS run_counts (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, kind, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_counts_kind ON run_counts(kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a completed run with its sources and frequency tables.
// A run without an ID is assigned a new UUID. The stored ID is returned.
func (s *Store) InsertRun(ctx context.Context, run model.RunRecord) (id string, err error) {
	id = run.ID
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, ended_at, output_path, total) VALUES (?, ?, ?, ?, ?)`,
		id,
		run.StartedAt.Format(time.RFC3339Nano),
		run.EndedAt.Format(time.RFC3339Nano),
		run.OutputPath,
		run.Total,
	); err != nil {
		return "", err
	}

	for i, src := range run.Sources {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_sources (run_id, position, path, dataset, status, accepted, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, src.Path, src.Dataset, string(src.Status), src.Accepted, src.Message,
		); err != nil {
			return "", err
		}
	}

	if len(run.Counts) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO run_counts (run_id, kind, key, count) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for kind, table := range run.Counts {
			for _, key := range table.Keys() {
				if _, err = stmt.ExecContext(ctx, id, kind, key, table[key]); err != nil {
					return "", err
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns recorded runs oldest first. A positive last keeps only the
// most recent runs.
func (s *Store) ListRuns(ctx context.Context, last int) ([]model.RunRecord, error) {
	query := `SELECT id, started_at, ended_at, output_path, total FROM runs ORDER BY ended_at ASC, id ASC`
	var args []any
	if last > 0 {
		query = `SELECT id, started_at, ended_at, output_path, total FROM (
			SELECT * FROM runs ORDER BY ended_at DESC, id DESC LIMIT ?
		) ORDER BY ended_at ASC, id ASC`
		args = append(args, last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	for rows.Next() {
		var run model.RunRecord
		var startedAt, endedAt string
		if err := rows.Scan(&run.ID, &startedAt, &endedAt, &run.OutputPath, &run.Total); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListSources returns the sources of a run in configuration order.
func (s *Store) ListSources(ctx context.Context, runID string) ([]model.RunSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, dataset, status, accepted, message FROM run_sources WHERE run_id = ? ORDER BY position ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.RunSource
	for rows.Next() {
		var src model.RunSource
		var status string
		if err := rows.Scan(&src.Path, &src.Dataset, &status, &src.Accepted, &src.Message); err != nil {
			return nil, err
		}
		src.Status = model.SourceStatus(status)
		result = append(result, src)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListCounts returns the frequency table of the given kind for each run.
func (s *Store) ListCounts(ctx context.Context, runIDs []string, kind string) (map[string]model.FrequencyTable, error) {
	if len(runIDs) == 0 {
		return map[string]model.FrequencyTable{}, nil
	}
	placeholders := make([]string, len(runIDs))
	args := make([]any, 0, len(runIDs)+1)
	args = append(args, kind)
	for i, id := range runIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT run_id, key, count FROM run_counts
		WHERE kind = ? AND run_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string]model.FrequencyTable{}
	for rows.Next() {
		var c model.RunCount
		if err := rows.Scan(&c.RunID, &c.Key, &c.Count); err != nil {
			return nil, err
		}
		if _, ok := result[c.RunID]; !ok {
			result[c.RunID] = model.FrequencyTable{}
		}
		result[c.RunID][c.Key] = c.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
