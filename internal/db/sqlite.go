package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/david/b2-radar/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run history in a local SQLite file for single-node setups.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent refreshes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
  run_id TEXT PRIMARY KEY,
  source_id TEXT NOT NULL,
  status TEXT NOT NULL,
  rows_read INTEGER NOT NULL DEFAULT 0,
  rows_kept INTEGER NOT NULL DEFAULT 0,
  blank_rows INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  without_identifier INTEGER NOT NULL DEFAULT 0,
  without_open_date INTEGER NOT NULL DEFAULT 0,
  timeline_rows INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_source_started ON pipeline_runs (source_id, started_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create pipeline_runs table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func (s *SQLiteStore) RecordRun(ctx context.Context, run models.PipelineRun) error {
	const stmt = `
INSERT INTO pipeline_runs (` + runCols + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  status=excluded.status,
  rows_read=excluded.rows_read,
  rows_kept=excluded.rows_kept,
  blank_rows=excluded.blank_rows,
  duplicates=excluded.duplicates,
  without_identifier=excluded.without_identifier,
  without_open_date=excluded.without_open_date,
  timeline_rows=excluded.timeline_rows,
  error=excluded.error,
  completed_at=excluded.completed_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		run.RunID, run.SourceID, run.Status,
		run.Stats.RowsRead, run.Stats.RowsKept, run.Stats.BlankRows, run.Stats.Duplicates,
		run.Stats.WithoutIdentifier, run.Stats.WithoutOpenDate, run.Stats.TimelineRows,
		run.Error,
		run.StartedAt.UTC().Format(sqliteTimeLayout),
		run.CompletedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert pipeline run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, sourceID string, limit int) ([]models.PipelineRun, error) {
	limit = clampLimit(limit)

	query := `SELECT ` + runCols + ` FROM pipeline_runs`
	args := []interface{}{}
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []models.PipelineRun{}
	for rows.Next() {
		var started, completed string
		var r models.PipelineRun
		if err := rows.Scan(
			&r.RunID, &r.SourceID, &r.Status,
			&r.Stats.RowsRead, &r.Stats.RowsKept, &r.Stats.BlankRows, &r.Stats.Duplicates,
			&r.Stats.WithoutIdentifier, &r.Stats.WithoutOpenDate, &r.Stats.TimelineRows,
			&r.Error, &started, &completed,
		); err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		if r.StartedAt, err = time.Parse(sqliteTimeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.CompletedAt, err = time.Parse(sqliteTimeLayout, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
