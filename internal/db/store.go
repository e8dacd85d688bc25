package db

import (
	"context"
	"fmt"

	"github.com/david/b2-radar/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// Store persists pipeline run history in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const runCols = `run_id, source_id, status, rows_read, rows_kept, blank_rows, duplicates,
	without_identifier, without_open_date, timeline_rows, error, started_at, completed_at`

// RecordRun inserts or replaces a run record.
func (s *Store) RecordRun(ctx context.Context, run models.PipelineRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (`+runCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			rows_read = EXCLUDED.rows_read,
			rows_kept = EXCLUDED.rows_kept,
			blank_rows = EXCLUDED.blank_rows,
			duplicates = EXCLUDED.duplicates,
			without_identifier = EXCLUDED.without_identifier,
			without_open_date = EXCLUDED.without_open_date,
			timeline_rows = EXCLUDED.timeline_rows,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at`,
		run.RunID, run.SourceID, run.Status,
		run.Stats.RowsRead, run.Stats.RowsKept, run.Stats.BlankRows, run.Stats.Duplicates,
		run.Stats.WithoutIdentifier, run.Stats.WithoutOpenDate, run.Stats.TimelineRows,
		run.Error, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty sourceID lists every source.
func (s *Store) ListRuns(ctx context.Context, sourceID string, limit int) ([]models.PipelineRun, error) {
	limit = clampLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if sourceID == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+runCols+` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+runCols+` FROM pipeline_runs WHERE source_id = $1 ORDER BY started_at DESC LIMIT $2`, sourceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []models.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(dest ...interface{}) error) (models.PipelineRun, error) {
	var r models.PipelineRun
	err := scan(
		&r.RunID, &r.SourceID, &r.Status,
		&r.Stats.RowsRead, &r.Stats.RowsKept, &r.Stats.BlankRows, &r.Stats.Duplicates,
		&r.Stats.WithoutIdentifier, &r.Stats.WithoutOpenDate, &r.Stats.TimelineRows,
		&r.Error, &r.StartedAt, &r.CompletedAt,
	)
	return r, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRunLimit
	}
	if limit > maxRunLimit {
		return maxRunLimit
	}
	return limit
}
