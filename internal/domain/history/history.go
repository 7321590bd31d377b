// Package history persists extraction runs to Postgres so consecutive
// statements can be compared. The whole feature is optional: nothing here
// runs unless a database URL is configured.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run is one stored extraction run. Snapshot holds the hierarchical JSON
// document exactly as the exporter writes it to disk.
type Run struct {
	ID              uuid.UUID
	StartedAt       time.Time
	FinishedAt      time.Time
	SourceFile      string
	Extractor       string
	RecordCount     int
	CompleteCount   int
	IncompleteCount int
	GrossTotalCents int64
	NetTotalCents   int64
	Snapshot        []byte
	CreatedAt       time.Time
}

// DB is the slice of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores and retrieves extraction runs.
type Repository struct {
	db     DB
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// NewRepository creates a repository over an existing connection.
func NewRepository(db DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Close releases the pool when the repository owns one.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// SaveRun inserts one run row.
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO extraction_runs (
			id, started_at, finished_at, source_file, extractor,
			record_count, complete_count, incomplete_count,
			gross_total_cents, net_total_cents, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.SourceFile, run.Extractor,
		run.RecordCount, run.CompleteCount, run.IncompleteCount,
		run.GrossTotalCents, run.NetTotalCents, run.Snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	r.logger.Info("run persisted", "id", run.ID, "records", run.RecordCount)
	return nil
}

// GetRun retrieves one run with its snapshot document. Returns nil, nil
// when the id is unknown.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, started_at, finished_at, source_file, extractor,
			record_count, complete_count, incomplete_count,
			gross_total_cents, net_total_cents, snapshot, created_at
		FROM extraction_runs
		WHERE id = $1
	`

	var run Run
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.SourceFile, &run.Extractor,
		&run.RecordCount, &run.CompleteCount, &run.IncompleteCount,
		&run.GrossTotalCents, &run.NetTotalCents, &run.Snapshot, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, without the snapshot
// payload. Limit defaults to 20.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, started_at, finished_at, source_file, extractor,
			record_count, complete_count, incomplete_count,
			gross_total_cents, net_total_cents, created_at
		FROM extraction_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &run.SourceFile, &run.Extractor,
			&run.RecordCount, &run.CompleteCount, &run.IncompleteCount,
			&run.GrossTotalCents, &run.NetTotalCents, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
