// Package postgres is the history backend for shared deployments.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/quern/internal/history"
)

// ensure postgresStore implements history.Store
var _ history.Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	property TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	device TEXT NOT NULL,
	metric TEXT NOT NULL,
	brand_terms TEXT,
	drop_zero_clicks BOOLEAN NOT NULL,
	fetched_rows INTEGER NOT NULL,
	reported_rows INTEGER NOT NULL,
	pages INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// New creates a new Postgres-backed history.Store.
func New(ctx context.Context, dsn string) (history.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres history store: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres history store: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres history schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Save(ctx context.Context, run *history.Run) error {
	query := `
	INSERT INTO runs (
		id, property, start_date, end_date, device, metric, brand_terms,
		drop_zero_clicks, fetched_rows, reported_rows, pages, status, error,
		duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		run.ID,
		run.Property,
		run.StartDate,
		run.EndDate,
		run.Device,
		run.Metric,
		run.BrandTerms,
		run.DropZeroClicks,
		run.FetchedRows,
		run.ReportedRows,
		run.Pages,
		run.Status,
		run.Error,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *postgresStore) Query(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	query := `SELECT id, property, start_date, end_date, device, metric, brand_terms,
	drop_zero_clicks, fetched_rows, reported_rows, pages, status, error,
	duration_ms, created_at FROM runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Property != "" {
		query += fmt.Sprintf(` AND property = $%d`, paramCount)
		args = append(args, filter.Property)
		paramCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, paramCount)
		args = append(args, filter.Status)
		paramCount++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*history.Run
	for rows.Next() {
		var r history.Run
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Property, &r.StartDate, &r.EndDate, &r.Device, &r.Metric,
			&r.BrandTerms, &r.DropZeroClicks, &r.FetchedRows, &r.ReportedRows,
			&r.Pages, &r.Status, &r.Error, &durationMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
