// Package sqlite is the default history backend: a single-file,
// CGo-free store suitable for self-hosted deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/quern/internal/history"
)

// ensure sqliteStore implements history.Store
var _ history.Store = (*sqliteStore)(nil)

type sqliteStore struct {
	db *sql.DB
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
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// New creates a new SQLite-backed history.Store.
func New(dsn string) (history.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite history schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(ctx context.Context, run *history.Run) error {
	query := `
	INSERT INTO runs (
		id, property, start_date, end_date, device, metric, brand_terms,
		drop_zero_clicks, fetched_rows, reported_rows, pages, status, error,
		duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
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

func (s *sqliteStore) Query(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	query := `SELECT id, property, start_date, end_date, device, metric, brand_terms,
	drop_zero_clicks, fetched_rows, reported_rows, pages, status, error,
	duration_ms, created_at FROM runs WHERE 1=1`
	args := []any{}

	if filter.Property != "" {
		query += ` AND property = ?`
		args = append(args, filter.Property)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
