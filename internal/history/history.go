// Package history archives run summaries — parameters, row counts,
// outcome — never the records themselves. It observes completed runs
// and has no feedback into report computation.
package history

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Run is the persisted summary of one pipeline invocation.
type Run struct {
	ID             string
	Property       string
	StartDate      string
	EndDate        string
	Device         string
	Metric         string
	BrandTerms     string
	DropZeroClicks bool
	FetchedRows    int
	ReportedRows   int
	Pages          int
	Status         string
	Error          string // non-empty when Status is error
	Duration       time.Duration
	CreatedAt      time.Time
}

// Filter allows querying for specific runs.
type Filter struct {
	Property string
	Status   string
	Since    time.Time
	Limit    int
}

// Store defines the interface for persisting and querying run summaries.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Query(ctx context.Context, filter Filter) ([]*Run, error)
	Close() error
}
