// Package pipeline sequences one report run: fetch records from the
// source, fail fast when empty, filter, aggregate. It is the single
// point that logs failures in full and translates them for callers; the
// core's pure functions never log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FranksOps/quern/internal/history"
	"github.com/FranksOps/quern/internal/metrics"
	"github.com/FranksOps/quern/internal/searchconsole"
	"github.com/FranksOps/quern/internal/topquery"
)

// Source yields the raw per-(query,page) rows for one property and
// query. Errors surface to the caller, never swallowed.
type Source interface {
	Fetch(ctx context.Context, property string, q searchconsole.Query) ([]topquery.Record, error)
}

var _ Source = (*searchconsole.Client)(nil)

// Params is the configuration surface of one run. Dates are YYYY-MM-DD,
// already resolved from any preset.
type Params struct {
	Property       string
	StartDate      string
	EndDate        string
	Device         string
	Metric         topquery.Metric
	BrandTerms     []string
	DropZeroClicks bool
}

// Report is the outcome of a successful run.
type Report struct {
	Rows        []topquery.RankedRecord
	FetchedRows int
	Pages       int
	GeneratedAt time.Time
	Duration    time.Duration
}

// Pipeline runs reports. A nil history store disables persistence.
type Pipeline struct {
	source  Source
	history history.Store
	logger  *zap.Logger
}

// New creates a Pipeline.
func New(source Source, hist history.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{source: source, history: hist, logger: logger}
}

// Run executes Source → Filter → Aggregate for the given parameters.
// No partial results: any stage failure aborts the run. Run summaries
// and metrics are recorded best-effort and never fail a computed report.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Report, error) {
	start := time.Now()

	records, err := p.source.Fetch(ctx, params.Property, searchconsole.Query{
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Device:    params.Device,
	})
	if err != nil {
		p.logger.Error("record source failed",
			zap.String("property", params.Property),
			zap.Error(err),
		)
		p.finish(ctx, params, 0, nil, start, err)
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Warn("record source returned no rows",
			zap.String("property", params.Property),
			zap.String("start_date", params.StartDate),
			zap.String("end_date", params.EndDate),
		)
		p.finish(ctx, params, 0, nil, start, topquery.ErrEmptyInput)
		return nil, topquery.ErrEmptyInput
	}

	rows, err := topquery.Compute(records, params.Metric, topquery.FilterOptions{
		BrandTerms:     params.BrandTerms,
		DropZeroClicks: params.DropZeroClicks,
	})
	if err != nil {
		p.logger.Error("aggregation failed",
			zap.String("property", params.Property),
			zap.Int("fetched_rows", len(records)),
			zap.Error(err),
		)
		p.finish(ctx, params, len(records), nil, start, err)
		return nil, err
	}

	report := &Report{
		Rows:        rows,
		FetchedRows: len(records),
		Pages:       countPages(rows),
		GeneratedAt: time.Now(),
		Duration:    time.Since(start),
	}

	p.logger.Info("report computed",
		zap.String("property", params.Property),
		zap.String("metric", params.Metric.String()),
		zap.Int("fetched_rows", report.FetchedRows),
		zap.Int("reported_rows", len(rows)),
		zap.Int("pages", report.Pages),
		zap.Duration("duration", report.Duration),
	)

	p.finish(ctx, params, report.FetchedRows, report, start, nil)
	return report, nil
}

// finish records the run summary and metrics. Persistence failures are
// logged, never returned: they must not break a report that already
// computed.
func (p *Pipeline) finish(ctx context.Context, params Params, fetched int, report *Report, start time.Time, runErr error) {
	status := history.StatusOK
	errMsg := ""
	reported, pages := 0, 0

	switch {
	case runErr == nil:
		reported = len(report.Rows)
		pages = report.Pages
	case errors.Is(runErr, topquery.ErrEmptyInput):
		status = history.StatusEmpty
		errMsg = runErr.Error()
	default:
		status = history.StatusError
		errMsg = runErr.Error()
	}

	duration := time.Since(start)
	metrics.RecordReport(params.Metric.String(), status, reported, duration)

	if p.history == nil {
		return
	}

	run := &history.Run{
		ID:             uuid.NewString(),
		Property:       params.Property,
		StartDate:      params.StartDate,
		EndDate:        params.EndDate,
		Device:         params.Device,
		Metric:         params.Metric.String(),
		BrandTerms:     strings.Join(params.BrandTerms, ", "),
		DropZeroClicks: params.DropZeroClicks,
		FetchedRows:    fetched,
		ReportedRows:   reported,
		Pages:          pages,
		Status:         status,
		Error:          errMsg,
		Duration:       duration,
		CreatedAt:      time.Now(),
	}
	if err := p.history.Save(ctx, run); err != nil {
		p.logger.Warn("failed to save run summary",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

func countPages(rows []topquery.RankedRecord) int {
	pages := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		pages[r.Page] = struct{}{}
	}
	return len(pages)
}
