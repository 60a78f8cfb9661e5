package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/quern/internal/history"
)

func TestPostgresStore(t *testing.T) {
	// Only run this test if QUERN_TEST_PG_DSN is set
	dsn := os.Getenv("QUERN_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres history store test: QUERN_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres store: %v", err)
	}
	defer s.Close()

	now := time.Now().UTC()

	run := &history.Run{
		ID:             "testpg-run-1",
		Property:       "https://example-pg.com/",
		StartDate:      "2026-08-01",
		EndDate:        "2026-08-25",
		Device:         "mobile",
		Metric:         "impressions",
		BrandTerms:     "acme",
		DropZeroClicks: false,
		FetchedRows:    1000,
		ReportedRows:   900,
		Pages:          70,
		Status:         history.StatusOK,
		Duration:       750 * time.Millisecond,
		CreatedAt:      now,
	}

	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	runs, err := s.Query(ctx, history.Filter{Property: "https://example-pg.com/"})
	if err != nil {
		t.Fatalf("Failed to query runs: %v", err)
	}

	// Can be more than 1 if tests run repeatedly, so we just check the most recent
	if len(runs) < 1 {
		t.Fatalf("Expected at least 1 run, got %d", len(runs))
	}

	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("Expected ID %s, got %s", run.ID, got.ID)
	}
	if got.Property != run.Property {
		t.Errorf("Expected Property %s, got %s", run.Property, got.Property)
	}
	if got.Metric != run.Metric {
		t.Errorf("Expected Metric %s, got %s", run.Metric, got.Metric)
	}
	if got.FetchedRows != run.FetchedRows {
		t.Errorf("Expected FetchedRows %d, got %d", run.FetchedRows, got.FetchedRows)
	}
	if got.Status != run.Status {
		t.Errorf("Expected Status %s, got %s", run.Status, got.Status)
	}
	if got.Duration.Milliseconds() != run.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", run.Duration, got.Duration)
	}
	if got.CreatedAt.Unix() != run.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", run.CreatedAt, got.CreatedAt)
	}

	// Test Since filter
	past := now.Add(-1 * time.Hour)
	sinceRuns, err := s.Query(ctx, history.Filter{Property: "https://example-pg.com/", Since: past})
	if err != nil {
		t.Fatalf("Failed to query runs with Since: %v", err)
	}
	if len(sinceRuns) < 1 {
		t.Fatalf("Expected at least 1 run, got %d", len(sinceRuns))
	}
}
