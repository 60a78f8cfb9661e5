package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/quern/internal/history"
)

func sampleRun(id, property, status string, createdAt time.Time) *history.Run {
	return &history.Run{
		ID:             id,
		Property:       property,
		StartDate:      "2026-08-01",
		EndDate:        "2026-08-25",
		Device:         "all",
		Metric:         "clicks",
		BrandTerms:     "acme, globex",
		DropZeroClicks: true,
		FetchedRows:    5000,
		ReportedRows:   4200,
		Pages:          310,
		Status:         status,
		Duration:       1500 * time.Millisecond,
		CreatedAt:      createdAt,
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	run := sampleRun("run-1", "sc-domain:example.com", history.StatusOK, now)
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	runs, err := s.Query(ctx, history.Filter{Property: "sc-domain:example.com"})
	if err != nil {
		t.Fatalf("Failed to query runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}

	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("Expected ID %s, got %s", run.ID, got.ID)
	}
	if got.Property != run.Property {
		t.Errorf("Expected Property %s, got %s", run.Property, got.Property)
	}
	if got.StartDate != run.StartDate || got.EndDate != run.EndDate {
		t.Errorf("Expected dates %s-%s, got %s-%s", run.StartDate, run.EndDate, got.StartDate, got.EndDate)
	}
	if got.Metric != run.Metric {
		t.Errorf("Expected Metric %s, got %s", run.Metric, got.Metric)
	}
	if got.BrandTerms != run.BrandTerms {
		t.Errorf("Expected BrandTerms %s, got %s", run.BrandTerms, got.BrandTerms)
	}
	if got.DropZeroClicks != run.DropZeroClicks {
		t.Errorf("Expected DropZeroClicks %v, got %v", run.DropZeroClicks, got.DropZeroClicks)
	}
	if got.FetchedRows != run.FetchedRows || got.ReportedRows != run.ReportedRows || got.Pages != run.Pages {
		t.Errorf("Expected counts %d/%d/%d, got %d/%d/%d",
			run.FetchedRows, run.ReportedRows, run.Pages,
			got.FetchedRows, got.ReportedRows, got.Pages)
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
}

func TestSQLiteStore_Filters(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Save(ctx, sampleRun("run-old", "https://a.example.com/", history.StatusOK, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := s.Save(ctx, sampleRun("run-err", "https://a.example.com/", history.StatusError, now.Add(-time.Minute))); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := s.Save(ctx, sampleRun("run-new", "https://b.example.com/", history.StatusOK, now)); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	byProperty, err := s.Query(ctx, history.Filter{Property: "https://a.example.com/"})
	if err != nil {
		t.Fatalf("Failed to query by property: %v", err)
	}
	if len(byProperty) != 2 {
		t.Errorf("Expected 2 runs for property a, got %d", len(byProperty))
	}

	byStatus, err := s.Query(ctx, history.Filter{Status: history.StatusError})
	if err != nil {
		t.Fatalf("Failed to query by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "run-err" {
		t.Errorf("Expected only run-err, got %+v", byStatus)
	}

	since, err := s.Query(ctx, history.Filter{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Failed to query by since: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("Expected 2 recent runs, got %d", len(since))
	}

	limited, err := s.Query(ctx, history.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Expected 1 run with limit, got %d", len(limited))
	}
	// Newest first.
	if limited[0].ID != "run-new" {
		t.Errorf("Expected run-new first, got %s", limited[0].ID)
	}
}
