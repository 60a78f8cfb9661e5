// Package metrics exposes Prometheus instrumentation for the report
// pipeline and its Search Console source.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quern_source_requests_total",
			Help: "Total number of Search Console API requests by outcome",
		},
		[]string{"property", "status"},
	)

	SourceRowsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quern_source_rows_fetched_total",
			Help: "Total rows fetched from the Search Console API",
		},
		[]string{"property"},
	)

	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quern_reports_total",
			Help: "Total pipeline runs by ranking metric and outcome",
		},
		[]string{"metric", "status"},
	)

	ReportRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quern_report_rows",
			Help:    "Ranked rows produced per report",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		},
	)

	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quern_report_duration_seconds",
			Help:    "End-to-end report duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quern_exports_total",
			Help: "Total report downloads by format",
		},
		[]string{"format"},
	)
)

// RecordSourceRequest counts one API call against a property.
func RecordSourceRequest(property, status string) {
	SourceRequestsTotal.WithLabelValues(property, status).Inc()
}

// RecordSourceRows counts rows returned by the API for a property.
func RecordSourceRows(property string, rows int) {
	SourceRowsFetchedTotal.WithLabelValues(property).Add(float64(rows))
}

// RecordReport updates the pipeline metrics for one completed run.
func RecordReport(metric, status string, rows int, duration time.Duration) {
	ReportsTotal.WithLabelValues(metric, status).Inc()
	if status == "ok" {
		ReportRows.Observe(float64(rows))
		ReportDuration.Observe(duration.Seconds())
	}
}

// RecordExport counts one download by format.
func RecordExport(format string) {
	ExportsTotal.WithLabelValues(format).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
