package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8888)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	// Record a run to verify metrics format correctly
	RecordSourceRequest("sc-domain:example.com", "200")
	RecordSourceRows("sc-domain:example.com", 1200)
	RecordReport("clicks", "ok", 1200, 2*time.Second)
	RecordExport("csv")

	resp, err := http.Get("http://localhost:8888/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, "quern_source_requests_total") {
		t.Errorf("expected quern_source_requests_total metric")
	}

	if !strings.Contains(output, `quern_report_duration_seconds_bucket`) {
		t.Errorf("expected quern_report_duration_seconds metric")
	}

	if !strings.Contains(output, `quern_source_rows_fetched_total{property="sc-domain:example.com"}`) {
		t.Errorf("expected quern_source_rows_fetched_total metric for the property")
	}

	if !strings.Contains(output, `quern_exports_total{format="csv"}`) {
		t.Errorf("expected quern_exports_total metric for csv")
	}
}
