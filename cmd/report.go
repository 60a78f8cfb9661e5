package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FranksOps/quern/internal/auth"
	"github.com/FranksOps/quern/internal/config"
	"github.com/FranksOps/quern/internal/export"
	"github.com/FranksOps/quern/internal/pipeline"
	"github.com/FranksOps/quern/internal/searchconsole"
	"github.com/FranksOps/quern/internal/topquery"
)

var reportFlags struct {
	property       string
	dateRange      string
	startDate      string
	endDate        string
	device         string
	metric         string
	brandTerms     string
	dropZeroClicks bool
	format         string
	output         string
	tokenFile      string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run one report and write it to a file or stdout",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.property, "property", "", "Search Console property (required)")
	f.StringVar(&reportFlags.dateRange, "range", "last_7_days", "date range preset, or custom")
	f.StringVar(&reportFlags.startDate, "start", "", "start date YYYY-MM-DD (with --range custom)")
	f.StringVar(&reportFlags.endDate, "end", "", "end date YYYY-MM-DD (with --range custom)")
	f.StringVar(&reportFlags.device, "device", "all", "device filter: all, desktop, mobile or tablet")
	f.StringVar(&reportFlags.metric, "metric", "clicks", "ranking metric: clicks or impressions")
	f.StringVar(&reportFlags.brandTerms, "brand-terms", "", "comma-separated brand terms to exclude")
	f.BoolVar(&reportFlags.dropZeroClicks, "drop-zero-clicks", false, "drop queries with zero clicks")
	f.StringVar(&reportFlags.format, "format", "csv", "output format: csv, xlsx or json")
	f.StringVar(&reportFlags.output, "output", "", "output path; - for stdout, empty for a generated name")
	f.StringVar(&reportFlags.tokenFile, "token-file", defaultTokenFile, "token file from quern login")
	_ = reportCmd.MarkFlagRequired("property")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	format, err := export.ParseFormat(reportFlags.format)
	if err != nil {
		return err
	}
	start, end, err := pipeline.ResolveDateRange(reportFlags.dateRange, reportFlags.startDate, reportFlags.endDate, time.Now())
	if err != nil {
		return err
	}
	device, err := pipeline.ParseDevice(reportFlags.device)
	if err != nil {
		return err
	}
	metric, err := topquery.ParseMetric(reportFlags.metric)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := newClient(ctx, cfg, reportFlags.tokenFile, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	hist, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	report, err := pipeline.New(client, hist, logger).Run(ctx, pipeline.Params{
		Property:       reportFlags.property,
		StartDate:      start,
		EndDate:        end,
		Device:         device,
		Metric:         metric,
		BrandTerms:     topquery.ParseTerms(reportFlags.brandTerms),
		DropZeroClicks: reportFlags.dropZeroClicks,
	})
	if err != nil {
		return err
	}

	if reportFlags.output == "-" {
		return export.Write(os.Stdout, format, report.Rows)
	}

	path := reportFlags.output
	if path == "" {
		path = export.Filename(reportFlags.property, format, time.Now())
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file %s: %w", path, err)
	}
	defer out.Close()

	if err := export.Write(out, format, report.Rows); err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows (%d pages, %s to %s) to %s\n",
		len(report.Rows), report.Pages, start, end, path)
	return nil
}

// newClient builds a Search Console client from a saved token.
func newClient(ctx context.Context, cfg *config.Config, tokenFile string, logger *zap.Logger) (*searchconsole.Client, error) {
	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	// The flow refreshes expired tokens with the client credentials.
	flow := auth.NewFlow(cfg.Google.ClientID, cfg.Google.ClientSecret, "")
	return searchconsole.New(searchconsole.Config{
		TokenSource:       flow.TokenSource(ctx, tok),
		Timeout:           cfg.Source.Timeout,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		MaxRetries:        cfg.Source.MaxRetries,
		RowLimit:          cfg.Source.RowLimit,
		MaxRows:           cfg.Source.MaxRows,
		Logger:            logger,
	})
}
