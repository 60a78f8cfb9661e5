// Package cmd implements the quern command-line interface: the web
// service plus one-shot commands for scripted report runs.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FranksOps/quern/internal/config"
	"github.com/FranksOps/quern/internal/history"
	"github.com/FranksOps/quern/internal/history/postgres"
	"github.com/FranksOps/quern/internal/history/sqlite"
	"github.com/FranksOps/quern/internal/logging"
)

const version = "1.0.0"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "quern",
		Short: "Search Console top-query reports",
		Long: `Quern re-aggregates Google Search Console data so every page is
represented by its strongest query, with the page's full query set
grouped beneath it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so config env overrides see it.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quern version %s\n", version)
		},
	})

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sitesCmd)
}

// loadConfig loads the config file and applies the --debug flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
}

// openHistory opens the configured run-history backend. The none
// backend yields a nil store, which disables persistence.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "sqlite":
		return sqlite.New(cfg.History.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.History.DSN)
	default:
		return nil, nil
	}
}
