package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FranksOps/quern/internal/auth"
	"github.com/FranksOps/quern/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report web service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateService(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hist, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
		logger.Info("run history enabled", zap.String("backend", cfg.History.Backend))
	}

	flow := auth.NewFlow(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	srv := server.New(cfg, logger, flow, server.NewSourceFactory(cfg.Source, logger), hist)

	return srv.Run(ctx)
}
