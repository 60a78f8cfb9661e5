// Package server exposes the report tool over HTTP: a small form UI,
// the Google OAuth endpoints, and a JSON API for reports and exports.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/quern/internal/auth"
	"github.com/FranksOps/quern/internal/config"
	"github.com/FranksOps/quern/internal/history"
	"github.com/FranksOps/quern/internal/metrics"
	"github.com/FranksOps/quern/internal/pipeline"
	"github.com/FranksOps/quern/internal/searchconsole"
	"github.com/FranksOps/quern/internal/session"
)

//go:embed index.html
var indexHTML embed.FS

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 5 * time.Minute // exports re-fetch from the API
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

// Source is what one authorized session's credentials can do: fetch
// analytics rows and enumerate properties.
type Source interface {
	pipeline.Source
	ListSites(ctx context.Context) ([]searchconsole.Site, error)
	Close()
}

// SourceFactory builds a Source for a session's token. Tests substitute
// fakes here; production wires the Search Console client.
type SourceFactory func(ts oauth2.TokenSource) (Source, error)

// NewSourceFactory returns the production factory backed by the Search
// Console API.
func NewSourceFactory(cfg config.Source, logger *zap.Logger) SourceFactory {
	return func(ts oauth2.TokenSource) (Source, error) {
		return searchconsole.New(searchconsole.Config{
			TokenSource:       ts,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxRetries:        cfg.MaxRetries,
			RowLimit:          cfg.RowLimit,
			MaxRows:           cfg.MaxRows,
			Logger:            logger,
		})
	}
}

// Server ties the HTTP surface together.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	flow     *auth.Flow
	sessions *session.Store
	codec    *session.CookieCodec
	sources  SourceFactory
	history  history.Store
	engine   *gin.Engine
}

// New assembles the server. A nil history store disables run history.
func New(cfg *config.Config, logger *zap.Logger, flow *auth.Flow, sources SourceFactory, hist history.Store) *Server {
	if !cfg.Service.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		flow:     flow,
		sessions: session.NewStore(cfg.Session.TTL),
		codec:    session.NewCookieCodec(cfg.Session.CookieName, cfg.Session.Secret, cfg.Session.TTL),
		sources:  sources,
		history:  hist,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/", s.handleIndex)

	r.GET("/auth/login", s.handleLogin)
	r.GET("/auth/callback", s.withSession(), s.handleCallback)
	r.POST("/auth/logout", s.withSession(), s.handleLogout)

	api := r.Group("/api", s.withSession())
	{
		api.GET("/me", s.handleMe)
		authorized := api.Group("/", s.requireAuthorized())
		{
			authorized.GET("/sites", s.handleSites)
			authorized.POST("/report", s.handleReport)
			authorized.GET("/export", s.handleExport)
		}
		api.GET("/history", s.handleHistory)
	}

	return r
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves HTTP until the context is canceled, alongside the metrics
// listener and the session janitor. Shutdown drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Service.Port),
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	var metricsSrv *metrics.Server
	if s.cfg.Metrics.Enabled {
		metricsSrv = metrics.Start(s.cfg.Metrics.Port)
		s.logger.Info("metrics listener started", zap.Int("port", s.cfg.Metrics.Port))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server starting",
			zap.Int("port", s.cfg.Service.Port),
			zap.String("base_url", s.cfg.Service.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.sessions.Janitor(gctx, janitorInterval)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			if merr := metricsSrv.Stop(shutdownCtx); err == nil {
				err = merr
			}
		}
		return err
	})

	return g.Wait()
}

// requestLogger logs one line per request, zap-structured.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
