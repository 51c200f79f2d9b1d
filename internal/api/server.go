// Package api serves the operational HTTP surface of the sync service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/catalogsync/internal/api/handler"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/jon4hz/catalogsync/internal/metrics"
	"github.com/jon4hz/catalogsync/internal/monitor"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	handler   *handler.Handler
}

func New(cfg *config.Config, e *engine.Engine, mon *monitor.Monitor, db *database.Client) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if log.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		handler:   handler.New(e, mon, db),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery())
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	s.ginEngine.GET("/healthz", s.handler.Health)

	if s.cfg.Monitoring.EnableMetrics {
		s.ginEngine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := s.ginEngine.Group("/api")
	api.GET("/status", s.handler.Status)
	api.POST("/run", s.handler.TriggerRun)
	api.GET("/runs", s.handler.ListRuns)
	api.GET("/runs/:id", s.handler.GetRun)
	api.GET("/stats", s.handler.Statistics)
	api.GET("/errors", s.handler.ErrorSummary)
	api.GET("/kpis/:category", s.handler.KPIs)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until ctx is canceled and then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
