// Package http serves the document index over a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/logging"
)

// Documents is the part of docindex.Service the server exposes.
type Documents interface {
	AddOrUpdate(ctx context.Context, req docindex.AddRequest) (*docindex.AddResult, error)
	Search(ctx context.Context, req docindex.SearchRequest) ([]docindex.SearchResult, error)
	CleanupExpired(ctx context.Context) (int, error)
	Statistics(ctx context.Context) (*docindex.Statistics, error)
}

// Server provides HTTP endpoints for the document index.
type Server struct {
	echo    *echo.Echo
	docs    Documents
	locks   *ingest.KeyedMutex
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds each API call. Zero disables it.
	RequestTimeout time.Duration
	// BodyLimit is an echo size string such as "16M". Empty disables it.
	BodyLimit string
}

// Option configures a Server.
type Option func(*Server)

// WithLocks shares per-source locks with other ingestion surfaces.
func WithLocks(l *ingest.KeyedMutex) Option {
	return func(s *Server) { s.locks = l }
}

// WithMetrics records request metrics.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(docs Documents, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if docs == nil {
		return nil, fmt.Errorf("document index cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		docs:   docs,
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = ingest.NewKeyedMutex()
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let echo write the response so the logged status is final.
			c.Error(err)
		}
		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// withTimeout bounds the request context of API handlers.
func (s *Server) withTimeout(next echo.HandlerFunc) echo.HandlerFunc {
	if s.config.RequestTimeout <= 0 {
		return next
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.RequestTimeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.withTimeout)
	v1.POST("/documents", s.handleAddDocument)
	v1.POST("/search", s.handleSearch)
	v1.POST("/maintenance/cleanup", s.handleCleanup)
	v1.GET("/stats", s.handleStats)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
