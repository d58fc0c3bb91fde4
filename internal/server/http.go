// Package server provides the HTTP surface over the crate explorer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/git-pkgs/crateview"
	"github.com/git-pkgs/crateview/internal/github"
)

// Config holds server configuration options.
type Config struct {
	MetricsEnabled bool
	Logger         *slog.Logger
}

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates a new HTTP server around the explorer. The GitHub client is
// optional; without it the /api/github routes answer 404.
func New(explorer *crateview.Explorer, gh *github.Client, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(explorer, gh)

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metrics := newMetrics(explorer.CacheStats)
		e.Use(metrics.middleware())
		e.GET("/metrics", echo.WrapHandler(metrics.handler()))
	}

	api := e.Group("/api")
	api.GET("/crates/:name", handler.CrateInfo)
	api.GET("/crates/:name/:version/directory", handler.Directory)
	api.GET("/crates/:name/:version/directory/*", handler.Directory)
	api.GET("/crates/:name/:version/file/*", handler.File)
	api.GET("/crates/:name/:version/items", handler.Items)
	api.GET("/crates/:name/:version/lines", handler.Lines)
	api.DELETE("/cache/:name/:version", handler.PurgeCrate)
	api.DELETE("/cache", handler.ClearCache)

	api.GET("/github/:owner/:repo/directory", handler.GithubDirectory)
	api.GET("/github/:owner/:repo/directory/*", handler.GithubDirectory)
	api.GET("/github/:owner/:repo/file/*", handler.GithubFile)
	api.GET("/github/:owner/:repo/issues", handler.GithubIssues)
	api.GET("/github/:owner/:repo/issues/:number/timeline", handler.GithubIssueTimeline)

	return &Server{echo: e, handler: handler}
}

// requestLogger emits one structured log line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

// Start begins listening on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
