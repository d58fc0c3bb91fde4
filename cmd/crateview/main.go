// Package main is the entry point for the crateview server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/git-pkgs/crateview"
	"github.com/git-pkgs/crateview/config"
	"github.com/git-pkgs/crateview/fetch"
	"github.com/git-pkgs/crateview/internal/archive"
	"github.com/git-pkgs/crateview/internal/github"
	"github.com/git-pkgs/crateview/internal/server"
	"github.com/git-pkgs/crateview/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Format)
	slog.SetDefault(logger)

	slog.Info("starting crateview",
		"version", version.Version,
		"commit", version.Commit,
		"addr", cfg.Server.Addr,
	)

	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBodyBytes(cfg.Fetch.MaxArchiveBytes),
	))

	explorer, err := crateview.New(
		crateview.WithLogger(logger),
		crateview.WithFetcher(fetcher),
		crateview.WithCacheBounds(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes),
		crateview.WithArchiveLimits(archive.Limits{
			MaxFileBytes:  cfg.Fetch.MaxFileBytes,
			MaxTotalBytes: cfg.Fetch.MaxArchiveBytes,
		}),
		crateview.WithIndexConcurrency(cfg.Index.Concurrency),
	)
	if err != nil {
		slog.Error("failed to initialize explorer", "error", err)
		os.Exit(1)
	}

	var gh *github.Client
	if cfg.GitHub.Token != "" {
		gh = github.New(cfg.GitHub.Token)
		slog.Info("github exploration enabled")
	} else {
		slog.Info("github exploration disabled", "reason", "no token configured")
	}

	srv := server.New(explorer, gh, &server.Config{
		MetricsEnabled: cfg.Server.MetricsEnabled,
		Logger:         logger,
	})

	go func() {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the slog handler: JSON for production, tint for a
// readable local format.
func newLogger(format string) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
