package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vncsmyrnk/polling-app/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository"
	"github.com/vncsmyrnk/polling-app/internal/config"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
	"github.com/vncsmyrnk/polling-app/internal/core/services"
)

// orphansweep deletes polls that were left without options by a failed
// creation. It is meant to run periodically, e.g. from cron.
func main() {
	config.LoadDotEnv()

	cfg, err := config.ParseSweep(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	stores, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	var cache ports.PollCache
	if cfg.RedisURL != "" {
		pollCache, err := redis.Connect(ctx, cfg.RedisURL, 0)
		if err != nil {
			slog.Warn("poll cache unavailable; the listing may stay stale until it expires", "error", err)
		} else {
			defer pollCache.Close()
			cache = pollCache
		}
	}

	sweeper := services.NewSweepService(stores.Polls, cache)

	slog.Info("starting orphan poll sweep", "grace", cfg.Grace, "dry_run", cfg.DryRun)

	report, err := sweeper.SweepOrphans(ctx, ports.SweepInput{Grace: cfg.Grace, DryRun: cfg.DryRun})
	slog.Info("orphan poll sweep finished",
		"found", report.Found,
		"deleted", report.Deleted,
		"failed", report.Failed,
	)
	if err != nil {
		slog.Error("orphan poll sweep failed", "error", err)
		stores.Close()
		os.Exit(1)
	}
}
