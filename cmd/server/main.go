package main

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vncsmyrnk/polling-app/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/polling-app/internal/adapters/events"
	"github.com/vncsmyrnk/polling-app/internal/adapters/events/kafka"
	"github.com/vncsmyrnk/polling-app/internal/adapters/events/live"
	"github.com/vncsmyrnk/polling-app/internal/adapters/handler/http"
	"github.com/vncsmyrnk/polling-app/internal/adapters/metrics"
	"github.com/vncsmyrnk/polling-app/internal/adapters/oauth/google"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository"
	"github.com/vncsmyrnk/polling-app/internal/config"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
	"github.com/vncsmyrnk/polling-app/internal/core/services"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.ParseServer(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStart()

	stores, err := repository.Open(startCtx, cfg.Store)
	if err != nil {
		return err
	}
	defer stores.Close()
	slog.Info("store ready", "driver", cfg.Store.Driver)

	var cache ports.PollCache
	if cfg.RedisURL != "" {
		pollCache, err := redis.Connect(startCtx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer pollCache.Close()
		cache = pollCache
		slog.Info("poll listing cache enabled", "ttl", cfg.CacheTTL)
	}

	hub := live.NewHub(cfg.WebSocketOrigins()...)
	go hub.Run(ctx)

	publishers := []ports.EventPublisher{hub}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		publishers = append(publishers, publisher)
		slog.Info("publishing poll events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService := services.NewAuthService(stores.Users, stores.Auth, google.NewVerifier(), cfg.JWTSecret, cfg.GoogleClientID)
	pollService := services.NewPollService(stores.Polls, cache, events.NewFanout(publishers...), metrics.NewServiceMetrics(reg))
	userService := services.NewUserService(stores.Users)

	handler := http.NewHandler(http.Handlers{
		Poll:    http.NewPollHandler(pollService),
		User:    http.NewUserHandler(userService),
		Auth:    http.NewAuthHandler(authService, cfg.AuthRedirectURL, cfg.CookieDomain, stdhttp.SameSiteLaxMode),
		Live:    http.NewLiveHandler(hub),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Tokens:  authService,
	}, cfg.CORSOrigins)

	server := &stdhttp.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
