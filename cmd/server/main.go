// Package main is the entrypoint for the LogDigest API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/logdigest/internal/alertsink"
	"github.com/kiranshivaraju/logdigest/internal/api"
	"github.com/kiranshivaraju/logdigest/internal/api/handler"
	mw "github.com/kiranshivaraju/logdigest/internal/api/middleware"
	"github.com/kiranshivaraju/logdigest/internal/cache"
	"github.com/kiranshivaraju/logdigest/internal/config"
	"github.com/kiranshivaraju/logdigest/internal/filter"
	"github.com/kiranshivaraju/logdigest/internal/history"
	"github.com/kiranshivaraju/logdigest/internal/pipeline"
	"github.com/kiranshivaraju/logdigest/internal/source"
	"github.com/kiranshivaraju/logdigest/internal/store"
	"github.com/kiranshivaraju/logdigest/internal/summarizer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "source", cfg.Source.Kind, "sink", cfg.Sink.Kind, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	historyStore := history.NewRedisHistoryStore(redis.NewClient(redisOpts), cfg.Filter.HistoryTTL)

	rawLogSource, err := newSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("create log source: %w", err)
	}
	slog.Info("log source initialized", "kind", cfg.Source.Kind)

	sink, err := alertsink.NewSink(cfg.Sink, slog.Default())
	if err != nil {
		return fmt.Errorf("create alert sink: %w", err)
	}
	defer sink.Close()
	slog.Info("alert sink initialized", "kind", cfg.Sink.Kind)

	provider, err := summarizer.NewProvider(cfg.Summarizer)
	if err != nil {
		return fmt.Errorf("create summarizer: %w", err)
	}
	safeSumm := summarizer.NewSafeSummarizer(provider, cfg.Summarizer.InferenceTimeout)
	slog.Info("summarizer initialized", "provider", safeSumm.Name())

	pgStore := store.NewPostgresStore(pool)

	pipelineCfg := pipeline.Config{
		MinSeverity:        cfg.Parser.MinSeverity,
		BatchSize:          cfg.Filter.BatchSize,
		HistoryLimitPerSig: history.DefaultLimitPerSignature,
		Filter: filter.Config{
			HMMTrustThreshold:      cfg.Filter.HMMTrustThreshold,
			HMMConfidenceThreshold: cfg.Filter.HMMConfidenceThreshold,
			MADZThreshold:          cfg.Filter.MADZThreshold,
			PermutationN:           cfg.Filter.PermutationN,
			PermutationAlpha:       cfg.Filter.PermutationAlpha,
			Workers:                cfg.Filter.Workers,
		},
	}
	p := pipeline.New(rawLogSource, historyStore, safeSumm, sink, pipelineCfg)
	svc := pipeline.NewService(p, pgStore, redisCache, 30*time.Minute)

	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       handler.NewHealthHandler(pgStore, redisCache),
		CreateBatchHandler:  handler.NewCreateBatchHandler(svc),
		GetBatchHandler:     handler.NewGetBatchHandler(pgStore),
		ListClustersHandler: handler.NewListClustersHandler(pgStore),
		GetClusterHandler:   handler.NewGetClusterHandler(pgStore),
		GetDigestHandler:    handler.NewGetDigestHandler(pgStore, safeSumm),
		CreateKeyHandler:    handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:     handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newSource builds the configured RawLogSource. Kind is validated by
// config.Load, so the default case here is unreachable in practice.
func newSource(cfg config.SourceConfig) (source.RawLogSource, error) {
	switch cfg.Kind {
	case "file":
		return source.NewFileSource(cfg.File.Path), nil
	case "loki":
		return source.NewLokiSource(source.LokiSourceConfig{
			BaseURL:   cfg.Loki.BaseURL,
			Username:  cfg.Loki.Username,
			Password:  cfg.Loki.Password,
			OrgID:     cfg.Loki.OrgID,
			Service:   cfg.Loki.Service,
			Namespace: cfg.Loki.Namespace,
			Window:    cfg.Loki.Window,
			Limit:     cfg.Loki.Limit,
			Timeout:   cfg.Loki.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
