// Package main is the entry point for the DcaPal backend server. It
// wires together the Market Data Service (with its Redis persistence,
// circuit-broken price provider, and discovery/updater workers) and
// the Portfolio Rebalancer behind an HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dcapal/dcapal-backend/internal/api"
	"github.com/dcapal/dcapal-backend/internal/config"
	"github.com/dcapal/dcapal-backend/internal/mds"
	"github.com/dcapal/dcapal-backend/internal/mds/provider"
	"github.com/dcapal/dcapal-backend/internal/mds/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	// ── 1. Config + logger ──────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting dcapal-backend", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Persistence ───────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		PoolSize:    cfg.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis connection failed", "err", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	logger.Info("redis connected", "addr", cfg.Redis.Addr)

	persistence := store.NewRedisStore(rdb)

	// ── 3. Provider ───────────────────────────────────────────────────────────
	fetcher := provider.NewKrakenFetcher(cfg.Provider.BaseURL, cfg.Provider.RequestTimeout)
	priceProvider := provider.NewBreaker(cfg.Provider.Name, fetcher, logger)

	// ── 4. Market Data Service + workers ────────────────────────────────────
	mdsSvc := mds.NewService(persistence, priceProvider, logger)
	discovery := mds.NewDiscovery(mdsSvc, cfg.MDS.DiscoveryInterval, logger)
	updater := mds.NewUpdater(mdsSvc, cfg.MDS.UpdaterInterval, logger)

	// ── 5. Root context + signal handling ───────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go discovery.Run(ctx)
	go updater.Run(ctx)
	logger.Info("mds workers started")

	// ── 6. HTTP server ───────────────────────────────────────────────────────
	handlers := api.NewHandlers(mdsSvc, logger)
	router := api.NewRouter(handlers, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── 7. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "err", err)
	}
	logger.Info("server stopped cleanly")
}
