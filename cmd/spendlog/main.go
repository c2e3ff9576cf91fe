package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/auth"
	"spendlog/internal/cache"
	"spendlog/internal/cli"
	"spendlog/internal/config"
	"spendlog/internal/core"
	apphttp "spendlog/internal/http"
	"spendlog/internal/services"
	"spendlog/internal/stats"
)

func main() {
	cfg, logger := cli.MustBootstrap("spendlog", (*config.Config).Validate)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	result, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", "error", err)
		}
	}()
	st := result.Store

	// Change events are optional; without a broker the API works alone.
	var events services.EventPublisher
	if cfg.AMQP.URL != "" {
		client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQP.Exchange, "queue", cfg.AMQP.Queue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	fallback, _ := core.LoadLocation(cfg.DefaultTimezone)
	snapshots := cache.NewLRUCache[services.Snapshot](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.Logger)
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	statsSvc := services.NewStatsService(st, stats.New(stats.WithFallbackLocation(fallback)), snapshots)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Accounts:   services.NewAccountService(st, tokens, statsSvc),
		Categories: services.NewCategoryService(st, events, statsSvc),
		Expenses:   services.NewExpenseService(st, events, statsSvc, cfg.DefaultTimezone),
		Stats:      statsSvc,
	}, apphttp.Options{
		Tokens:         tokens,
		Store:          st,
		Logger:         logger,
		AdminToken:     cfg.AdminToken,
		SecureCookies:  cfg.SecureCookies,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		CacheStats:     snapshots.Stats,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting spendlog server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"default_timezone", cfg.DefaultTimezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		stop()
		<-done
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
