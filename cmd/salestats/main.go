package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"salestats/internal/cache"
	"salestats/internal/cli"
	"salestats/internal/config"
	apphttp "salestats/internal/http"
	"salestats/internal/log"
	"salestats/internal/seed"
	"salestats/internal/services"
	"salestats/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg)
	cli.ValidateConfig(logger, cfg)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	caches := cache.NewManager(logger)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	opts := services.Options{
		Logger:      logger,
		Caches:      caches,
		CacheSize:   cfg.CacheSize,
		CacheTTL:    cfg.CacheTTL,
		SeedTimeout: cfg.SeedTimeout,
	}
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		opts.Notifier = client
	}

	// Bound the whole download, the client timeout covers the body read too
	loader := seed.NewLoader(&http.Client{Timeout: cfg.SeedTimeout}, cfg.SeedURL, logger)
	products := services.NewProductService(repo, loader, opts)

	ctx, stop := cli.SignalContext()
	defer stop()

	if cfg.SeedOnStartup {
		n, err := products.Initialize(ctx)
		if err != nil {
			logger.Error("Startup seeding failed", log.FieldError, err, log.FieldOperation, log.OpStartup)
		} else {
			logger.Info("Startup seeding complete", log.FieldRecords, n)
		}
	}

	go worker.NewReseedWorker(products, cfg.SeedInterval, logger).Run(ctx)

	srv := apphttp.NewServer(cfg.Addr(), products, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		SeedTimeout:        cfg.SeedTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting salestats server", "addr", cfg.Addr(), log.FieldSeedURL, cfg.SeedURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
