package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bugetar/internal/config"
	"bugetar/internal/factors"
	apphttp "bugetar/internal/http"
	applog "bugetar/internal/log"
	"bugetar/internal/population"
	"bugetar/internal/services"
	"bugetar/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	factorProvider := factors.NewProvider(repo)
	denominatorResolver := population.NewResolver(repo)

	aggregationService, err := services.NewAggregationService(
		repo, repo, factorProvider, denominatorResolver,
		services.Strategy(cfg.AggregationStrategy))
	if err != nil {
		logger.Error("Failed to build aggregation service",
			applog.FieldError, err, applog.FieldStrategy, cfg.AggregationStrategy)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, aggregationService, cfg.QueryTimeout)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.QueryTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting bugetar server",
		"port", cfg.Port, applog.FieldStrategy, cfg.AggregationStrategy, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
