package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bugetar/internal/amqp"
	"bugetar/internal/config"
	applog "bugetar/internal/log"
	"bugetar/internal/storage"
	"bugetar/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting bugetar-worker")

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

	lineItemClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPLineItemQueue)
	if err != nil {
		logger.Error("Failed to initialize line item AMQP client", "error", err)
		os.Exit(1)
	}
	defer lineItemClient.Close()

	referenceClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReferenceQueue)
	if err != nil {
		logger.Error("Failed to initialize reference AMQP client", "error", err)
		os.Exit(1)
	}
	defer referenceClient.Close()

	ingestWorker := worker.NewIngestWorker(repo, cfg.IngestBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return lineItemClient.ConsumeLineItemBatches(gctx, func(msg *amqp.LineItemBatchMessage) error {
			return ingestWorker.HandleLineItemBatch(gctx, msg)
		})
	})
	g.Go(func() error {
		return referenceClient.ConsumeReferenceUpdates(gctx, func(msg *amqp.ReferenceUpdateMessage) error {
			return ingestWorker.HandleReferenceUpdate(gctx, msg)
		})
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-gctx.Done():
		logger.Info("Consumer stopped", "error", gctx.Err())
	}

	logger.Info("Shutting down worker...")
	cancel()

	done := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil && err != context.Canceled {
			logger.Error("Consumer exited with error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
