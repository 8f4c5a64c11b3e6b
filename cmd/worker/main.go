package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"flowtechs/internal/config"
	"flowtechs/internal/database"
	"flowtechs/internal/events"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/sources"
	"flowtechs/internal/worker"
	"flowtechs/internal/worker/processors"
	"flowtechs/internal/worker/processors/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger := newLogger(cfg)
	defer logger.Sync()

	if len(events.SplitBrokers(cfg.KafkaBrokers)) == 0 {
		logger.Fatal("KAFKA_BROKERS is required to run the worker")
	}

	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// The worker only reads and deactivates sources; it publishes nothing.
	m := metrics.New()
	oauth := shopify.NewOAuthService(cfg, logger)
	sourceService := sources.NewService(repository.NewSourceRepository(db.DB), oauth, events.NopPublisher{}, m, logger)
	processor := processors.NewEventProcessor(sourceService, validation.New(oauth, logger), m, logger)

	// Initialize worker
	w := worker.New(cfg, logger, processor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker on topic %s...", cfg.SourceEventsTopic)
	if err := w.Start(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}

	logger.Info("Shutting down worker...")
	if err := w.Stop(); err != nil {
		logger.Error("Failed to close reader: %v", err)
	}
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsProduction() {
		return logger.NewProduction(cfg.LogLevel)
	}
	return logger.New(cfg.LogLevel)
}
