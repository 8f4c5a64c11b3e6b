package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowtechs/internal/api"
	"flowtechs/internal/auth"
	"flowtechs/internal/config"
	"flowtechs/internal/database"
	"flowtechs/internal/events"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/realtime"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/sources"
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

	// Initialize database
	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.SourceEventsTopic)
	if _, ok := publisher.(events.NopPublisher); ok {
		logger.Warn("KAFKA_BROKERS is empty, source events will not be published")
	}
	defer publisher.Close()

	m := metrics.New()
	oauth := shopify.NewOAuthService(cfg, logger)
	sourceService := sources.NewService(repository.NewSourceRepository(db.DB), oauth, publisher, m, logger)

	// Initialize API server
	server := api.New(cfg, logger, api.Dependencies{
		DB:              db,
		Sources:         sourceService,
		OAuth:           oauth,
		Destinations:    repository.NewDestinationRepository(db.DB),
		Transformations: repository.NewTransformationRepository(db.DB),
		Auth:            auth.NewAuthenticator(auth.NewSupabaseResolver(cfg.SupabaseURL, cfg.SupabaseAnonKey), cfg, logger),
		Feed:            realtime.NewFeed(cfg.DatabaseURL, logger),
		Metrics:         m,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsProduction() {
		return logger.NewProduction(cfg.LogLevel)
	}
	return logger.New(cfg.LogLevel)
}
