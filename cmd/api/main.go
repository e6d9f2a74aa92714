package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipment-confirmation-service/config"
	httpHandler "shipment-confirmation-service/internal/adapter/http/handler"
	pgStorage "shipment-confirmation-service/internal/adapter/storage/postgres"
	redisStorage "shipment-confirmation-service/internal/adapter/storage/redis"
	"shipment-confirmation-service/internal/core/ports"
	"shipment-confirmation-service/internal/service"
	"shipment-confirmation-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Shipment Confirmation Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	confirmationRepo := pgStorage.NewConfirmationRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	confirmationCache := redisStorage.NewConfirmationCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize business services
	recorder := service.NewSimulatedSettlementRecorder(log)
	confirmationSvc := service.NewConfirmationService(
		confirmationRepo,
		transactor,
		recorder,
		confirmationCache,
		service.ConfirmationServiceOptions{
			AllowCancelTerminal: cfg.Confirmation.AllowCancelTerminal,
			DefaultListLimit:    cfg.Confirmation.DefaultListLimit,
			MaxListLimit:        cfg.Confirmation.MaxListLimit,
			CacheTTL:            cfg.Confirmation.CacheTTL,
			SweepBatchSize:      cfg.Confirmation.SweepBatchSize,
		},
		log,
	)

	// Background expiry sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.Confirmation.SweepEnabled {
		sweeper := service.NewExpirySweeper(confirmationSvc, cfg.Confirmation.SweepInterval, log)
		go sweeper.Run(sweepCtx)
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ConfirmationSvc: confirmationSvc,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
