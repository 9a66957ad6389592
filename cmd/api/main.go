package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"economy-core/config"
	httpHandler "economy-core/internal/adapter/http/handler"
	pgStorage "economy-core/internal/adapter/storage/postgres"
	redisStorage "economy-core/internal/adapter/storage/redis"
	"economy-core/internal/core/ports"
	"economy-core/internal/metrics"
	"economy-core/internal/service"
	"economy-core/pkg/logger"
	"economy-core/pkg/pgretry"
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
		Str("node", cfg.Server.Node).
		Int("port", cfg.Server.Port).
		Msg("Starting economy core")

	ctx := context.Background()

	// Initialize PostgreSQL pool and schema
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	playerRepo := pgStorage.NewPlayerRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	moduleRepo := pgStorage.NewModuleRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Replay cache (best-effort fast path in front of the idempotency store)
	replayCache := redisStorage.NewReplayCache(rdb)

	// Health checkers and the degraded-mode monitor
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)
	monitor := service.NewHealthMonitor(
		pgHealth,
		cfg.Monitor.Interval,
		cfg.Monitor.FailureThreshold,
		logger.Component(log, "monitor"),
		metrics.SetDegraded,
	)
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Start(monitorCtx)

	// Best-effort NDJSON ledger mirror
	var mirror ports.LedgerMirror
	var fileMirror *service.FileMirror
	if cfg.Mirror.Enabled {
		fileMirror, err = service.NewFileMirror(cfg.Mirror.Path, cfg.Mirror.QueueSize, logger.Component(log, "mirror"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open ledger mirror")
		}
		mirror = fileMirror
	}

	// Core services
	retryPolicy := pgretry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT)
	moduleAuthSvc := service.NewModuleAuthService(moduleRepo, hashSvc, tokenSvc, logger.Component(log, "auth"))
	walletSvc := service.NewWalletService(
		playerRepo,
		ledgerRepo,
		idempotencyRepo,
		transactor,
		replayCache,
		mirror,
		monitor,
		service.WalletConfig{
			Retry:          retryPolicy,
			IdempotencyTTL: cfg.Idempotency.TTL,
			AttemptTimeout: cfg.Database.AttemptTimeout,
			Node:           cfg.Server.Node,
		},
		logger.Component(log, "wallet"),
	)
	ledgerSvc := service.NewLedgerService(
		ledgerRepo,
		transactor,
		mirror,
		retryPolicy,
		cfg.Server.Node,
		logger.Component(log, "ledger"),
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		ModuleAuthSvc:  moduleAuthSvc,
		ModuleRepo:     moduleRepo,
		TokenSvc:       tokenSvc,
		Monitor:        monitor,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopMonitor()
	if fileMirror != nil {
		if err := fileMirror.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to flush ledger mirror")
		}
	}

	log.Info().Msg("Server exited")
}
