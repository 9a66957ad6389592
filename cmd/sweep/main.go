// Command sweep removes expired idempotency records. It is meant to run from
// cron or a systemd timer on one node at a time; a Postgres advisory lock
// makes overlapping runs across nodes a no-op rather than a race.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"economy-core/config"
	pgStorage "economy-core/internal/adapter/storage/postgres"
	"economy-core/pkg/logger"
)

const sweepLockName = "idempotency-sweep"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log = logger.Component(log, "sweep")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	locker := pgStorage.NewAdvisoryLock(pool)
	release, ok, err := locker.TryAcquire(ctx, sweepLockName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to acquire sweep lock")
	}
	if !ok {
		log.Info().Msg("Sweep already running elsewhere, nothing to do")
		return
	}
	defer release()

	idemRepo := pgStorage.NewIdempotencyRepo(pool)
	start := time.Now()
	deleted, err := idemRepo.DeleteExpired(ctx, start.UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}

	log.Info().
		Int64("deleted", deleted).
		Dur("took", time.Since(start)).
		Msg("Idempotency sweep complete")
}
