package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock implements ports.AdvisoryLocker over pg_advisory_lock.
// Session-level locks need a pinned connection, so this works directly on
// the pgxpool.Pool rather than the Pool interface. Used by collaborators
// such as backup/restore; the wallet engine's transactions never take one.
type AdvisoryLock struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLock creates a new AdvisoryLock.
func NewAdvisoryLock(pool *pgxpool.Pool) *AdvisoryLock {
	return &AdvisoryLock{pool: pool}
}

// Acquire blocks until the named lock is held. The returned release func
// unlocks and returns the pinned connection to the pool.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string) (func(), error) {
	key := lockKey(name)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock %q: %w", name, err)
	}

	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}, nil
}

// TryAcquire attempts the named lock without blocking. ok reports whether
// the lock was obtained.
func (l *AdvisoryLock) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	key := lockKey(name)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock %q: %w", name, err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}, true, nil
}

// lockKey folds a lock name into the bigint keyspace pg_advisory_lock wants.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
