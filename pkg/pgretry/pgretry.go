// Package pgretry executes units of database work and retries the ones that
// fail transiently. Deadlocks, serialization failures, and lock-wait
// timeouts are retried with jittered exponential backoff; connection losses
// and everything else surface immediately. The supplied work must be safe
// to re-execute — callers keep each attempt inside its own fresh transaction.
package pgretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Class is the retry classification of a database error.
type Class int

const (
	// ClassOther is any error outside the known transient classes.
	ClassOther Class = iota
	// ClassRetryable covers deadlocks, serialization failures, and
	// lock-wait timeouts.
	ClassRetryable
	// ClassConnectionLost covers broken or unreachable connections.
	ClassConnectionLost
	// ClassDuplicateKey is a unique or primary key violation.
	ClassDuplicateKey
)

// ErrRetryExhausted is returned when the attempt budget is spent on
// transient errors. The last attempt's error is wrapped.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// Policy tunes the retry loop. The parameters are a policy, not a contract:
// callers should only rely on some bounded number of retries happening.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// Classify buckets a database error. SQLSTATE 40001 (serialization_failure),
// 40P01 (deadlock_detected), and 55P03 (lock_not_available) are transient;
// class 08 and plain network failures are connection losses; 23505 is a
// duplicate key.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return ClassRetryable
		case "23505":
			return ClassDuplicateKey
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return ClassConnectionLost
		}
		return ClassOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ClassConnectionLost
	}
	if pgconn.SafeToRetry(err) {
		return ClassConnectionLost
	}

	return ClassOther
}

// Do runs fn, retrying ClassRetryable failures up to the policy's attempt
// budget. Exhausting the budget returns ErrRetryExhausted wrapping the last
// error; any other failure class is returned as-is from the failing attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if Classify(err) != ClassRetryable {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, jitter(delay)); err != nil {
			return err
		}
		if delay < p.MaxDelay {
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.MaxAttempts, lastErr)
}

// jitter spreads the delay to ±50% so colliding writers do not retry in
// lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
