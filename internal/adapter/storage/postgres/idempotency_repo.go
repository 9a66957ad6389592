package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"economy-core/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository over the
// idempotency_requests table. Lookups ride the (scope, key_hash) primary
// key; nothing here scans.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

const idemColumns = `scope, key_hash, payload_hash, result_blob, expires_at, created_at`

// Get fetches a record by (scope, key hash) outside any transaction. This is
// the advisory fast path; the authoritative check reruns inside the engine's
// transaction via GetTx.
func (r *IdempotencyRepo) Get(ctx context.Context, scope, keyHash string) (*domain.IdempotencyRecord, error) {
	query := `SELECT ` + idemColumns + ` FROM idempotency_requests WHERE scope = $1 AND key_hash = $2`
	return scanRecord(r.pool.QueryRow(ctx, query, scope, keyHash))
}

// GetTx fetches a record inside the caller's transaction.
func (r *IdempotencyRepo) GetTx(ctx context.Context, tx pgx.Tx, scope, keyHash string) (*domain.IdempotencyRecord, error) {
	query := `SELECT ` + idemColumns + ` FROM idempotency_requests WHERE scope = $1 AND key_hash = $2`
	return scanRecord(tx.QueryRow(ctx, query, scope, keyHash))
}

// Create inserts a record within the caller's transaction. A primary-key
// conflict surfaces as-is so the engine can classify it as DUPLICATE_KEY.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	blob, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal idempotency result: %w", err)
	}

	query := `INSERT INTO idempotency_requests (scope, key_hash, payload_hash, result_blob, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := tx.Exec(ctx, query,
		rec.Scope, rec.KeyHash, rec.Fingerprint, blob, rec.ExpiresAt, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// DeleteExpired bulk-removes records past their expiry. Called by the
// external sweep, never by the engine.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_requests WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*domain.IdempotencyRecord, error) {
	rec := &domain.IdempotencyRecord{}
	var blob []byte
	err := row.Scan(&rec.Scope, &rec.KeyHash, &rec.Fingerprint, &blob, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if err := json.Unmarshal(blob, &rec.Result); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency result: %w", err)
	}
	return rec, nil
}
