package ports

import (
	"context"
	"time"

	"economy-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlayerRepository defines persistence operations for the player directory.
// Methods accepting pgx.Tx run inside the wallet engine's transaction and
// take row locks.
type PlayerRepository interface {
	// Upsert creates the player row on first sighting or refreshes the
	// display name and seen-at timestamp on later sightings.
	Upsert(ctx context.Context, player *domain.Player) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Player, error)
	GetByName(ctx context.Context, name string) (*domain.Player, error)
	// GetForUpdate fetches a player row with a pessimistic lock.
	// Must be called within a transaction.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error
}

// LedgerListParams holds filter + pagination for ledger queries.
type LedgerListParams struct {
	ModuleID string
	Player   *uuid.UUID // matches either side of the entry
	Op       string
	SinceSeq int64
	Page     int
	PageSize int
}

// LedgerRepository defines persistence for the append-only audit log.
type LedgerRepository interface {
	// NextSeq increments and returns the persisted sequence counter.
	// Must be called within the same transaction as Append.
	NextSeq(ctx context.Context, tx pgx.Tx) (int64, error)
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// IdempotencyRepository defines persistence for request fingerprints.
// Get reads outside a transaction (advisory fast path); GetTx and Create run
// inside the wallet engine's transaction so the fingerprint check and the
// balance mutation commit or roll back together.
type IdempotencyRepository interface {
	Get(ctx context.Context, scope, keyHash string) (*domain.IdempotencyRecord, error)
	GetTx(ctx context.Context, tx pgx.Tx, scope, keyHash string) (*domain.IdempotencyRecord, error)
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	// DeleteExpired bulk-removes records past their expiry. Called by the
	// external sweep scheduler, never by the engine.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ModuleRepository defines persistence for registered add-on modules.
type ModuleRepository interface {
	Create(ctx context.Context, module *domain.Module) error
	GetByID(ctx context.Context, id string) (*domain.Module, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AdvisoryLocker is the named cooperative lock primitive used by external
// collaborators (backup/restore). The wallet engine does not use it.
type AdvisoryLocker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
	TryAcquire(ctx context.Context, name string) (release func(), ok bool, err error)
}
