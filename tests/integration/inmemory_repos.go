package integration

import (
	"context"
	"strings"
	"sync"
	"time"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory implementations of the storage ports. Mutations apply directly;
// isolation comes from the transactor below, which serializes transactions
// the way row locks serialize them in PostgreSQL.

// --- Player repo ---

type inMemoryPlayerRepo struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*domain.Player
	byName  map[string]uuid.UUID
}

func newInMemoryPlayerRepo() *inMemoryPlayerRepo {
	return &inMemoryPlayerRepo{
		players: make(map[uuid.UUID]*domain.Player),
		byName:  make(map[string]uuid.UUID),
	}
}

// Upsert mirrors the ON CONFLICT clause of the real repo: the caller's
// timestamps are stored verbatim, and a conflict refreshes name, seen_at,
// and updated_at while keeping created_at.
func (r *inMemoryPlayerRepo) Upsert(ctx context.Context, player *domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.players[player.UUID]; ok {
		delete(r.byName, strings.ToLower(existing.Name))
		existing.Name = player.Name
		existing.SeenAt = player.SeenAt
		existing.UpdatedAt = player.UpdatedAt
		r.byName[strings.ToLower(player.Name)] = player.UUID
		return nil
	}
	p := *player
	r.players[p.UUID] = &p
	r.byName[strings.ToLower(p.Name)] = p.UUID
	return nil
}

func (r *inMemoryPlayerRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPlayerRepo) GetByName(ctx context.Context, name string) (*domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	cp := *r.players[id]
	return &cp, nil
}

func (r *inMemoryPlayerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	return r.GetByUUID(ctx, id)
}

func (r *inMemoryPlayerRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Balance = balance
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Ledger repo ---

type inMemoryLedgerRepo struct {
	mu      sync.Mutex
	seq     int64
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) NextSeq(ctx context.Context, tx pgx.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var filtered []domain.LedgerEntry
	for _, e := range r.entries {
		if params.ModuleID != "" && e.ModuleID != params.ModuleID {
			continue
		}
		if params.Op != "" && e.Op != params.Op {
			continue
		}
		if params.SinceSeq > 0 && e.Seq <= params.SinceSeq {
			continue
		}
		if params.Player != nil {
			match := (e.From != nil && *e.From == *params.Player) ||
				(e.To != nil && *e.To == *params.Player)
			if !match {
				continue
			}
		}
		filtered = append(filtered, e)
	}

	total := int64(len(filtered))
	start := (params.Page - 1) * params.PageSize
	if start >= len(filtered) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

// snapshot returns a copy of every appended entry, for invariant checks.
func (r *inMemoryLedgerRepo) snapshot() []domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LedgerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// --- Idempotency repo ---

type inMemoryIdempotencyRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func idemKey(scope, keyHash string) string { return scope + "|" + keyHash }

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, scope, keyHash string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[idemKey(scope, keyHash)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryIdempotencyRepo) GetTx(ctx context.Context, tx pgx.Tx, scope, keyHash string) (*domain.IdempotencyRecord, error) {
	return r.Get(ctx, scope, keyHash)
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := idemKey(record.Scope, record.KeyHash)
	if _, ok := r.records[key]; ok {
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	cp := *record
	r.records[key] = &cp
	return nil
}

func (r *inMemoryIdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if rec.ExpiresAt.Before(now) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

// --- Module repo ---

type inMemoryModuleRepo struct {
	mu      sync.RWMutex
	modules map[string]*domain.Module
}

func newInMemoryModuleRepo() *inMemoryModuleRepo {
	return &inMemoryModuleRepo{modules: make(map[string]*domain.Module)}
}

func (r *inMemoryModuleRepo) Create(ctx context.Context, module *domain.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[module.ID]; ok {
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	cp := *module
	r.modules[module.ID] = &cp
	return nil
}

func (r *inMemoryModuleRepo) GetByID(ctx context.Context, id string) (*domain.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// --- Transactor ---

// inMemoryTransactor serializes transactions with a single mutex, which is a
// conservative model of the row locks the real engine takes: two mutations on
// the same rows never interleave.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: t.mu.Unlock}, nil
}

// memTx holds the transactor lock from Begin until Commit or Rollback.
type memTx struct {
	mu      sync.Mutex
	release func()
	done    bool
}

func (t *memTx) finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.release()
	return nil
}

func (t *memTx) Commit(ctx context.Context) error   { return t.finish() }
func (t *memTx) Rollback(ctx context.Context) error { return t.finish() }

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }
