package ports

import (
	"context"
	"time"

	"economy-core/internal/core/domain"

	"github.com/google/uuid"
)

// MutationRequest holds validated input for a deposit or withdraw. Player is
// a UUID string or a display name; the engine resolves it. A blank
// IdempotencyKey means fire-and-forget: the engine synthesizes a fresh key
// and the call can never be replayed.
type MutationRequest struct {
	ModuleID       string
	Player         string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// TransferRequest holds validated input for a two-legged transfer.
type TransferRequest struct {
	ModuleID       string
	From           string
	To             string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// WalletService is the money-movement contract consumed by add-ons. Every
// mutating call returns a result carrying exactly one canonical code on
// failure; callers branch on the code, not the message.
type WalletService interface {
	Deposit(ctx context.Context, req MutationRequest) domain.Result
	Withdraw(ctx context.Context, req MutationRequest) domain.Result
	Transfer(ctx context.Context, req TransferRequest) domain.Result
	GetBalance(ctx context.Context, player string) (int64, error)
	// Seen records a player sighting, creating the directory row on first
	// contact and refreshing the display name afterwards.
	Seen(ctx context.Context, id uuid.UUID, name string) error
}

// LogRequest is an external module's own domain event for the ledger.
// IdemScope and IdemKey are optional: a module that deduplicates its own
// operations can record the scope and raw key it used, and the key is
// hashed before it reaches storage.
type LogRequest struct {
	ModuleID  string
	Op        string
	From      *uuid.UUID
	To        *uuid.UUID
	Amount    int64
	Reason    string
	OK        bool
	Code      domain.Code
	IdemScope string
	IdemKey   string
	Extra     []byte
}

// LedgerService is the audit-log contract. Log runs in its own short
// transaction; List reads committed entries in sequence order.
type LedgerService interface {
	Log(ctx context.Context, req LogRequest) error
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// LedgerMirror receives committed entries for best-effort off-box auditing.
// Enqueue must never block the caller.
type LedgerMirror interface {
	Enqueue(entry domain.LedgerEntry)
}

// ReplayCache is the best-effort fast path in front of the idempotency
// store. Errors are logged and ignored; the store remains authoritative.
type ReplayCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // cached record JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DegradedMonitor reports sustained database connectivity loss so the
// engine can refuse new work instead of queuing a backlog.
type DegradedMonitor interface {
	Degraded() bool
}

// HashService handles secret-key hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations for module auth.
type TokenService interface {
	Generate(moduleID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ModuleID string
}

// RegisterModuleRequest holds input for module registration.
type RegisterModuleRequest struct {
	ID     string
	Name   string
	Secret string
}

// ModuleAuthService registers add-on modules and issues their tokens.
type ModuleAuthService interface {
	Register(ctx context.Context, req RegisterModuleRequest) (*domain.Module, error)
	Login(ctx context.Context, moduleID, secret string) (string, time.Time, error) // token, expiry, error
}
