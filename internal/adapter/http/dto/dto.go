package dto

import "encoding/json"

// MutationRequest is the request body for deposits and withdrawals. Player
// accepts a UUID or a display name. Amount is validated by the engine so a
// zero or negative value surfaces INVALID_AMOUNT rather than a generic
// binding error. A missing idempotency key means fire-and-forget.
type MutationRequest struct {
	Player         string `json:"player" binding:"required,max=128"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason" binding:"max=512"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=128"`
}

// TransferRequest is the request body for transfers.
type TransferRequest struct {
	From           string `json:"from" binding:"required,max=128"`
	To             string `json:"to" binding:"required,max=128"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason" binding:"max=512"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=128"`
}

// MutationResponse mirrors the engine result on the wire.
type MutationResponse struct {
	OK         bool   `json:"ok"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Replayed   bool   `json:"replayed,omitempty"`
	NewBalance *int64 `json:"new_balance,omitempty"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Player  string `json:"player"`
	Balance int64  `json:"balance"`
}

// SeenRequest records a player sighting.
type SeenRequest struct {
	UUID string `json:"uuid" binding:"required,uuid"`
	Name string `json:"name" binding:"required,max=64"`
}

// LedgerLogRequest is the request body for a module-authored ledger event.
type LedgerLogRequest struct {
	Op     string          `json:"op" binding:"required,safe_id,max=64"`
	From   *string         `json:"from,omitempty" binding:"omitempty,uuid"`
	To     *string         `json:"to,omitempty" binding:"omitempty,uuid"`
	Amount int64           `json:"amount"`
	Reason string          `json:"reason" binding:"max=512"`
	OK     bool            `json:"ok"`
	Code   string          `json:"code" binding:"max=64"`
	// Optional dedup attribution; the raw key is hashed before storage.
	IdemScope string          `json:"idem_scope" binding:"max=64"`
	IdemKey   string          `json:"idem_key" binding:"max=128"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

// LedgerListResponse wraps a paginated ledger read.
type LedgerListResponse struct {
	Entries  interface{} `json:"entries"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// RegisterModuleRequest is the request body for module registration.
type RegisterModuleRequest struct {
	ID     string `json:"id" binding:"required,safe_id,min=3,max=64"`
	Name   string `json:"name" binding:"required,min=1,max=100"`
	Secret string `json:"secret" binding:"required,min=16,max=128"`
}

// RegisterModuleResponse is the response for a successful registration.
type RegisterModuleResponse struct {
	ModuleID string `json:"module_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

// LoginRequest is the request body for module login.
type LoginRequest struct {
	ID     string `json:"id" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}
