package domain

import "time"

// ModuleStatus is the lifecycle state of a registered add-on module.
type ModuleStatus string

const (
	ModuleStatusActive    ModuleStatus = "ACTIVE"
	ModuleStatusSuspended ModuleStatus = "SUSPENDED"
)

// Module is a registered add-on allowed to call the wallet and ledger
// contracts. The secret key is stored Argon2id-hashed and shown in plaintext
// only once, at registration.
type Module struct {
	ID            string       `json:"id"` // stable string id, e.g. "shop" or "quests"
	Name          string       `json:"name"`
	SecretKeyHash string       `json:"-"`
	Status        ModuleStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IsActive reports whether the module may call mutating endpoints.
func (m *Module) IsActive() bool {
	return m.Status == ModuleStatusActive
}
