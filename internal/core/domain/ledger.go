package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one immutable row of the audit log. Sequence numbers are
// assigned from a persisted counter inside the same transaction as the
// balance mutation, so reading entries in sequence order reproduces true
// commit order.
type LedgerEntry struct {
	Seq         int64      `json:"seq"`
	Timestamp   time.Time  `json:"ts"`
	ModuleID    string     `json:"module_id"`
	Op          string     `json:"op"`
	From        *uuid.UUID `json:"from,omitempty"`
	To          *uuid.UUID `json:"to,omitempty"`
	Amount      int64      `json:"amount"` // positive credit, negative debit, zero for non-monetary events
	Reason      string     `json:"reason"`
	OK          bool       `json:"ok"`
	Code        Code       `json:"code,omitempty"`
	IdemScope   string     `json:"idem_scope,omitempty"`
	IdemKeyHash string     `json:"idem_key_hash,omitempty"`
	OldUnits    *int64     `json:"old_units,omitempty"` // affected account balance before
	NewUnits    *int64     `json:"new_units,omitempty"` // affected account balance after
	Node        string     `json:"node"`
	Extra       []byte     `json:"extra,omitempty"` // small JSON payload
}

// Standard wallet operation names recorded in the ledger.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpTransfer = "transfer"
)
