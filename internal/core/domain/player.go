package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownPlayer marks a lookup that found no directory row, as opposed to
// a lookup the database failed to answer.
var ErrUnknownPlayer = errors.New("unknown player")

// Player maps a game identity to its current balance. Rows are created on
// first sighting and never deleted; the balance is mutated only by the
// wallet engine, always under a row lock.
type Player struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"` // last-seen display name wins
	Balance   int64     `json:"balance"` // minor units, never negative
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SeenAt    time.Time `json:"seen_at"`
}
