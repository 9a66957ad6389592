package postgres

import (
	"context"
	"errors"
	"fmt"

	"economy-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlayerRepo implements ports.PlayerRepository.
type PlayerRepo struct {
	pool Pool
}

// NewPlayerRepo creates a new PlayerRepo.
func NewPlayerRepo(pool Pool) *PlayerRepo {
	return &PlayerRepo{pool: pool}
}

// Upsert creates the player row on first sighting. On conflict the display
// name and seen-at timestamp are refreshed (last-seen value wins); the
// balance is never touched here.
func (r *PlayerRepo) Upsert(ctx context.Context, p *domain.Player) error {
	query := `INSERT INTO players (uuid, name, balance, created_at, updated_at, seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uuid) DO UPDATE
		SET name = EXCLUDED.name, seen_at = EXCLUDED.seen_at, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		p.UUID, p.Name, p.Balance, p.CreatedAt, p.UpdatedAt, p.SeenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// GetByUUID fetches a player by UUID (without locking).
func (r *PlayerRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	query := `SELECT uuid, name, balance, created_at, updated_at, seen_at
		FROM players WHERE uuid = $1`

	p := &domain.Player{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.UUID, &p.Name, &p.Balance, &p.CreatedAt, &p.UpdatedAt, &p.SeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player by uuid: %w", err)
	}
	return p, nil
}

// GetByName fetches a player by display name (non-locking read). Names are
// not unique by contract; the most recently seen match wins.
func (r *PlayerRepo) GetByName(ctx context.Context, name string) (*domain.Player, error) {
	query := `SELECT uuid, name, balance, created_at, updated_at, seen_at
		FROM players WHERE name = $1 ORDER BY seen_at DESC LIMIT 1`

	p := &domain.Player{}
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&p.UUID, &p.Name, &p.Balance, &p.CreatedAt, &p.UpdatedAt, &p.SeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player by name: %w", err)
	}
	return p, nil
}

// GetForUpdate fetches a player row with a pessimistic lock.
// This MUST be called within a transaction.
func (r *PlayerRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Player, error) {
	query := `SELECT uuid, name, balance, created_at, updated_at, seen_at
		FROM players WHERE uuid = $1 FOR UPDATE`

	p := &domain.Player{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&p.UUID, &p.Name, &p.Balance, &p.CreatedAt, &p.UpdatedAt, &p.SeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player for update: %w", err)
	}
	return p, nil
}

// UpdateBalance sets a player's balance within a transaction. The caller
// holds the row lock and has already validated the new balance.
func (r *PlayerRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error {
	query := `UPDATE players SET balance = $1, updated_at = NOW() WHERE uuid = $2`

	tag, err := tx.Exec(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("update player balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player not found: %s", id)
	}
	return nil
}
