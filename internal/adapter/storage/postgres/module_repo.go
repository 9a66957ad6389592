package postgres

import (
	"context"
	"errors"
	"fmt"

	"economy-core/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ModuleRepo implements ports.ModuleRepository.
type ModuleRepo struct {
	pool Pool
}

// NewModuleRepo creates a new ModuleRepo.
func NewModuleRepo(pool Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

// Create inserts a new module registration.
func (r *ModuleRepo) Create(ctx context.Context, m *domain.Module) error {
	query := `INSERT INTO modules (id, name, secret_key_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.Name, m.SecretKeyHash, string(m.Status), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert module: %w", err)
	}
	return nil
}

// GetByID fetches a module by its string id.
func (r *ModuleRepo) GetByID(ctx context.Context, id string) (*domain.Module, error) {
	query := `SELECT id, name, secret_key_hash, status, created_at FROM modules WHERE id = $1`

	m := &domain.Module{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.SecretKeyHash, &status, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get module by id: %w", err)
	}
	m.Status = domain.ModuleStatus(status)
	return m, nil
}
