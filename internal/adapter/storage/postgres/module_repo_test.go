package postgres

import (
	"context"
	"testing"
	"time"

	"economy-core/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewModuleRepo(mock)
	m := &domain.Module{
		ID:            "shop",
		Name:          "Shop Plugin",
		SecretKeyHash: "$argon2id$...",
		Status:        domain.ModuleStatusActive,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO modules").
		WithArgs(m.ID, m.Name, m.SecretKeyHash, string(m.Status), m.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewModuleRepo(mock)
	created := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM modules WHERE id").
		WithArgs("shop").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "secret_key_hash", "status", "created_at"}).
			AddRow("shop", "Shop Plugin", "$argon2id$...", "ACTIVE", created))

	m, err := repo.GetByID(context.Background(), "shop")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, domain.ModuleStatusActive, m.Status)
	assert.True(t, m.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewModuleRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM modules WHERE id").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "secret_key_hash", "status", "created_at"}))

	m, err := repo.GetByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}
