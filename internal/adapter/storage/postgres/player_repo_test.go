package postgres

import (
	"context"
	"testing"
	"time"

	"economy-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlayer() *domain.Player {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Player{
		UUID:      uuid.New(),
		Name:      "Steve",
		Balance:   1000,
		CreatedAt: now,
		UpdatedAt: now,
		SeenAt:    now,
	}
}

func playerColumns() []string {
	return []string{"uuid", "name", "balance", "created_at", "updated_at", "seen_at"}
}

func playerRow(p *domain.Player) *pgxmock.Rows {
	return pgxmock.NewRows(playerColumns()).AddRow(
		p.UUID, p.Name, p.Balance, p.CreatedAt, p.UpdatedAt, p.SeenAt,
	)
}

func TestPlayerRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	p := newTestPlayer()

	// Re-sightings must refresh updated_at alongside name and seen_at.
	mock.ExpectExec(`(?s)INSERT INTO players.*EXCLUDED\.updated_at`).
		WithArgs(p.UUID, p.Name, p.Balance, p.CreatedAt, p.UpdatedAt, p.SeenAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_GetByUUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	p := newTestPlayer()

	mock.ExpectQuery("SELECT .+ FROM players WHERE uuid").
		WithArgs(p.UUID).
		WillReturnRows(playerRow(p))

	result, err := repo.GetByUUID(context.Background(), p.UUID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.UUID, result.UUID)
	assert.Equal(t, int64(1000), result.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_GetByUUID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM players WHERE uuid").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(playerColumns()))

	result, err := repo.GetByUUID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result, "missing player should be nil, nil")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_GetByName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	p := newTestPlayer()

	mock.ExpectQuery("SELECT .+ FROM players WHERE name .+ ORDER BY seen_at DESC").
		WithArgs(p.Name).
		WillReturnRows(playerRow(p))

	result, err := repo.GetByName(context.Background(), p.Name)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.UUID, result.UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	p := newTestPlayer()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM players WHERE uuid .+ FOR UPDATE").
		WithArgs(p.UUID).
		WillReturnRows(playerRow(p))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, p.UUID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.Balance, result.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE players SET balance").
		WithArgs(int64(750), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, id, 750)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRepo_UpdateBalance_MissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlayerRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE players SET balance").
		WithArgs(int64(750), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, id, 750)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
