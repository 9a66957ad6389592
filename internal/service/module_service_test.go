package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/internal/core/ports/mocks"
	"economy-core/pkg/apperror"
	"economy-core/pkg/logger"
)

func newModuleAuthFixture(t *testing.T) (*ModuleAuthService, *mocks.MockModuleRepository, *mocks.MockHashService, *mocks.MockTokenService) {
	ctrl := gomock.NewController(t)
	moduleRepo := mocks.NewMockModuleRepository(ctrl)
	hashSvc := mocks.NewMockHashService(ctrl)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	svc := NewModuleAuthService(moduleRepo, hashSvc, tokenSvc, logger.New("error", false))
	return svc, moduleRepo, hashSvc, tokenSvc
}

func TestModuleAuthService_Register(t *testing.T) {
	svc, moduleRepo, hashSvc, _ := newModuleAuthFixture(t)

	hashSvc.EXPECT().Hash("sk_test").Return("$argon2id$...", nil)
	moduleRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, m *domain.Module) error {
			assert.Equal(t, "mod-arena", m.ID)
			assert.Equal(t, "Arena", m.Name)
			assert.Equal(t, "$argon2id$...", m.SecretKeyHash)
			assert.Equal(t, domain.ModuleStatusActive, m.Status)
			return nil
		})

	module, err := svc.Register(context.Background(), ports.RegisterModuleRequest{
		ID: "mod-arena", Name: "Arena", Secret: "sk_test",
	})
	require.NoError(t, err)
	assert.Equal(t, "mod-arena", module.ID)
}

func TestModuleAuthService_Register_DuplicateID(t *testing.T) {
	svc, moduleRepo, hashSvc, _ := newModuleAuthFixture(t)

	hashSvc.EXPECT().Hash(gomock.Any()).Return("$argon2id$...", nil)
	moduleRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&pgconn.PgError{Code: "23505"})

	_, err := svc.Register(context.Background(), ports.RegisterModuleRequest{
		ID: "mod-arena", Name: "Arena", Secret: "sk_test",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestModuleAuthService_Login(t *testing.T) {
	svc, moduleRepo, hashSvc, tokenSvc := newModuleAuthFixture(t)

	module := &domain.Module{
		ID:            "mod-arena",
		SecretKeyHash: "$argon2id$...",
		Status:        domain.ModuleStatusActive,
	}
	expiry := time.Now().Add(time.Hour)

	moduleRepo.EXPECT().GetByID(gomock.Any(), "mod-arena").Return(module, nil)
	hashSvc.EXPECT().Verify("sk_test", "$argon2id$...").Return(true, nil)
	tokenSvc.EXPECT().Generate("mod-arena").Return("jwt-token", expiry, nil)

	token, expiresAt, err := svc.Login(context.Background(), "mod-arena", "sk_test")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestModuleAuthService_Login_UnknownModule(t *testing.T) {
	svc, moduleRepo, _, _ := newModuleAuthFixture(t)

	moduleRepo.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, nil)

	_, _, err := svc.Login(context.Background(), "nope", "sk_test")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestModuleAuthService_Login_BadSecret(t *testing.T) {
	svc, moduleRepo, hashSvc, _ := newModuleAuthFixture(t)

	module := &domain.Module{ID: "mod-arena", SecretKeyHash: "$argon2id$...", Status: domain.ModuleStatusActive}
	moduleRepo.EXPECT().GetByID(gomock.Any(), "mod-arena").Return(module, nil)
	hashSvc.EXPECT().Verify("wrong", "$argon2id$...").Return(false, nil)

	_, _, err := svc.Login(context.Background(), "mod-arena", "wrong")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestModuleAuthService_Login_Suspended(t *testing.T) {
	svc, moduleRepo, hashSvc, _ := newModuleAuthFixture(t)

	module := &domain.Module{ID: "mod-arena", SecretKeyHash: "$argon2id$...", Status: domain.ModuleStatusSuspended}
	moduleRepo.EXPECT().GetByID(gomock.Any(), "mod-arena").Return(module, nil)
	hashSvc.EXPECT().Verify("sk_test", "$argon2id$...").Return(true, nil)

	_, _, err := svc.Login(context.Background(), "mod-arena", "sk_test")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_004", appErr.Code)
}

func TestModuleAuthService_Login_RepoError(t *testing.T) {
	svc, moduleRepo, _, _ := newModuleAuthFixture(t)

	moduleRepo.EXPECT().GetByID(gomock.Any(), "mod-arena").Return(nil, errors.New("boom"))

	_, _, err := svc.Login(context.Background(), "mod-arena", "sk_test")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}
