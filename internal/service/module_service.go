package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/pkg/apperror"
	"economy-core/pkg/pgretry"
)

// ModuleAuthService registers add-on modules and issues their access tokens.
type ModuleAuthService struct {
	moduleRepo ports.ModuleRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	log        zerolog.Logger
}

// NewModuleAuthService creates a new module auth service.
func NewModuleAuthService(
	moduleRepo ports.ModuleRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *ModuleAuthService {
	return &ModuleAuthService{
		moduleRepo: moduleRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		log:        log,
	}
}

// Register creates a new module with a hashed secret key.
func (s *ModuleAuthService) Register(ctx context.Context, req ports.RegisterModuleRequest) (*domain.Module, error) {
	hash, err := s.hashSvc.Hash(req.Secret)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	module := &domain.Module{
		ID:            req.ID,
		Name:          req.Name,
		SecretKeyHash: hash,
		Status:        domain.ModuleStatusActive,
		CreatedAt:     time.Now(),
	}

	if err := s.moduleRepo.Create(ctx, module); err != nil {
		if pgretry.Classify(err) == pgretry.ClassDuplicateKey {
			return nil, apperror.ErrModuleExists()
		}
		return nil, apperror.InternalError(err)
	}

	s.log.Info().Str("module_id", module.ID).Msg("module registered")

	return module, nil
}

// Login verifies a module's secret key and issues an access token.
func (s *ModuleAuthService) Login(ctx context.Context, moduleID, secret string) (string, time.Time, error) {
	module, err := s.moduleRepo.GetByID(ctx, moduleID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}
	if module == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(secret, module.SecretKeyHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}
	if !ok {
		s.log.Warn().Str("module_id", moduleID).Msg("login failed: bad secret")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !module.IsActive() {
		return "", time.Time{}, apperror.ErrModuleSuspended()
	}

	token, expiresAt, err := s.tokenSvc.Generate(module.ID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}

	s.log.Info().Str("module_id", moduleID).Msg("module logged in")

	return token, expiresAt, nil
}
