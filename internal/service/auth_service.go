package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// AuthService handles login for activated accounts.
type AuthService struct {
	accounts repository.AccountRepository
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts: deps.AccountRepo,
		tokenMgr: deps.Tokens,
		logger:   loggerOrNop(deps.Logger),
	}
}

// Login authenticates an activated account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, *domain.Session, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !account.IsActive {
		return nil, nil, apperrors.NewUnauthorized("account not active")
	}

	session, err := s.tokenMgr.Issue(account)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("login", zap.String("account_id", account.ID))
	return account, session, nil
}

// Refresh exchanges a refresh token for a new token pair. The account must
// still exist and be active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Account, *domain.Session, error) {
	claims, err := s.tokenMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid refresh token")
	}
	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperrors.NewUnauthorized("account not found")
		}
		return nil, nil, err
	}
	if !account.IsActive {
		return nil, nil, apperrors.NewUnauthorized("account not active")
	}

	session, err := s.tokenMgr.Issue(account)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return account, session, nil
}
