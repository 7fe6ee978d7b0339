package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/realty-service/internal/domain"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager. Refresh tokens live for a day unless
// overridden with WithRefreshTTL.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret:     []byte(secret),
		ttl:        time.Duration(ttlMinutes) * time.Minute,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
	}
}

// WithRefreshTTL sets the refresh token lifetime; non-positive values are ignored.
func (tm *TokenManager) WithRefreshTTL(ttl time.Duration) *TokenManager {
	if ttl > 0 {
		tm.refreshTTL = ttl
	}
	return tm
}

// Claims describes JWT payload.
type Claims struct {
	AccountID string      `json:"sub"`
	Role      domain.Role `json:"role"`
	Staff     bool        `json:"staff,omitempty"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

// Issue builds and signs an access and refresh token pair for an activated account.
func (tm *TokenManager) Issue(account *domain.Account) (*domain.Session, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	access, err := tm.sign(account, TokenTypeAccess, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	refreshExpiresAt := issuedAt.Add(tm.refreshTTL)
	refresh, err := tm.sign(account, TokenTypeRefresh, issuedAt, refreshExpiresAt)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		Token:            access,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (tm *TokenManager) sign(account *domain.Account, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		AccountID: account.ID,
		Role:      account.Role,
		Staff:     account.IsStaff,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates an access token and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, TokenTypeAccess)
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (tm *TokenManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, TokenTypeRefresh)
}

func (tm *TokenManager) parse(tokenStr, tokenType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != tokenType {
		return nil, errors.New("unexpected token type")
	}
	return claims, nil
}
