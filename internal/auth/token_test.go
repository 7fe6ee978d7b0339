package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/realty-service/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	session, err := tm.Issue(&domain.Account{ID: "acc-1", Role: domain.RoleBuyer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(session.ExpiresAt) > 15*time.Minute {
		t.Fatalf("unexpected expiry %s", session.ExpiresAt)
	}

	claims, err := tm.ParseToken(session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.Role != domain.RoleBuyer {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewTokenManager("other-secret", 15)
	session, err := issuer.Issue(&domain.Account{ID: "acc-1", Role: domain.RoleBuyer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("secret", 15).ParseToken(session.Token); err == nil {
		t.Fatalf("expected signature failure")
	}

	stale := NewTokenManager("secret", 15)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := stale.Issue(&domain.Account{ID: "acc-1", Role: domain.RoleBuyer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := stale.ParseToken(old.Token); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	tm := NewTokenManager("secret", 15).WithRefreshTTL(48 * time.Hour)
	session, err := tm.Issue(&domain.Account{ID: "acc-1", Role: domain.RoleRealtor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if session.RefreshToken == "" || session.RefreshToken == session.Token {
		t.Fatalf("expected a distinct refresh token")
	}
	if session.RefreshExpiresAt.Sub(session.ExpiresAt) < 47*time.Hour {
		t.Fatalf("unexpected refresh expiry %s", session.RefreshExpiresAt)
	}

	if _, err := tm.ParseToken(session.RefreshToken); err == nil {
		t.Fatalf("refresh token must not authenticate requests")
	}
	if _, err := tm.ParseRefreshToken(session.Token); err == nil {
		t.Fatalf("access token must not refresh")
	}
	claims, err := tm.ParseRefreshToken(session.RefreshToken)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.TokenType != TokenTypeRefresh {
		t.Fatalf("unexpected claims %+v", claims)
	}
}
