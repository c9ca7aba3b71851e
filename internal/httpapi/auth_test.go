package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"bahikhata/backend/internal/domain"
)

func TestAuthManagerRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret-key", time.Hour)
	token, expiresAt, err := manager.Sign(domain.Actor{UserID: "u-1", BusinessID: "biz-1"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %s", expiresAt)
	}

	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.UserID != "u-1" || actor.BusinessID != "biz-1" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthManagerRejectsForeignSecret(t *testing.T) {
	other := NewAuthManager("another-secret", time.Hour)
	token, _, err := other.Sign(domain.Actor{UserID: "u-1", BusinessID: "biz-1"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := NewAuthManager("test-secret-key", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestAuthManagerRejectsTokenWithoutBusiness(t *testing.T) {
	manager := NewAuthManager("test-secret-key", time.Hour)
	token, _, err := manager.Sign(domain.Actor{UserID: "u-1"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected token without business to be rejected")
	}
}

func TestAuthManagerRejectsExpiredAndUnsignedTokens(t *testing.T) {
	manager := NewAuthManager("test-secret-key", time.Hour)

	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, ledgerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		BusinessID: "biz-1",
	})
	signed, err := expired.SignedString(manager.secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, ledgerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u-1", Issuer: tokenIssuer},
		BusinessID:       "biz-1",
	})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none failed: %v", err)
	}
	if _, err := manager.ParseToken(unsigned); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}
}
