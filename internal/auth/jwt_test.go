package auth

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)

	token, expires, err := m.GenerateAccessToken("user-1", "sess-1", "a@b.com", KindRecovery)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %v", expires)
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.SessionID != "sess-1" || claims.Kind != KindRecovery {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	a := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	b := NewJWTManager("fedcba9876543210fedcba9876543210", time.Minute)

	token, _, err := a.GenerateAccessToken("user-1", "sess-1", "", KindSession)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := b.ParseAndValidate(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", -time.Minute)
	token, _, err := m.GenerateAccessToken("user-1", "sess-1", "", KindSession)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestOpaqueTokenHashIsStable(t *testing.T) {
	raw, hashed, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if HashOpaqueToken(raw) != hashed {
		t.Fatal("hash mismatch")
	}
	if raw == hashed {
		t.Fatal("raw token must not equal its hash")
	}
}
