package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("rand: %v", err)
	}
	iss, err := NewIssuer("https://auth.example.com", "linerelay", base64.StdEncoding.EncodeToString(seed), 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueAndParse(t *testing.T) {
	iss := newTestIssuer(t)

	tok, exp, err := iss.IssueSession("U1234", map[string]any{
		"provider":    "line",
		"providerId":  "U1234",
		"displayName": "Yuki",
	})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Error("exp should be in the future")
	}

	claims, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims["sub"] != "U1234" {
		t.Errorf("sub = %v", claims["sub"])
	}
	if claims["provider"] != "line" {
		t.Errorf("provider = %v", claims["provider"])
	}
}

func TestParseRejectsOtherKey(t *testing.T) {
	a := newTestIssuer(t)
	b := newTestIssuer(t)

	tok, _, err := a.IssueSession("U1", nil)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := b.Parse(tok); err == nil {
		t.Fatal("token signed by another key should not validate")
	}
}

func TestNewIssuerBadSeed(t *testing.T) {
	if _, err := NewIssuer("iss", "aud", "not-base64!!", time.Minute); err == nil {
		t.Fatal("expected error for invalid base64 seed")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewIssuer("iss", "aud", short, time.Minute); err != ErrBadSeed {
		t.Fatalf("expected ErrBadSeed, got %v", err)
	}
}
