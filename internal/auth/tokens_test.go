package auth

import (
	"testing"
	"time"
)

func TestIssueAndValid(t *testing.T) {
	s := NewEphemeralTokens()
	token, expiresAt := s.Issue(time.Hour)
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !s.Valid(token) {
		t.Fatalf("expected freshly issued token to be valid")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiresAt in the future")
	}
}

func TestValidRejectsUnknownToken(t *testing.T) {
	s := NewEphemeralTokens()
	if s.Valid("nonexistent") {
		t.Fatalf("expected unknown token to be invalid")
	}
}

func TestExpiryRejectsAfterTTL(t *testing.T) {
	s := NewEphemeralTokens()
	token, _ := s.Issue(10 * time.Millisecond)
	if !s.Valid(token) {
		t.Fatalf("expected token to be valid immediately after issue")
	}
	time.Sleep(30 * time.Millisecond)
	if s.Valid(token) {
		t.Fatalf("expected token to be invalid past its TTL")
	}
}

func TestRevoke(t *testing.T) {
	s := NewEphemeralTokens()
	token, _ := s.Issue(time.Hour)
	s.Revoke(token)
	if s.Valid(token) {
		t.Fatalf("expected revoked token to be invalid")
	}
	// idempotent
	s.Revoke(token)
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual("abc", "abc") {
		t.Fatalf("expected equal strings to compare equal")
	}
	if ConstantTimeEqual("abc", "abd") {
		t.Fatalf("expected differing strings to compare unequal")
	}
	if ConstantTimeEqual("abc", "ab") {
		t.Fatalf("expected differing-length strings to compare unequal")
	}
}
