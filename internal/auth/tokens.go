// Package auth implements the relay's two-tier bearer credential model:
// a long-lived, operator-configured access token checked against the
// bootstrap endpoint, and a set of short-lived ephemeral tokens minted
// per bootstrap call and required on every datapath endpoint.
package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EphemeralTokens is a concurrency-safe set of live ephemeral tokens.
// A token is present in the set from issuance until its TTL elapses or
// it is explicitly revoked; §5 requires this set be safe under
// concurrent mutation since every request handler touches it.
type EphemeralTokens struct {
	mu     sync.RWMutex
	tokens map[string]time.Time // token -> expiry
}

// NewEphemeralTokens returns an empty live-token set.
func NewEphemeralTokens() *EphemeralTokens {
	return &EphemeralTokens{tokens: make(map[string]time.Time)}
}

// Issue mints a new random UUID token, valid until ttl from now, adds it
// to the live set, and schedules its removal. The scheduled expiry timer
// does not hold the process alive on its own (§5).
func (s *EphemeralTokens) Issue(ttl time.Duration) (string, time.Time) {
	token := uuid.NewString()
	expiresAt := time.Now().Add(ttl)

	s.mu.Lock()
	s.tokens[token] = expiresAt
	s.mu.Unlock()

	// The timer's goroutine is the only thing that keeps an expired
	// token from a slow memory leak; it does not keep the process alive
	// on its own, since AfterFunc's goroutine exits once it fires.
	time.AfterFunc(ttl, func() { s.Revoke(token) })

	return token, expiresAt
}

// Valid reports whether token is live: present in the set and not past
// its expiry. An expired-but-not-yet-swept entry is treated as invalid
// even before its timer fires, per the "valid on every request received
// before t+ttl_ms" invariant.
func (s *EphemeralTokens) Valid(token string) bool {
	s.mu.RLock()
	expiresAt, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return time.Now().Before(expiresAt)
}

// Revoke removes token from the live set, idempotently.
func (s *EphemeralTokens) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// ConstantTimeEqual compares two bearer tokens without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
