// Package idempotency remembers the response to a request made with an
// Idempotency-Key so a retried request gets the same answer instead of a second
// side effect.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// CachedResponse is a stored response. Fingerprint identifies the request that
// produced it, so a key reused for a different request can be refused.
type CachedResponse struct {
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body"`
	Fingerprint string          `json:"fingerprint"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Store persists cached responses.
type Store interface {
	// Get returns nil, nil when the key is unknown or expired.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	// Set stores response under key. The first response stored for a key wins.
	Set(ctx context.Context, key string, response *CachedResponse) error
}

// ScopedKey binds a client-chosen key to the caller, so two callers using the same
// key never see each other's responses. The credential is hashed, never stored.
func ScopedKey(cred, key string) string {
	sum := sha256.Sum256([]byte(cred))
	return hex.EncodeToString(sum[:16]) + ":" + key
}

// Fingerprint hashes a request body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
