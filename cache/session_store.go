// Package cache provides a short-lived store for verified session claims so
// that repeated requests with the same bearer token skip JWT verification and
// the profile lookup.
package cache

import (
	"context"
	"time"
)

// SessionEntry is the cached result of a successful access-token validation.
type SessionEntry struct {
	ProfileID string    `json:"profile_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore caches verified sessions keyed by token. Implementations hash
// the token before using it as a key; the raw token is never stored.
type SessionStore interface {
	Set(ctx context.Context, token string, entry *SessionEntry) error
	Get(ctx context.Context, token string) (*SessionEntry, bool)
	Delete(ctx context.Context, token string) error
}
