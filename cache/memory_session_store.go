package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySessionStore implements SessionStore using ttlcache.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *SessionEntry]
}

// NewMemorySessionStore creates a new in-memory session store with automatic
// expiry cleanup.
//
//nolint:ireturn
func NewMemorySessionStore(defaultTTL time.Duration) SessionStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *SessionEntry](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *SessionEntry](),
	)

	go c.Start()

	return &MemorySessionStore{cache: c}
}

// Set implements SessionStore.Set. Entries expire with the token itself.
func (s *MemorySessionStore) Set(_ context.Context, token string, entry *SessionEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashToken(token), entry, ttl)
	return nil
}

// Get implements SessionStore.Get.
func (s *MemorySessionStore) Get(_ context.Context, token string) (*SessionEntry, bool) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

// Delete removes a session from the cache.
func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))
	return nil
}
