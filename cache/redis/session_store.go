package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appboost/bridge/cache"
)

// SessionStore implements the cache.SessionStore interface using Redis, for
// deployments running more than one bridge instance.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SessionStore) redisKey(token string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, cache.HashToken(token))
}

// Set stores a verified session, expiring together with the token.
func (s *SessionStore) Set(ctx context.Context, token string, entry *cache.SessionEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal session entry: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

// Get retrieves a verified session from Redis.
func (s *SessionStore) Get(ctx context.Context, token string) (*cache.SessionEntry, bool) {
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		return nil, false
	}

	var entry cache.SessionEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return &entry, true
}

// Delete removes a session from Redis.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.redisKey(token)).Err()
}
