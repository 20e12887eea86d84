package client

import (
	"context"
	"sync"
)

// StoredSession is the persisted credential triple for one user of the
// embedding application.
type StoredSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ProfileID    string `json:"profile_id"`
}

// SessionStore persists the credential triple between bootstrapper runs.
// Implementations must treat Save and Clear as atomic over the whole triple.
//
//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE
type SessionStore interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, session *StoredSession) error
	Clear(ctx context.Context) error
}

// MemorySessionStore is an in-process SessionStore, useful for tests and
// short-lived tools.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *StoredSession
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Load returns the stored triple, or (nil, nil) when nothing is stored.
func (s *MemorySessionStore) Load(_ context.Context) (*StoredSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

// Save replaces the stored triple.
func (s *MemorySessionStore) Save(_ context.Context, session *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.session = &copied
	return nil
}

// Clear drops the stored triple.
func (s *MemorySessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
