package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/appboost/bridge/domain"
)

// AuthEvent is emitted to subscribers when the session state changes.
type AuthEvent string

const (
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
)

// State describes the bootstrapper lifecycle so embedding UIs can render a
// logged-out or error view without forcing a resolution.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateInitialized   State = "initialized"
	StateError         State = "error"
)

// expirySkew is subtracted from the advertised token lifetime so a session
// is replaced before the server starts rejecting it.
const expirySkew = 30 * time.Second

// adoptedSessionTTL bounds how long an adopted stored token is trusted
// without re-validation, since its remaining lifetime is unknown.
const adoptedSessionTTL = time.Minute

// ParentCredentials is what the embedding application supplies for a token
// exchange: the parent platform token plus optional profile hints.
type ParentCredentials struct {
	Token       string
	ProfileData *domain.ProfileData
}

// CredentialsFunc returns the current parent platform credentials. It is
// called whenever the bootstrapper needs to perform a fresh exchange.
type CredentialsFunc func(ctx context.Context) (*ParentCredentials, error)

// Bootstrapper resolves a usable session for the embedding application.
// Resolution order: a still-valid session from a previous call, then the
// stored credential triple, then a refresh of the stored refresh token, and
// finally a fresh exchange of the parent token. All public methods are safe
// for concurrent use; concurrent EnsureSession calls are collapsed into one
// resolution.
type Bootstrapper struct {
	api         TokenEndpoint
	store       SessionStore
	credentials CredentialsFunc
	now         func() time.Time

	mu        sync.Mutex
	current   *domain.Session
	expiresAt time.Time

	stateMu sync.RWMutex
	state   State
	lastErr error

	subMu       sync.Mutex
	subscribers map[int]func(AuthEvent, *domain.Session)
	nextSubID   int
}

// NewBootstrapper creates a Bootstrapper. store may be nil, in which case an
// in-memory store is used and sessions do not survive the process.
func NewBootstrapper(api TokenEndpoint, store SessionStore, credentials CredentialsFunc) *Bootstrapper {
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &Bootstrapper{
		api:         api,
		store:       store,
		credentials: credentials,
		now:         time.Now,
		state:       StateUninitialized,
		subscribers: make(map[int]func(AuthEvent, *domain.Session)),
	}
}

// EnsureSession returns a usable session, resolving one if needed. Callers
// arriving while a resolution is in flight block and receive its result.
func (b *Bootstrapper) EnsureSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()

	if b.current != nil && b.now().Before(b.expiresAt) {
		session := *b.current
		b.mu.Unlock()
		return &session, nil
	}

	b.setState(StateLoading, nil)
	session, event, err := b.resolve(ctx)
	if err != nil {
		b.setState(StateError, err)
		b.mu.Unlock()
		return nil, err
	}
	b.setCurrent(session)
	b.setState(StateInitialized, nil)
	result := *session
	b.mu.Unlock()

	if event != "" {
		b.emit(event, &result)
	}
	return &result, nil
}

// resolve runs the resolution chain. Caller holds b.mu. The returned event
// is non-empty when subscribers should be notified after the lock is
// released.
func (b *Bootstrapper) resolve(ctx context.Context) (*domain.Session, AuthEvent, error) {
	stored, err := b.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load stored session, falling back to exchange")
	}

	if stored != nil && stored.AccessToken != "" {
		profile, err := b.api.GetProfile(ctx, stored.AccessToken)
		if err == nil {
			session := &domain.Session{
				AccessToken:  stored.AccessToken,
				RefreshToken: stored.RefreshToken,
				ProfileID:    profile.ID,
				TokenType:    "bearer",
			}
			return session, "", nil
		}
		if !isUnauthorized(err) {
			return nil, "", fmt.Errorf("failed to validate stored session: %w", err)
		}

		if stored.RefreshToken != "" {
			session, err := b.api.RefreshToken(ctx, stored.RefreshToken)
			if err == nil {
				if err := b.persist(ctx, session); err != nil {
					return nil, "", err
				}
				return session, AuthEventTokenRefreshed, nil
			}
			if !isUnauthorized(err) {
				return nil, "", fmt.Errorf("failed to refresh stored session: %w", err)
			}
			log.Info().Msg("Stored refresh token rejected, performing fresh exchange")
		}
	}

	return b.exchange(ctx)
}

// exchange performs a fresh parent token exchange. Caller holds b.mu.
func (b *Bootstrapper) exchange(ctx context.Context) (*domain.Session, AuthEvent, error) {
	if b.credentials == nil {
		return nil, "", errors.New("no parent credentials source configured")
	}

	creds, err := b.credentials(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to obtain parent credentials: %w", err)
	}

	session, err := b.api.ExchangeToken(ctx, creds.Token, creds.ProfileData)
	if err != nil {
		return nil, "", fmt.Errorf("token exchange failed: %w", err)
	}
	if err := b.persist(ctx, session); err != nil {
		return nil, "", err
	}
	return session, "", nil
}

// RefreshSession forces a refresh of the current session and notifies
// subscribers on success. When the server rejects the refresh token and a
// parent credentials source is configured, the cached triple is dropped and a
// fresh exchange takes its place.
func (b *Bootstrapper) RefreshSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()

	refreshToken := ""
	if b.current != nil {
		refreshToken = b.current.RefreshToken
	}
	if refreshToken == "" {
		if stored, err := b.store.Load(ctx); err == nil && stored != nil {
			refreshToken = stored.RefreshToken
		}
	}
	if refreshToken == "" {
		b.mu.Unlock()
		return nil, errors.New("no refresh token available")
	}

	session, err := b.api.RefreshToken(ctx, refreshToken)
	switch {
	case err == nil:
		if err := b.persist(ctx, session); err != nil {
			b.setState(StateError, err)
			b.mu.Unlock()
			return nil, err
		}
	case isUnauthorized(err) && b.credentials != nil:
		log.Info().Msg("Refresh token rejected, performing fresh exchange")
		b.current = nil
		b.expiresAt = time.Time{}
		if clearErr := b.store.Clear(ctx); clearErr != nil {
			log.Warn().Err(clearErr).Msg("Failed to clear stored session before exchange")
		}
		session, _, err = b.exchange(ctx)
		if err != nil {
			b.setState(StateError, err)
			b.mu.Unlock()
			return nil, err
		}
	default:
		err = fmt.Errorf("session refresh failed: %w", err)
		b.setState(StateError, err)
		b.mu.Unlock()
		return nil, err
	}
	b.setCurrent(session)
	b.setState(StateInitialized, nil)
	result := *session
	b.mu.Unlock()

	b.emit(AuthEventTokenRefreshed, &result)
	return &result, nil
}

// SignOut drops the stored triple and the in-memory session, then notifies
// subscribers.
func (b *Bootstrapper) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.current = nil
	b.expiresAt = time.Time{}
	err := b.store.Clear(ctx)
	b.setState(StateUninitialized, nil)
	b.mu.Unlock()

	b.emit(AuthEventSignedOut, nil)
	if err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// Subscribe registers a handler for auth events. The returned function
// removes the subscription. Handlers must not call back into the
// Bootstrapper synchronously.
func (b *Bootstrapper) Subscribe(handler func(AuthEvent, *domain.Session)) func() {
	b.subMu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = handler
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		delete(b.subscribers, id)
		b.subMu.Unlock()
	}
}

// State reports where the bootstrapper is in its lifecycle. It never blocks
// on an in-flight resolution.
func (b *Bootstrapper) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// LastError returns the error from the most recent failed resolution, or nil
// when the last resolution succeeded.
func (b *Bootstrapper) LastError() error {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.lastErr
}

func (b *Bootstrapper) setState(state State, err error) {
	b.stateMu.Lock()
	b.state = state
	b.lastErr = err
	b.stateMu.Unlock()
}

func (b *Bootstrapper) emit(event AuthEvent, session *domain.Session) {
	b.subMu.Lock()
	handlers := make([]func(AuthEvent, *domain.Session), 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.subMu.Unlock()

	for _, h := range handlers {
		h(event, session)
	}
}

// setCurrent caches a session. Caller holds b.mu.
func (b *Bootstrapper) setCurrent(session *domain.Session) {
	copied := *session
	b.current = &copied
	if session.ExpiresIn > 0 {
		b.expiresAt = b.now().Add(time.Duration(session.ExpiresIn)*time.Second - expirySkew)
	} else {
		b.expiresAt = b.now().Add(adoptedSessionTTL)
	}
}

func (b *Bootstrapper) persist(ctx context.Context, session *domain.Session) error {
	err := b.store.Save(ctx, &StoredSession{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ProfileID:    session.ProfileID,
	})
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
