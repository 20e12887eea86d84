package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appboost/bridge/domain"
)

// --- Mock Implementations ---

type MockTokenEndpoint struct {
	mock.Mock
}

func (m *MockTokenEndpoint) ExchangeToken(ctx context.Context, parentToken string, profileData *domain.ProfileData) (*domain.Session, error) {
	args := m.Called(ctx, parentToken, profileData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockTokenEndpoint) RefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockTokenEndpoint) GetProfile(ctx context.Context, accessToken string) (*domain.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

// --- Fixtures ---

func testSession(access, refresh string) *domain.Session {
	return &domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ProfileID:    "profile-1",
		ExpiresIn:    3600,
		TokenType:    "bearer",
	}
}

func staticCredentials(token string) CredentialsFunc {
	return func(ctx context.Context) (*ParentCredentials, error) {
		return &ParentCredentials{Token: token}, nil
	}
}

func unauthorized() error {
	return &APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid access token"}
}

// --- Tests ---

func TestEnsureSession_ExchangesWhenStoreEmpty(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()

	session, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "profile-1", session.ProfileID)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestEnsureSession_AdoptsValidStoredSession(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &StoredSession{
		AccessToken:  "cached-access",
		RefreshToken: "cached-refresh",
		ProfileID:    "profile-1",
	}))
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("GetProfile", mock.Anything, "cached-access").
		Return(&domain.Profile{ID: "profile-1"}, nil).Once()

	session, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-access", session.AccessToken)
	assert.Equal(t, "cached-refresh", session.RefreshToken)

	api.AssertNotCalled(t, "ExchangeToken", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
}

func TestEnsureSession_RefreshesRejectedStoredToken(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &StoredSession{
		AccessToken:  "stale-access",
		RefreshToken: "cached-refresh",
		ProfileID:    "profile-1",
	}))
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("GetProfile", mock.Anything, "stale-access").Return(nil, unauthorized()).Once()
	api.On("RefreshToken", mock.Anything, "cached-refresh").
		Return(testSession("fresh-access", "fresh-refresh"), nil).Once()

	var gotEvent AuthEvent
	b.Subscribe(func(event AuthEvent, _ *domain.Session) { gotEvent = event })

	session, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", session.AccessToken)
	assert.Equal(t, AuthEventTokenRefreshed, gotEvent)

	stored, _ := store.Load(context.Background())
	assert.Equal(t, "fresh-access", stored.AccessToken)

	api.AssertNotCalled(t, "ExchangeToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureSession_FallsBackToExchangeWhenRefreshRejected(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &StoredSession{
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		ProfileID:    "profile-1",
	}))
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("GetProfile", mock.Anything, "stale-access").Return(nil, unauthorized()).Once()
	api.On("RefreshToken", mock.Anything, "stale-refresh").Return(nil, unauthorized()).Once()
	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("new-access", "new-refresh"), nil).Once()

	session, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", session.AccessToken)

	api.AssertExpectations(t)
}

func TestEnsureSession_ReusesFreshSession(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()

	first, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	second, err := b.EnsureSession(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	api.AssertNumberOfCalls(t, "ExchangeToken", 1)
}

func TestEnsureSession_ConcurrentCallersShareOneExchange(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := b.EnsureSession(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			results[i] = session.AccessToken
		}(i)
	}
	wg.Wait()

	for _, token := range results {
		assert.Equal(t, "access-1", token)
	}
	api.AssertNumberOfCalls(t, "ExchangeToken", 1)
}

func TestEnsureSession_PropagatesNonAuthErrors(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &StoredSession{
		AccessToken:  "cached-access",
		RefreshToken: "cached-refresh",
	}))
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("GetProfile", mock.Anything, "cached-access").
		Return(nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}).Once()

	_, err := b.EnsureSession(context.Background())
	require.Error(t, err)

	// A server-side failure must not burn the refresh token or re-exchange.
	api.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "ExchangeToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshSession_EmitsEvent(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()
	_, err := b.EnsureSession(context.Background())
	require.NoError(t, err)

	api.On("RefreshToken", mock.Anything, "refresh-1").
		Return(testSession("access-2", "refresh-2"), nil).Once()

	var events []AuthEvent
	unsubscribe := b.Subscribe(func(event AuthEvent, _ *domain.Session) { events = append(events, event) })

	session, err := b.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Equal(t, []AuthEvent{AuthEventTokenRefreshed}, events)

	unsubscribe()
	api.On("RefreshToken", mock.Anything, "refresh-2").
		Return(testSession("access-3", "refresh-3"), nil).Once()
	_, err = b.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRefreshSession_FallsBackToExchangeWhenRefreshRejected(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()
	_, err := b.EnsureSession(context.Background())
	require.NoError(t, err)

	// The server revoked the refresh token; the bootstrapper drops the cached
	// triple and falls back to a full exchange instead of surfacing the 401.
	api.On("RefreshToken", mock.Anything, "refresh-1").Return(nil, unauthorized()).Once()
	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-2", "refresh-2"), nil).Once()

	var events []AuthEvent
	b.Subscribe(func(event AuthEvent, _ *domain.Session) { events = append(events, event) })

	session, err := b.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Equal(t, []AuthEvent{AuthEventTokenRefreshed}, events)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	api.AssertExpectations(t)
}

func TestRefreshSession_PropagatesNonAuthErrors(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()
	_, err := b.EnsureSession(context.Background())
	require.NoError(t, err)

	serverErr := &APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	api.On("RefreshToken", mock.Anything, "refresh-1").Return(nil, serverErr).Once()

	_, err = b.RefreshSession(context.Background())
	require.Error(t, err)
	api.AssertNumberOfCalls(t, "ExchangeToken", 1)
}

func TestBootstrapperState(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	assert.Equal(t, StateUninitialized, b.State())
	assert.NoError(t, b.LastError())

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(nil, unauthorized()).Once()
	_, err := b.EnsureSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, b.State())
	assert.Error(t, b.LastError())

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()
	_, err = b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, b.State())
	assert.NoError(t, b.LastError())

	require.NoError(t, b.SignOut(context.Background()))
	assert.Equal(t, StateUninitialized, b.State())
}

func TestSignOut(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-1", "refresh-1"), nil).Once()
	_, err := b.EnsureSession(context.Background())
	require.NoError(t, err)

	var gotEvent AuthEvent
	b.Subscribe(func(event AuthEvent, session *domain.Session) {
		gotEvent = event
		assert.Nil(t, session)
	})

	require.NoError(t, b.SignOut(context.Background()))
	assert.Equal(t, AuthEventSignedOut, gotEvent)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)

	// The next EnsureSession has to start from scratch.
	api.On("ExchangeToken", mock.Anything, "parent-token", mock.Anything).
		Return(testSession("access-2", "refresh-2"), nil).Once()
	session, err := b.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
}

func TestPoller_RefreshesPeriodically(t *testing.T) {
	api := new(MockTokenEndpoint)
	store := NewMemorySessionStore()
	require.NoError(t, store.Save(context.Background(), &StoredSession{RefreshToken: "refresh-1"}))
	b := NewBootstrapper(api, store, staticCredentials("parent-token"))

	refreshed := make(chan struct{}, 4)
	api.On("RefreshToken", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { refreshed <- struct{}{} }).
		Return(testSession("access-n", "refresh-n"), nil)

	p := NewPoller(b, 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never refreshed the session")
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	api := new(MockTokenEndpoint)
	b := NewBootstrapper(api, nil, staticCredentials("parent-token"))

	p := NewPoller(b, time.Hour)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
