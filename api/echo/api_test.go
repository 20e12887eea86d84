package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/appboost/bridge"
	"github.com/appboost/bridge/cache"
	"github.com/appboost/bridge/domain"
	"github.com/appboost/bridge/internal/mailer"
	"github.com/appboost/bridge/internal/stripe"
)

// --- Stub Implementations ---

type stubProfileRepo struct {
	byExternal map[string]*domain.Profile
	byID       map[string]*domain.Profile
}

func (s *stubProfileRepo) GetProfileByID(_ context.Context, id string) (*domain.Profile, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (s *stubProfileRepo) GetProfileByExternalID(_ context.Context, externalID string) (*domain.Profile, error) {
	if p, ok := s.byExternal[externalID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (s *stubProfileRepo) UpsertProfile(_ context.Context, profile *domain.Profile) error {
	if s.byID == nil {
		s.byID = map[string]*domain.Profile{}
	}
	if s.byExternal == nil {
		s.byExternal = map[string]*domain.Profile{}
	}
	s.byID[profile.ID] = profile
	s.byExternal[profile.ExternalUserID] = profile
	return nil
}

type stubIdentityRepo struct {
	identities map[string]*domain.Identity
}

func (s *stubIdentityRepo) GetIdentityByID(_ context.Context, id string) (*domain.Identity, error) {
	if i, ok := s.identities[id]; ok {
		return i, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *stubIdentityRepo) CreateIdentity(_ context.Context, identity *domain.Identity) error {
	if s.identities == nil {
		s.identities = map[string]*domain.Identity{}
	}
	s.identities[identity.ID] = identity
	return nil
}

func (s *stubIdentityRepo) DeleteIdentity(_ context.Context, id string) error {
	delete(s.identities, id)
	return nil
}

type stubEventRepo struct{ recorded []string }

func (s *stubEventRepo) RecordEvent(_ context.Context, event *domain.WebhookEvent) error {
	for _, id := range s.recorded {
		if id == event.ProviderEventID {
			return domain.ErrDuplicateEvent
		}
	}
	s.recorded = append(s.recorded, event.ProviderEventID)
	return nil
}

func (s *stubEventRepo) WasProcessed(_ context.Context, _, providerEventID string) (bool, error) {
	for _, id := range s.recorded {
		if id == providerEventID {
			return true, nil
		}
	}
	return false, nil
}

type stubSubscriptionRepo struct{}

func (s *stubSubscriptionRepo) GetActiveByUserID(context.Context, string) (*domain.Subscription, error) {
	return nil, domain.ErrSubscriptionNotFound
}

func (s *stubSubscriptionRepo) GetByStripeSubscriptionID(context.Context, string) (*domain.Subscription, error) {
	return nil, domain.ErrSubscriptionNotFound
}

func (s *stubSubscriptionRepo) ActivateReplacing(_ context.Context, sub *domain.Subscription) error {
	sub.ID = "sub-1"
	return nil
}

func (s *stubSubscriptionRepo) UpdateSubscription(context.Context, string, domain.SubscriptionUpdate) error {
	return nil
}

type stubPaymentRepo struct{}

func (s *stubPaymentRepo) InsertPayment(context.Context, *domain.PaymentRecord) error { return nil }

type stubPlanRepo struct{}

func (s *stubPlanRepo) GetPlanBySlug(context.Context, string) (*domain.Plan, error) {
	return nil, domain.ErrPlanNotFound
}

type stubFetcher struct{}

func (s *stubFetcher) GetSubscription(context.Context, string) (*stripe.Subscription, error) {
	return &stripe.Subscription{}, nil
}

type stubMailer struct{ sent int }

func (s *stubMailer) SendPaymentEmail(context.Context, *mailer.PaymentEmail) (string, error) {
	s.sent++
	return "email-1", nil
}

// --- Fixtures ---

const (
	parentSecret  = "parent-secret"
	sessionSecret = "session-secret"
)

func newTestServer(t *testing.T) (*echo.Echo, *stubProfileRepo) {
	t.Helper()

	signer := bridge.NewTokenSigner(parentSecret, sessionSecret, "https://bridge.test", time.Hour, 7*24*time.Hour)
	profiles := &stubProfileRepo{}
	identities := &stubIdentityRepo{}
	sessions := cache.NewMemorySessionStore(time.Minute)
	exchange := bridge.NewExchangeService(signer, profiles, identities, sessions)

	webhooks := bridge.NewWebhookService(
		"",
		&stubEventRepo{},
		&stubSubscriptionRepo{},
		&stubPaymentRepo{},
		&stubPlanRepo{},
		&stubFetcher{},
		&stubMailer{},
	)

	api := NewBridgeAPI(exchange, webhooks, &stubMailer{})
	e := echo.New()
	api.RegisterRoutes(e)
	return e, profiles
}

func parentToken(t *testing.T, parentID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"parentId": parentID,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(parentSecret))
	require.NoError(t, err)
	return token
}

func doJSON(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestTokenExchangeEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	body := `{"access_token": "` + parentToken(t, "parent-1") + `", "profile_data": {"email": "user@example.com"}}`
	rec := doJSON(e, http.MethodPost, "/auth/token/exchange", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token"`)
	assert.Contains(t, rec.Body.String(), `"refresh_token"`)
	assert.Contains(t, rec.Body.String(), `"expires_in":3600`)
	assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)
}

func TestTokenExchangeEndpoint_MissingToken(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/token/exchange", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token is required")
}

func TestTokenExchangeEndpoint_InvalidToken(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/token/exchange", `{"access_token": "garbage"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid access token")
}

func TestSessionEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	body := `{"access_token": "` + parentToken(t, "parent-1") + `", "profile_data": {"email": "user@example.com", "fullName": "Jamie"}}`
	rec := doJSON(e, http.MethodPost, "/auth/token/exchange", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var session domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = doJSON(e, http.MethodGet, "/auth/session", "", map[string]string{
		"Authorization": "Bearer " + session.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user@example.com")
}

func TestSessionEndpoint_Unauthenticated(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	body := `{"access_token": "` + parentToken(t, "parent-1") + `"}`
	rec := doJSON(e, http.MethodPost, "/auth/token/exchange", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var session domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = doJSON(e, http.MethodPost, "/auth/token/refresh", `{"refresh_token": "`+session.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token"`)
}

func TestWebhookEndpoint_Acknowledges(t *testing.T) {
	e, _ := newTestServer(t)

	payload := `{"id": "evt_1", "type": "customer.created", "data": {"object": {}}}`
	rec := doJSON(e, http.MethodPost, "/billing/webhook", payload, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
}

func TestWebhookEndpoint_MalformedPayload(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/billing/webhook", "not json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Webhook Error:"))
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
