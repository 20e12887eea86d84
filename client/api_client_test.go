package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appboost/bridge/domain"
)

func TestAPIClientExchangeToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token/exchange", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "parent-token", req.AccessToken)
		require.NotNil(t, req.ProfileData)
		assert.Equal(t, "Jamie Doe", req.ProfileData.FullName)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "access-1",
			"refresh_token": "refresh-1",
			"profile_id": "profile-1",
			"expires_in": 3600,
			"token_type": "bearer"
		}`))
	}))
	defer server.Close()

	c := NewAPIClient(server.URL)
	session, err := c.ExchangeToken(context.Background(), "parent-token", &domain.ProfileData{FullName: "Jamie Doe"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.Equal(t, "profile-1", session.ProfileID)
	assert.Equal(t, 3600, session.ExpiresIn)
	assert.Equal(t, "bearer", session.TokenType)
}

func TestAPIClientExchangeToken_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid access token"}`))
	}))
	defer server.Close()

	c := NewAPIClient(server.URL)
	_, err := c.ExchangeToken(context.Background(), "bad-token", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid access token", apiErr.Message)
}

func TestAPIClientGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/session", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "profile-1", "email": "user@example.com"}`))
	}))
	defer server.Close()

	c := NewAPIClient(server.URL)
	profile, err := c.GetProfile(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", profile.Email)
}
