package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appboost/bridge/domain"
)

// TokenEndpoint is the server surface the bootstrapper needs: exchange,
// refresh, and session introspection. *APIClient satisfies it.
type TokenEndpoint interface {
	ExchangeToken(ctx context.Context, parentToken string, profileData *domain.ProfileData) (*domain.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	GetProfile(ctx context.Context, accessToken string) (*domain.Profile, error)
}

// APIClient talks to the bridge HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the bridge API at baseURL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type exchangeRequest struct {
	AccessToken string              `json:"access_token"`
	ProfileData *domain.ProfileData `json:"profile_data,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// APIError is a non-2xx response from the bridge API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge api: status %d: %s", e.StatusCode, e.Message)
}

// ExchangeToken swaps a parent platform token for a bridge session.
func (c *APIClient) ExchangeToken(ctx context.Context, parentToken string, profileData *domain.ProfileData) (*domain.Session, error) {
	var session domain.Session
	err := c.postJSON(ctx, "/auth/token/exchange", exchangeRequest{
		AccessToken: parentToken,
		ProfileData: profileData,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RefreshToken mints a new session from a refresh token.
func (c *APIClient) RefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var session domain.Session
	err := c.postJSON(ctx, "/auth/token/refresh", refreshRequest{RefreshToken: refreshToken}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetProfile fetches the profile behind an access token. A non-2xx response
// is returned as *APIError, which the bootstrapper uses to detect that a
// cached token is no longer accepted.
func (c *APIClient) GetProfile(ctx context.Context, accessToken string) (*domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/session", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile domain.Profile
	if err := c.do(req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *APIClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(data)}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
