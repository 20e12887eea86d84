// Package stripe is a minimal client for the parts of the Stripe API the
// billing webhook receiver needs: webhook signature verification, event
// payload decoding, and re-fetching subscription state.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the Stripe API host.
const DefaultBaseURL = "https://api.stripe.com"

// Client calls the Stripe REST API with the account's secret key.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Stripe API client. Outbound calls are bounded by a
// 10 second timeout.
func NewClient(secretKey string) *Client {
	return &Client{
		secretKey: secretKey,
		baseURL:   DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default API host,
// used by tests to point at a local stub.
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = baseURL
	return c
}

// GetSubscription fetches the current state of a subscription, used to
// refresh period bounds after an invoice.paid event.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	url := fmt.Sprintf("%s/v1/subscriptions/%s", c.baseURL, subscriptionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get subscription %s: %w", subscriptionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stripe: get subscription %s: status %d, body: %s", subscriptionID, resp.StatusCode, string(body))
	}

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("stripe: failed to decode subscription: %w", err)
	}
	return &sub, nil
}
