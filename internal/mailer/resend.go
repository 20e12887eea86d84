package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appboost/bridge/internal/metrics"
)

// DefaultResendEndpoint is the Resend send-email API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ResendMailer implements Mailer against the Resend REST API.
type ResendMailer struct {
	apiKey     string
	from       string
	endpoint   string
	httpClient *http.Client
}

// NewResendMailer creates a new ResendMailer. Sends time out after 10 seconds.
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		apiKey:   apiKey,
		from:     from,
		endpoint: DefaultResendEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewResendMailerWithEndpoint points the mailer at a non-default endpoint,
// used by tests.
func NewResendMailerWithEndpoint(apiKey, from, endpoint string) *ResendMailer {
	m := NewResendMailer(apiKey, from)
	m.endpoint = endpoint
	return m
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// SendPaymentEmail renders and sends one billing email, returning the
// provider message id.
func (m *ResendMailer) SendPaymentEmail(ctx context.Context, email *PaymentEmail) (string, error) {
	if err := email.Validate(); err != nil {
		return "", err
	}

	html, err := renderHTML(email)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{email.To},
		Subject: renderSubject(email),
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		metrics.IncEmailFailure()
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncEmailFailure()
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var result resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode email response: %w", err)
	}

	metrics.IncEmailSent()
	return result.ID, nil
}
