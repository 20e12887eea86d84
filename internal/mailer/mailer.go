// Package mailer sends transactional billing emails through the Resend API.
package mailer

import (
	"context"
	"fmt"
)

// Email types accepted by the payment-email endpoint.
const (
	TypePaymentConfirmation   = "payment_confirmation"
	TypePaymentFailed         = "payment_failed"
	TypeSubscriptionCancelled = "subscription_cancelled"
)

// PaymentEmail describes one transactional billing email.
type PaymentEmail struct {
	To          string `json:"to"`
	Name        string `json:"name"`
	PlanName    string `json:"plan_name"`
	AmountCents int64  `json:"amount_cents"`
	Type        string `json:"type"`
	InvoiceURL  string `json:"invoice_url,omitempty"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
	PortalURL   string `json:"portal_url,omitempty"`
}

// Validate checks the required fields and the email type.
func (e *PaymentEmail) Validate() error {
	if e.To == "" {
		return fmt.Errorf("to is required")
	}
	switch e.Type {
	case TypePaymentConfirmation, TypePaymentFailed, TypeSubscriptionCancelled:
		return nil
	default:
		return fmt.Errorf("unknown email type %q", e.Type)
	}
}

// Mailer sends transactional emails. The returned id is the provider's
// message id.
type Mailer interface {
	SendPaymentEmail(ctx context.Context, email *PaymentEmail) (string, error)
}
