package domain

import "time"

// PaymentStatus classifies a payment-history row.
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord is an append-only log row per charge. Rows are never mutated
// after insert.
type PaymentRecord struct {
	ID              string        `bson:"_id,omitempty"`
	SubscriptionID  string        `bson:"subscription_id"`
	UserID          string        `bson:"user_id"`
	AmountCents     int64         `bson:"amount_cents"`
	Currency        string        `bson:"currency"`
	Status          PaymentStatus `bson:"status"`
	StripeInvoiceID string        `bson:"stripe_invoice_id,omitempty"`
	StripeSessionID string        `bson:"stripe_session_id,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
}
