package stripe

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types dispatched by the webhook receiver.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// Event is the webhook delivery envelope. Data.Object stays raw until the
// dispatcher knows which shape to decode into.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: failed to parse event payload: %w", err)
	}
	return &event, nil
}

// CheckoutSession decodes the event object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("stripe: failed to decode checkout session: %w", err)
	}
	return &session, nil
}

// Invoice decodes the event object as an invoice.
func (e *Event) Invoice() (*Invoice, error) {
	var invoice Invoice
	if err := json.Unmarshal(e.Data.Object, &invoice); err != nil {
		return nil, fmt.Errorf("stripe: failed to decode invoice: %w", err)
	}
	return &invoice, nil
}

// Subscription decodes the event object as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, fmt.Errorf("stripe: failed to decode subscription: %w", err)
	}
	return &sub, nil
}

// CheckoutSession is the subset of Stripe's checkout session object the
// receiver reads. AppBoost-specific purchase context travels in Metadata.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

// Invoice is the subset of Stripe's invoice object the receiver reads.
type Invoice struct {
	ID               string `json:"id"`
	Subscription     string `json:"subscription"`
	AmountPaid       int64  `json:"amount_paid"`
	AmountDue        int64  `json:"amount_due"`
	Currency         string `json:"currency"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	PeriodStart      int64  `json:"period_start"`
	PeriodEnd        int64  `json:"period_end"`
}

// Subscription is the subset of Stripe's subscription object the receiver
// reads. Period bounds are unix seconds.
type Subscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	Quantity           int64             `json:"quantity"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
}

// PeriodBounds converts the subscription's unix period bounds to times.
func (s *Subscription) PeriodBounds() (start, end time.Time) {
	return time.Unix(s.CurrentPeriodStart, 0).UTC(), time.Unix(s.CurrentPeriodEnd, 0).UTC()
}
