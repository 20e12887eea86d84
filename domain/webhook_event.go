package domain

import "time"

// WebhookEvent records a fully processed payment-provider event id for
// idempotent webhook handling. Rows are inserted after the delivery's writes
// succeed; a unique index on ProviderEventID makes concurrent duplicate
// deliveries visible as duplicate-key errors.
type WebhookEvent struct {
	ID              string    `bson:"_id,omitempty"`
	Provider        string    `bson:"provider"`
	ProviderEventID string    `bson:"provider_event_id"` // Unique
	EventType       string    `bson:"event_type"`
	ReceivedAt      time.Time `bson:"received_at"`
}

// WebhookProviderStripe names the only billing provider wired today.
const WebhookProviderStripe = "stripe"
