package domain

import (
	"context"
	"errors"
)

// Sentinel errors returned by repositories. Services branch on these instead
// of driver-specific error types.
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrDuplicateEvent       = errors.New("webhook event already processed")
)

// ProfileRepository manages AppBoost profiles.
type ProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (*Profile, error)
	GetProfileByExternalID(ctx context.Context, externalUserID string) (*Profile, error)
	// UpsertProfile inserts the profile or, when a document with the same id
	// exists, updates its mutable attributes.
	UpsertProfile(ctx context.Context, profile *Profile) error
}

// IdentityRepository manages auth-identity records.
type IdentityRepository interface {
	GetIdentityByID(ctx context.Context, id string) (*Identity, error)
	CreateIdentity(ctx context.Context, identity *Identity) error
	// DeleteIdentity removes an identity, used to roll back a half-finished
	// provisioning attempt.
	DeleteIdentity(ctx context.Context, id string) error
}

// SubscriptionRepository manages subscription rows.
type SubscriptionRepository interface {
	GetActiveByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*Subscription, error)
	// ActivateReplacing marks any currently active subscription of the user as
	// cancelled and inserts sub as the new active one, inside a single
	// transaction. The partial unique index on (user_id, status=active) makes
	// a concurrent double-activation fail rather than silently interleave.
	ActivateReplacing(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, id string, update SubscriptionUpdate) error
}

// PaymentRepository appends payment-history rows.
type PaymentRepository interface {
	InsertPayment(ctx context.Context, payment *PaymentRecord) error
}

// PlanRepository reads purchasable plans.
type PlanRepository interface {
	GetPlanBySlug(ctx context.Context, slug string) (*Plan, error)
}

// WebhookEventRepository is the idempotency-key store for webhook processing.
// Event ids are recorded only after their delivery was fully applied, so a
// delivery that failed halfway stays retryable.
type WebhookEventRepository interface {
	// RecordEvent inserts the event id, returning ErrDuplicateEvent when the
	// same provider event id was recorded before.
	RecordEvent(ctx context.Context, event *WebhookEvent) error
	// WasProcessed reports whether the provider event id was already recorded.
	WasProcessed(ctx context.Context, provider, providerEventID string) (bool, error)
}
