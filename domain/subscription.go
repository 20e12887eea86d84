package domain

import "time"

// SubscriptionStatus captures the lifecycle of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription mirrors the payment-provider subscription state for a user.
// At most one subscription per user may be active at a time; the repository
// enforces this with a partial unique index and a transactional
// deactivate-then-insert.
type Subscription struct {
	ID                   string             `bson:"_id,omitempty"`
	UserID               string             `bson:"user_id"`
	PlanID               string             `bson:"plan_id"`
	PlanName             string             `bson:"plan_name,omitempty"`
	Status               SubscriptionStatus `bson:"status"`
	StripeCustomerID     string             `bson:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `bson:"stripe_subscription_id,omitempty"`
	LifetimeAccess       bool               `bson:"lifetime_access"`
	Quantity             int64              `bson:"quantity"`
	CurrentPeriodStart   *time.Time         `bson:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `bson:"current_period_end,omitempty"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
}

// SubscriptionUpdate holds the mutable fields synced from provider lifecycle
// events. Nil pointers leave the stored value untouched.
type SubscriptionUpdate struct {
	Status             *SubscriptionStatus
	Quantity           *int64
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}
