package domain

import "time"

// PlanSlugFree identifies the fallback plan a user lands on when their paid
// subscription is deleted upstream.
const PlanSlugFree = "free"

// Plan is a purchasable tier.
type Plan struct {
	ID         string    `bson:"_id,omitempty"`
	Slug       string    `bson:"slug"` // Unique
	Name       string    `bson:"name"`
	PriceCents int64     `bson:"price_cents"`
	Interval   string    `bson:"interval,omitempty"` // month, year, or empty for lifetime
	CreatedAt  time.Time `bson:"created_at"`
}
