package domain

import "time"

// Profile represents an AppBoost account. Exactly one profile exists per
// external (parent application) user; it is created on the first token
// exchange for that user and never duplicated.
type Profile struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ExternalUserID string    `bson:"external_user_id" json:"external_user_id"` // Parent application user id, unique
	Email          string    `bson:"email,omitempty" json:"email,omitempty"`
	FullName       string    `bson:"full_name,omitempty" json:"full_name,omitempty"`
	AvatarURL      string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Identity is the auth-identity record backing a profile. Its id always equals
// the profile id; the pair is provisioned together during token exchange.
type Identity struct {
	ID             string    `bson:"_id,omitempty"`
	Provider       string    `bson:"provider"`         // Always "parent" today
	ProviderUserID string    `bson:"provider_user_id"` // Unique per provider
	Email          string    `bson:"email,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

// IdentityProviderParent names the parent application as identity source.
const IdentityProviderParent = "parent"
