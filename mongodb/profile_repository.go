package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appboost/bridge/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProfileRepository implements domain.ProfileRepository.
type ProfileRepository struct {
	profiles *mongo.Collection
}

// NewProfileRepository creates a new ProfileRepository and ensures its indexes.
func NewProfileRepository(ctx context.Context, db *mongo.Database) (domain.ProfileRepository, error) {
	repo := &ProfileRepository{
		profiles: db.Collection(ProfilesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation can fail when compatible indexes already exist.
		log.Warn().Err(err).Msg("Failed to create profile indexes")
	}
	return repo, nil
}

func (r *ProfileRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// One profile per parent-application user.
			Keys:    bson.D{{Key: "external_user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	if _, err := r.profiles.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", ProfilesCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", ProfilesCollection)
	return nil
}

// GetProfileByID retrieves a profile by its id.
func (r *ProfileRepository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting profile by id")
		return nil, err
	}
	return &profile, nil
}

// GetProfileByExternalID retrieves the profile mapped to a parent user id.
func (r *ProfileRepository) GetProfileByExternalID(ctx context.Context, externalUserID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.profiles.FindOne(ctx, bson.M{"external_user_id": externalUserID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		log.Error().Err(err).Str("external_user_id", externalUserID).Msg("Error getting profile by external id")
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile inserts the profile or updates the mutable attributes of an
// existing document with the same id.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"external_user_id": profile.ExternalUserID,
			"email":            profile.Email,
			"full_name":        profile.FullName,
			"avatar_url":       profile.AvatarURL,
			"updated_at":       profile.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": profile.CreatedAt,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := r.profiles.UpdateOne(ctx, bson.M{"_id": profile.ID}, update, opts); err != nil {
		log.Error().Err(err).Str("id", profile.ID).Msg("Error upserting profile")
		return err
	}
	return nil
}
