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

// IdentityRepository implements domain.IdentityRepository.
type IdentityRepository struct {
	identities *mongo.Collection
}

// NewIdentityRepository creates a new IdentityRepository and ensures its indexes.
func NewIdentityRepository(ctx context.Context, db *mongo.Database) (domain.IdentityRepository, error) {
	repo := &IdentityRepository{
		identities: db.Collection(IdentitiesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create identity indexes")
	}
	return repo, nil
}

func (r *IdentityRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// A specific external identity links to exactly one local account.
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.identities.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", IdentitiesCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", IdentitiesCollection)
	return nil
}

// GetIdentityByID retrieves an identity record by its id (= profile id).
func (r *IdentityRepository) GetIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.identities.FindOne(ctx, bson.M{"_id": id}).Decode(&identity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting identity by id")
		return nil, err
	}
	return &identity, nil
}

// CreateIdentity inserts a new identity record.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	if _, err := r.identities.InsertOne(ctx, identity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("identity already exists for %s/%s", identity.Provider, identity.ProviderUserID)
		}
		log.Error().Err(err).Str("id", identity.ID).Msg("Error creating identity")
		return err
	}
	return nil
}

// DeleteIdentity removes an identity record.
func (r *IdentityRepository) DeleteIdentity(ctx context.Context, id string) error {
	if _, err := r.identities.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Error deleting identity")
		return err
	}
	return nil
}
