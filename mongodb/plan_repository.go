package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/appboost/bridge/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PlanRepository implements domain.PlanRepository.
type PlanRepository struct {
	plans *mongo.Collection
}

// NewPlanRepository creates a new PlanRepository and ensures its indexes.
func NewPlanRepository(ctx context.Context, db *mongo.Database) (domain.PlanRepository, error) {
	repo := &PlanRepository{
		plans: db.Collection(PlansCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create plan indexes")
	}
	return repo, nil
}

func (r *PlanRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.plans.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", PlansCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", PlansCollection)
	return nil
}

// GetPlanBySlug retrieves a plan by its slug.
func (r *PlanRepository) GetPlanBySlug(ctx context.Context, slug string) (*domain.Plan, error) {
	var plan domain.Plan
	if err := r.plans.FindOne(ctx, bson.M{"slug": slug}).Decode(&plan); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPlanNotFound
		}
		log.Error().Err(err).Str("slug", slug).Msg("Error getting plan by slug")
		return nil, err
	}
	return &plan, nil
}
