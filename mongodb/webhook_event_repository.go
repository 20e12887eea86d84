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

// WebhookEventRepository implements domain.WebhookEventRepository. It is the
// idempotency-key store for webhook deliveries: the unique index on the
// provider event id rejects replays.
type WebhookEventRepository struct {
	events *mongo.Collection
}

// NewWebhookEventRepository creates a new WebhookEventRepository and ensures
// its indexes.
func NewWebhookEventRepository(ctx context.Context, db *mongo.Database) (domain.WebhookEventRepository, error) {
	repo := &WebhookEventRepository{
		events: db.Collection(WebhookEventsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create webhook event indexes")
	}
	return repo, nil
}

func (r *WebhookEventRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Processed-event rows only matter within the provider's retry
			// window; expire them after 30 days.
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 3600),
		},
	}
	if _, err := r.events.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", WebhookEventsCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", WebhookEventsCollection)
	return nil
}

// WasProcessed reports whether the provider event id was already recorded.
func (r *WebhookEventRepository) WasProcessed(ctx context.Context, provider, providerEventID string) (bool, error) {
	filter := bson.M{"provider": provider, "provider_event_id": providerEventID}
	if err := r.events.FindOne(ctx, filter).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		log.Error().Err(err).Str("provider_event_id", providerEventID).Msg("Error looking up webhook event")
		return false, err
	}
	return true, nil
}

// RecordEvent inserts the event id, returning domain.ErrDuplicateEvent when
// this delivery was already processed.
func (r *WebhookEventRepository) RecordEvent(ctx context.Context, event *domain.WebhookEvent) error {
	if event.ID == "" {
		event.ID = NewDocumentID()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	if _, err := r.events.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEvent
		}
		log.Error().Err(err).Str("provider_event_id", event.ProviderEventID).Msg("Error recording webhook event")
		return err
	}
	return nil
}
