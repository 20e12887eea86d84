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

// SubscriptionRepository implements domain.SubscriptionRepository.
type SubscriptionRepository struct {
	subscriptions *mongo.Collection
}

// NewSubscriptionRepository creates a new SubscriptionRepository and ensures
// its indexes, including the partial unique index that enforces a single
// active subscription per user.
func NewSubscriptionRepository(ctx context.Context, db *mongo.Database) (domain.SubscriptionRepository, error) {
	repo := &SubscriptionRepository{
		subscriptions: db.Collection(SubscriptionsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create subscription indexes")
	}
	return repo, nil
}

func (r *SubscriptionRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// At most one active subscription per user. Concurrent webhook
			// deliveries racing to activate both fail on this index instead
			// of leaving two active rows.
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(domain.SubscriptionStatusActive)}),
		},
		{
			Keys:    bson.D{{Key: "stripe_subscription_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	if _, err := r.subscriptions.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", SubscriptionsCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", SubscriptionsCollection)
	return nil
}

// GetActiveByUserID returns the user's active subscription, if any.
func (r *SubscriptionRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	filter := bson.M{"user_id": userID, "status": domain.SubscriptionStatusActive}
	if err := r.subscriptions.FindOne(ctx, filter).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSubscriptionNotFound
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Error getting active subscription")
		return nil, err
	}
	return &sub, nil
}

// GetByStripeSubscriptionID resolves a subscription by its provider id.
func (r *SubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := r.subscriptions.FindOne(ctx, bson.M{"stripe_subscription_id": stripeSubID}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSubscriptionNotFound
		}
		log.Error().Err(err).Str("stripe_subscription_id", stripeSubID).Msg("Error getting subscription by provider id")
		return nil, err
	}
	return &sub, nil
}

// ActivateReplacing cancels any currently active subscription of the user and
// inserts sub as the new active one. Both writes run inside one transaction so
// a crash between them cannot leave the user without a subscription row, and
// the partial unique index turns a concurrent double-activation into an error.
func (r *SubscriptionRepository) ActivateReplacing(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = NewDocumentID()
	}
	now := time.Now().UTC()
	sub.Status = domain.SubscriptionStatusActive
	sub.CreatedAt = now
	sub.UpdatedAt = now

	session, err := r.subscriptions.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		deactivate := bson.M{
			"$set": bson.M{
				"status":     domain.SubscriptionStatusCancelled,
				"updated_at": now,
			},
		}
		filter := bson.M{"user_id": sub.UserID, "status": domain.SubscriptionStatusActive}
		if _, err := r.subscriptions.UpdateMany(ctx, filter, deactivate); err != nil {
			return nil, fmt.Errorf("failed to deactivate previous subscription: %w", err)
		}
		if _, err := r.subscriptions.InsertOne(ctx, sub); err != nil {
			return nil, fmt.Errorf("failed to insert subscription: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", sub.UserID).Msg("Error activating subscription")
	}
	return err
}

// UpdateSubscription applies the non-nil fields of update to a subscription.
func (r *SubscriptionRepository) UpdateSubscription(ctx context.Context, id string, update domain.SubscriptionUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	if update.CurrentPeriodStart != nil {
		set["current_period_start"] = *update.CurrentPeriodStart
	}
	if update.CurrentPeriodEnd != nil {
		set["current_period_end"] = *update.CurrentPeriodEnd
	}

	res, err := r.subscriptions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Error updating subscription")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}
