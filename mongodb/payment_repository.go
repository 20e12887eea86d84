package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/appboost/bridge/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// PaymentRepository implements domain.PaymentRepository. The collection is
// append-only; there are no update paths.
type PaymentRepository struct {
	payments *mongo.Collection
}

// NewPaymentRepository creates a new PaymentRepository and ensures its indexes.
func NewPaymentRepository(ctx context.Context, db *mongo.Database) (domain.PaymentRepository, error) {
	repo := &PaymentRepository{
		payments: db.Collection(PaymentHistoryCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create payment history indexes")
	}
	return repo, nil
}

func (r *PaymentRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "subscription_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := r.payments.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", PaymentHistoryCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", PaymentHistoryCollection)
	return nil
}

// InsertPayment appends a payment-history row.
func (r *PaymentRepository) InsertPayment(ctx context.Context, payment *domain.PaymentRecord) error {
	if payment.ID == "" {
		payment.ID = NewDocumentID()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if _, err := r.payments.InsertOne(ctx, payment); err != nil {
		log.Error().Err(err).Str("subscription_id", payment.SubscriptionID).Msg("Error inserting payment record")
		return err
	}
	return nil
}
