package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

// Collection names. Everything the bridge owns carries the ab_ prefix.
const (
	ProfilesCollection       = "ab_profiles"
	IdentitiesCollection     = "ab_identities"
	SubscriptionsCollection  = "ab_subscriptions"
	PaymentHistoryCollection = "ab_payment_history"
	PlansCollection          = "ab_plans"
	WebhookEventsCollection  = "ab_webhook_events"
)

var (
	clientInstance *mongo.Client
	clientOnce     sync.Once
	dbInstance     *mongo.Database
	dbOnce         sync.Once
)

// InitMongoDB initializes the MongoDB client and database instances.
// It should be called once at application startup.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	var err error
	clientOnce.Do(func() {
		log.Info().Msgf("Initializing MongoDB client with URI: %s", uri)
		clientOptions := options.Client().ApplyURI(uri)
		clientOptions.SetConnectTimeout(10 * time.Second)
		clientOptions.SetMonitor(otelmongo.NewMonitor())

		client, clientErr := mongo.Connect(clientOptions)
		if clientErr != nil {
			err = clientErr
			log.Error().Err(clientErr).Msg("Failed to connect to MongoDB")
			return
		}

		if pingErr := client.Ping(ctx, readpref.Primary()); pingErr != nil {
			err = pingErr
			log.Error().Err(pingErr).Msg("Failed to ping MongoDB primary")
			return
		}
		clientInstance = client
		log.Info().Msg("MongoDB client initialized successfully.")
	})
	if err != nil {
		return err
	}

	dbOnce.Do(func() {
		if clientInstance == nil {
			err = errors.New("cannot initialize database without a connected client")
			return
		}
		log.Info().Msgf("Using MongoDB database: %s", dbName)
		dbInstance = clientInstance.Database(dbName)
	})

	return err
}

// GetDB returns the MongoDB database instance.
// It must not be called before a successful InitMongoDB.
func GetDB() *mongo.Database {
	if dbInstance == nil {
		log.Fatal().Msg("MongoDB database instance is not initialized. Call InitMongoDB first.")
	}
	return dbInstance
}

// GetClient returns the MongoDB client instance.
func GetClient() *mongo.Client {
	if clientInstance == nil {
		log.Fatal().Msg("MongoDB client instance is not initialized. Call InitMongoDB first.")
	}
	return clientInstance
}

// Ping checks connectivity using the global client, for health checks.
func Ping(ctx context.Context) error {
	if clientInstance == nil {
		return errors.New("mongodb client is not initialized")
	}
	return clientInstance.Ping(ctx, readpref.Primary())
}

// CloseMongoDB disconnects the global client.
func CloseMongoDB(ctx context.Context) {
	if clientInstance == nil {
		return
	}
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error disconnecting MongoDB client")
	}
}
