package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	bridge "github.com/appboost/bridge"
	echoapi "github.com/appboost/bridge/api/echo"
	"github.com/appboost/bridge/cache"
	rediscache "github.com/appboost/bridge/cache/redis"
	"github.com/appboost/bridge/config"
	"github.com/appboost/bridge/internal/mailer"
	"github.com/appboost/bridge/internal/metrics"
	"github.com/appboost/bridge/internal/server"
	"github.com/appboost/bridge/internal/stripe"
	"github.com/appboost/bridge/log"
	"github.com/appboost/bridge/mongodb"
	"github.com/appboost/bridge/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting appboost-bridge server...")
	appLogger.Info(context.Background(), "Configuration loaded", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
		"base_url":      cfg.BaseURL,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	profileRepo, err := mongodb.NewProfileRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ProfileRepository", err, nil)
	}
	identityRepo, err := mongodb.NewIdentityRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize IdentityRepository", err, nil)
	}
	subscriptionRepo, err := mongodb.NewSubscriptionRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SubscriptionRepository", err, nil)
	}
	paymentRepo, err := mongodb.NewPaymentRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize PaymentRepository", err, nil)
	}
	planRepo, err := mongodb.NewPlanRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize PlanRepository", err, nil)
	}
	webhookEventRepo, err := mongodb.NewWebhookEventRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize WebhookEventRepository", err, nil)
	}

	// Session cache, redis when configured
	var sessionStore cache.SessionStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err, nil)
		}
		sessionStore = rediscache.NewSessionStore(redisClient, "appboost")
		appLogger.Info(ctx, "Using Redis session cache", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		sessionStore = cache.NewMemorySessionStore(time.Duration(cfg.AccessTokenTTLSec) * time.Second)
		appLogger.Info(ctx, "Using in-memory session cache")
	}

	// Services
	signer := bridge.NewTokenSigner(
		cfg.ParentTokenSecret,
		cfg.SessionTokenSecret,
		cfg.BaseURL,
		time.Duration(cfg.AccessTokenTTLSec)*time.Second,
		time.Duration(cfg.RefreshTokenTTLSec)*time.Second,
	)
	exchangeService := bridge.NewExchangeService(signer, profileRepo, identityRepo, sessionStore)

	stripeClient := stripe.NewClient(cfg.StripeSecretKey)
	mail := mailer.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)
	webhookService := bridge.NewWebhookService(
		cfg.StripeWebhookSecret,
		webhookEventRepo,
		subscriptionRepo,
		paymentRepo,
		planRepo,
		stripeClient,
		mail,
	)
	if cfg.StripeWebhookSecret == "" {
		appLogger.Warn(ctx, "STRIPE_WEBHOOK_SECRET not set, webhook signatures will NOT be verified")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.InitCustomMetrics(registry)

	api := echoapi.NewBridgeAPI(exchangeService, webhookService, mail)
	httpServer = server.NewHTTPServer(cfg, appLogger, api, registry)

	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
