package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the bridge server.
// Tags use mapstructure for Viper unmarshalling and env var binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Identity bridge secrets. ParentTokenSecret verifies tokens issued by the
	// parent application; SessionTokenSecret signs the sessions we mint.
	ParentTokenSecret  string `mapstructure:"PARENT_TOKEN_SECRET"`
	SessionTokenSecret string `mapstructure:"SESSION_TOKEN_SECRET"`
	BaseURL            string `mapstructure:"BASE_URL"` // Issuer for minted tokens

	AccessTokenTTLSec  int `mapstructure:"ACCESS_TOKEN_TTL_SEC"`
	RefreshTokenTTLSec int `mapstructure:"REFRESH_TOKEN_TTL_SEC"`

	// Billing.
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"` // Optional: absence degrades to unverified parsing
	ResendAPIKey        string `mapstructure:"RESEND_API_KEY"`
	EmailFrom           string `mapstructure:"EMAIL_FROM"`

	// Session cache. When REDIS_ADDR is empty the in-memory store is used.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/appboost-bridge/")
	v.AddConfigPath("$HOME/.appboost-bridge")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/appboost_dev")
	v.SetDefault("MONGO_DB_NAME", "appboost_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "appboost-bridge")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("ACCESS_TOKEN_TTL_SEC", 3600)     // 1 hour
	v.SetDefault("REFRESH_TOKEN_TTL_SEC", 604800)  // 7 days
	v.SetDefault("EMAIL_FROM", "AppBoost <billing@appboost.io>")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to env vars and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Validate checks required secrets once at startup so handlers never run with
// partial configuration. STRIPE_WEBHOOK_SECRET is deliberately not required:
// its absence switches the webhook receiver into the unverified development
// mode, which is logged as unsafe.
func (c *ServerConfig) Validate() error {
	var missing []string
	required := []struct {
		key string
		val string
	}{
		{"PARENT_TOKEN_SECRET", c.ParentTokenSecret},
		{"SESSION_TOKEN_SECRET", c.SessionTokenSecret},
		{"BASE_URL", c.BaseURL},
		{"MONGO_URI", c.MongoURI},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"RESEND_API_KEY", c.ResendAPIKey},
	}
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
