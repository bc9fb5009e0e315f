/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ticket-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	PaymentEventQueue         string `mapstructure:"PAYMENT_EVENT_QUEUE"`
	PaymentProviderBaseURL    string `mapstructure:"PAYMENT_PROVIDER_BASE_URL"`
	PaymentProviderToken      string `mapstructure:"PAYMENT_PROVIDER_TOKEN"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	HoldDurationMinutes       int    `mapstructure:"HOLD_DURATION_MINUTES"`
	SweepSchedule             string `mapstructure:"SWEEP_SCHEDULE"`
	ReconcileSchedule         string `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileWindowMinutes    int    `mapstructure:"RECONCILE_WINDOW_MINUTES"`
	ReconcileAutoRepair       bool   `mapstructure:"RECONCILE_AUTO_REPAIR"`
	ReserveRateLimitPerMinute int    `mapstructure:"RESERVE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYMENT_EVENT_QUEUE", "ticket_service.payment_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ticket:rate_limit")
	viper.SetDefault("HOLD_DURATION_MINUTES", 30)
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1m")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 15m")
	viper.SetDefault("RECONCILE_WINDOW_MINUTES", 1440)
	viper.SetDefault("RECONCILE_AUTO_REPAIR", false)
	viper.SetDefault("RESERVE_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "TICKET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_QUEUE")
	_ = viper.BindEnv("PAYMENT_PROVIDER_BASE_URL")
	_ = viper.BindEnv("PAYMENT_PROVIDER_TOKEN")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "TICKET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("HOLD_DURATION_MINUTES")
	_ = viper.BindEnv("SWEEP_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_WINDOW_MINUTES")
	_ = viper.BindEnv("RECONCILE_AUTO_REPAIR")
	_ = viper.BindEnv("RESERVE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("TICKET_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ticket:rate_limit"
	}

	if config.HoldDurationMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive hold duration configured; using default\" minutes=%d", config.HoldDurationMinutes)
		config.HoldDurationMinutes = 30
	}
	if config.ReconcileWindowMinutes <= 0 {
		config.ReconcileWindowMinutes = 1440
	}
	if config.ReserveRateLimitPerMinute < 0 {
		config.ReserveRateLimitPerMinute = 0
	}
	if strings.TrimSpace(config.SweepSchedule) == "" {
		config.SweepSchedule = "@every 1m"
	}
	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = "@every 15m"
	}

	return
}
