/**
 * @description
 * This package handles the configuration management for the zakat-service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
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

// Config holds all the configuration variables for the zakat-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	AssetServiceURL            string `mapstructure:"ASSET_SERVICE_URL"`
	AssetServiceInternalAPIKey string `mapstructure:"ASSET_SERVICE_INTERNAL_API_KEY"`
	PriceFeedBaseURL           string `mapstructure:"PRICE_FEED_BASE_URL"`
	PriceFeedAPIKey            string `mapstructure:"PRICE_FEED_API_KEY"`
	PriceFeedCacheTTLSeconds   int    `mapstructure:"PRICE_FEED_CACHE_TTL_SECONDS"`
	SnapshotEncryptionKey      string `mapstructure:"SNAPSHOT_ENCRYPTION_KEY"`
	HawlEvaluationSchedule     string `mapstructure:"HAWL_EVALUATION_SCHEDULE"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
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
	// Daily at 03:00; hawl checkpoints are day-granular.
	viper.SetDefault("HAWL_EVALUATION_SCHEDULE", "0 3 * * *")
	viper.SetDefault("PRICE_FEED_CACHE_TTL_SECONDS", 300)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ASSET_SERVICE_URL")
	_ = viper.BindEnv("ASSET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("PRICE_FEED_BASE_URL")
	_ = viper.BindEnv("PRICE_FEED_API_KEY")
	_ = viper.BindEnv("PRICE_FEED_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("SNAPSHOT_ENCRYPTION_KEY")
	_ = viper.BindEnv("HAWL_EVALUATION_SCHEDULE")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "ZAKAT_SERVICE_INTERNAL_API_KEY")

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
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("ZAKAT_SERVICE_INTERNAL_API_KEY"))
	}
	config.AssetServiceInternalAPIKey = strings.TrimSpace(config.AssetServiceInternalAPIKey)
	if config.AssetServiceInternalAPIKey == "" {
		config.AssetServiceInternalAPIKey = config.InternalAPIKey
	}
	if strings.TrimSpace(config.HawlEvaluationSchedule) == "" {
		config.HawlEvaluationSchedule = "0 3 * * *"
	}
	if config.PriceFeedCacheTTLSeconds < 0 {
		log.Printf("level=warn component=config msg=\"negative price feed cache ttl configured; coercing to zero\" ttl_seconds=%d", config.PriceFeedCacheTTLSeconds)
		config.PriceFeedCacheTTLSeconds = 0
	}

	return
}
