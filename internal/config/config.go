// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     int
	DataDir  string
	LogLevel string
	DevMode  bool

	// External feed endpoints
	MarketFeedBaseURL string
	FxFeedBaseURL     string

	// Scheduler intervals
	IntradayInterval   time.Duration
	HistoricalInterval time.Duration
	FxInterval         time.Duration

	// Recompute throttling
	DebounceWindow  time.Duration
	RateLimitWindow time.Duration

	// Optional S3-compatible backup target
	BackupEnabled   bool
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupRetention int // days
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8090),
		DataDir:  getEnv("DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		MarketFeedBaseURL: getEnv("MARKET_FEED_URL", "https://api.coingecko.com/api/v3"),
		FxFeedBaseURL:     getEnv("FX_FEED_URL", "https://api.exchangerate-api.com/v4/latest"),

		IntradayInterval:   getEnvAsDuration("INTRADAY_INTERVAL", time.Hour),
		HistoricalInterval: getEnvAsDuration("HISTORICAL_INTERVAL", 24*time.Hour),
		FxInterval:         getEnvAsDuration("FX_INTERVAL", 4*time.Hour),

		DebounceWindow:  getEnvAsDuration("RECOMPUTE_DEBOUNCE", 2*time.Second),
		RateLimitWindow: getEnvAsDuration("RECOMPUTE_RATE_LIMIT", 5*time.Second),

		BackupEnabled:   getEnvAsBool("BACKUP_ENABLED", false),
		BackupBucket:    getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:  getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_SECRET_KEY", ""),
		BackupRetention: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.BackupEnabled && c.BackupBucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
