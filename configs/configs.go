// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// ServerPort is the port the read-surface HTTP server listens on.
	ServerPort string

	// Cache contains settings for the durable snapshot cache.
	Cache CacheConfig

	// Providers contains upstream market-data provider settings.
	Providers ProviderConfig
}

// CacheConfig holds settings for the durable snapshot cache.
type CacheConfig struct {
	// Backend selects the cache adapter: "file" or "redis".
	Backend string

	// DataDir is the directory for the file backend.
	DataDir string

	// RedisURL is the redis connection URL for the redis backend.
	RedisURL string

	// RedisPassword overrides the password from RedisURL when set.
	RedisPassword string
}

// ProviderConfig holds upstream provider settings.
type ProviderConfig struct {
	// PriceBaseURL is the base URL of the spot-price / market-chart provider.
	PriceBaseURL string

	// RateBaseURL is the base URL of the conversion-rate provider.
	RateBaseURL string

	// RateAPIKey is the conversion-rate provider credential.
	// Injected via environment, never embedded in code.
	RateAPIKey string

	// HistoryDays is the lookback window for daily price history.
	HistoryDays int
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		ServerPort: getEnv("SERVER_PORT", "8090"),
		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "file"),
			DataDir:       getEnv("CACHE_DATA_DIR", "data"),
			RedisURL:      getEnv("CACHE_REDIS_URL", "redis://localhost:6379/0"),
			RedisPassword: getEnv("CACHE_REDIS_PASSWORD", ""),
		},
		Providers: ProviderConfig{
			PriceBaseURL: getEnv("PRICE_API_URL", "https://api.coingecko.com/api/v3"),
			RateBaseURL:  getEnv("RATE_API_URL", "https://v6.exchangerate-api.com/v6"),
			RateAPIKey:   getEnv("RATE_API_KEY", ""),
			HistoryDays:  getEnvInt("HISTORY_DAYS", 7),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
