package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DatabasePath string // SQLite file for the local event store
	RedisURL     string // optional, enables the shared lock + event publishing
	MongoURI     string // optional, enables the fleet event sink
	JWTSecret    string

	// X API credentials
	XBearerToken       string
	XAPIKey            string
	XAPISecret         string
	XAccessToken       string
	XAccessTokenSecret string
	XAccountID         string

	// Classification / generation provider (OpenAI-compatible)
	ProviderBaseURL string
	ProviderAPIKey  string
	ClassifierModel string
	ResponderModel  string

	// Gateway tuning
	APITimeout   time.Duration
	OutboundRate float64 // self-imposed requests/second ceiling

	// Policy file location (hot-reloaded)
	PolicyPath string

	// Poller
	PollInterval time.Duration

	// Daily reset schedule (cron expression)
	DailyResetSchedule string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3001"),
		DatabasePath: getEnv("DATABASE_PATH", "echoreach.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		MongoURI:     getEnv("MONGODB_URI", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		XBearerToken:       getEnv("X_BEARER_TOKEN", ""),
		XAPIKey:            getEnv("X_API_KEY", ""),
		XAPISecret:         getEnv("X_API_SECRET", ""),
		XAccessToken:       getEnv("X_ACCESS_TOKEN", ""),
		XAccessTokenSecret: getEnv("X_ACCESS_TOKEN_SECRET", ""),
		XAccountID:         getEnv("X_ACCOUNT_ID", ""),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ClassifierModel: getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		ResponderModel:  getEnv("RESPONDER_MODEL", "gpt-4o-mini"),

		APITimeout:   getDurationEnv("API_TIMEOUT", 30*time.Second),
		OutboundRate: getFloatEnv("OUTBOUND_RATE", 1.0),

		PolicyPath: getEnv("POLICY_PATH", "policy.yaml"),

		PollInterval: getDurationEnv("POLL_INTERVAL", 5*time.Minute),

		DailyResetSchedule: getEnv("DAILY_RESET_SCHEDULE", "0 0 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
