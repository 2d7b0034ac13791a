package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	AdminToken  string
	LogLevel    string

	// Push transport; empty gateway URL falls back to the log emitter.
	PushGatewayURL string
	PushAPIKey     string
	EmitTimeout    time.Duration

	// Lifecycle windows. Both are policy constants surfaced as
	// configuration rather than literals.
	StalenessWindowDays  int
	RetirementWindowDays int

	// Number of trading days an offering stays under price-limit tracking.
	TrackingDayBudget int

	// Job cadences.
	ReconcileInterval     time.Duration
	TrackingSweepInterval time.Duration
	ArchiveInterval       time.Duration
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		PushGatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
		PushAPIKey:     getEnv("PUSH_API_KEY", ""),
		EmitTimeout:    getEnvDuration("EMIT_TIMEOUT", 10*time.Second),

		StalenessWindowDays:  getEnvInt("STALENESS_WINDOW_DAYS", 90),
		RetirementWindowDays: getEnvInt("RETIREMENT_WINDOW_DAYS", 37),
		TrackingDayBudget:    getEnvInt("TRACKING_DAY_BUDGET", 25),

		ReconcileInterval:     getEnvDuration("RECONCILE_INTERVAL", 1*time.Hour),
		TrackingSweepInterval: getEnvDuration("TRACKING_SWEEP_INTERVAL", 24*time.Hour),
		ArchiveInterval:       getEnvDuration("ARCHIVE_INTERVAL", 24*time.Hour),
	}
}

// StalenessWindow returns the staleness window as a duration.
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.StalenessWindowDays) * 24 * time.Hour
}

// RetirementWindow returns the post-listing retirement window as a duration.
func (c *Config) RetirementWindow() time.Duration {
	return time.Duration(c.RetirementWindowDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %s", key, value, fallback)
		return fallback
	}
	return parsed
}
