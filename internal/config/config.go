package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Server
	Host        string
	Port        int
	Environment string
	TrustProxy  bool // honor X-Forwarded-For when behind a reverse proxy

	// Authentication
	JWTSecret string

	// Database (optional; in-memory persistence when empty)
	DatabaseURL string

	// Redis (optional; single-server mode when empty)
	RedisURL           string
	RedisChannelPrefix string

	// Collaboration engine
	HistorySize     int           // bounded per-document operation history
	LivenessSweep   time.Duration // presence sweep interval
	IdleThreshold   time.Duration // active -> idle
	AwayThreshold   time.Duration // idle -> away
	PersistQueueLen int           // buffered persistence requests
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnvInt("PORT", 8080),
		Environment:        getEnv("ENVIRONMENT", "development"),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "collab:"),
		HistorySize:        getEnvInt("HISTORY_SIZE", 100),
		LivenessSweep:      getEnvDuration("LIVENESS_SWEEP", 30*time.Second),
		IdleThreshold:      getEnvDuration("IDLE_THRESHOLD", 5*time.Minute),
		AwayThreshold:      getEnvDuration("AWAY_THRESHOLD", 15*time.Minute),
		PersistQueueLen:    getEnvInt("PERSIST_QUEUE_LEN", 1024),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
