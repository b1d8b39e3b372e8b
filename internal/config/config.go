// Package config handles application configuration loading from environment
// variables, providing a type-safe configuration structure with defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all daemon configuration values loaded from environment
// variables.
type Config struct {
	// Server configuration
	ListenAddr string // Address the ingest/metrics server listens on

	// Logging
	LogLevel  string // Log level (debug, info, warn, error)
	LogFormat string // Log format (json, console)
	LogFile   string // Path to log file (empty for stdout)

	// Analytics pipeline
	DestinationKey   string        // Analytics account key; empty disables the pipeline
	BufferCapacity   int           // Fixed capacity of the in-memory event buffer
	DispatchInterval time.Duration // Period between dispatcher cycles
	DestinationsPath string        // Path to the delivery clients YAML file

	// Object store (owning-item name lookups)
	ObjectStoreDriver string // "sqlite" or "postgres"
	ObjectStoreDSN    string // SQLite file path or PostgreSQL connection string

	// Sessions
	SessionSecret string // Cookie session signing secret

	// Monitoring
	EnableMetrics bool   // Whether to expose the Prometheus endpoint
	MetricsPath   string // Path for the metrics endpoint
}

// New creates a configuration from environment variables, applying defaults
// where variables are not set. An absent destination key is valid: it means
// usage analytics is disabled.
func New() *Config {
	return &Config{
		ListenAddr: getEnvString("LISTEN_ADDR", ":8080"),

		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "json"),
		LogFile:   getEnvString("LOG_FILE", ""),

		DestinationKey:   getEnvString("ANALYTICS_KEY", ""),
		BufferCapacity:   getEnvInt("ANALYTICS_BUFFER_CAPACITY", 256),
		DispatchInterval: getEnvDuration("ANALYTICS_DISPATCH_INTERVAL", time.Minute),
		DestinationsPath: getEnvString("ANALYTICS_DESTINATIONS_PATH", "./config/destinations.yaml"),

		ObjectStoreDriver: getEnvString("OBJECT_STORE_DRIVER", "sqlite"),
		ObjectStoreDSN:    getEnvString("OBJECT_STORE_DSN", "./data/objects.db"),

		SessionSecret: getEnvString("SESSION_SECRET", "usage-telemetry"),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		MetricsPath:   getEnvString("METRICS_PATH", "/metrics"),
	}
}

// getEnvString retrieves a string value from an environment variable, falling
// back to the provided default when the variable is not set.
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean value from an environment variable, falling
// back to the provided default when unset or unparsable.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer value from an environment variable, falling
// back to the provided default when unset or unparsable.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration value from an environment variable,
// falling back to the provided default when unset or unparsable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
