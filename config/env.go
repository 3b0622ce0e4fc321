package config

import (
	"os"
	"time"

	"go.uber.org/zap"
)

// GetEnv reads an environment variable, returning "" when unset.
// Callers that need a default should check for "" and log a warning.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault reads an environment variable with a fallback value.
func GetEnvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// GetEnvDuration parses a duration environment variable, falling back when
// unset or malformed. Malformed values are logged, not fatal.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		if Logger != nil {
			Logger.Warn("Invalid duration in environment, using fallback",
				zap.String("key", key),
				zap.String("value", value),
				zap.Duration("fallback", fallback),
			)
		}
		return fallback
	}
	return d
}
