package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// GetString retrieves an environment variable or returns a fallback when unset or blank.
func GetString(key, fallback string) string {
	if value, ok := lookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	value, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("invalid integer in environment", "key", key, "error", err)
		return fallback
	}
	return parsed
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("invalid boolean in environment", "key", key, "error", err)
		return fallback
	}
	return parsed
}

// GetMillis reads an integer number of milliseconds as a duration.
func GetMillis(key string, fallback time.Duration) time.Duration {
	ms := GetInt(key, int(fallback/time.Millisecond))
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
