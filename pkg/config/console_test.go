package config

import (
	"log/slog"
	"testing"
	"time"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func TestLoadConsoleConfigDefaults(t *testing.T) {
	withEnv(t, map[string]string{"KEYSTONE_STATE_DIR": "/tmp/ks"})
	cfg := LoadConsoleConfig()
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url %s", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.SessionBackend != SessionBackendFile {
		t.Fatalf("expected file backend, got %s", cfg.SessionBackend)
	}
	if cfg.LogFile != "/tmp/ks/keystone.log" {
		t.Fatalf("unexpected log file %s", cfg.LogFile)
	}
	if cfg.PublicHost != "localhost" {
		t.Fatalf("unexpected public host %s", cfg.PublicHost)
	}
}

func TestLoadConsoleConfigOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"KEYSTONE_API_BASE":         "https://panel.example.com:8080",
		"KEYSTONE_POLL_INTERVAL_MS": "500",
		"KEYSTONE_SESSION_BACKEND":  "REDIS",
		"KEYSTONE_REDIS_DB":         "not-a-number",
		"KEYSTONE_LOG_LEVEL":        "debug",
		"KEYSTONE_INSECURE":         "true",
	})
	cfg := LoadConsoleConfig()
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval)
	}
	if cfg.SessionBackend != SessionBackendRedis {
		t.Fatalf("backend should be lowercased, got %s", cfg.SessionBackend)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("invalid int should fall back, got %d", cfg.RedisDB)
	}
	if !cfg.InsecureTLS {
		t.Fatalf("expected insecure TLS to be enabled")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected level %v", cfg.LogLevel)
	}
	if cfg.PublicHost != "panel.example.com" {
		t.Fatalf("unexpected public host %s", cfg.PublicHost)
	}
}
