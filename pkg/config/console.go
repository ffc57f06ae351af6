package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backends understood by the console.
const (
	SessionBackendFile    = "file"
	SessionBackendKeyring = "keyring"
	SessionBackendRedis   = "redis"
)

// ConsoleConfig holds runtime configuration for the operator console.
type ConsoleConfig struct {
	APIBaseURL     string
	AuthScheme     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	InsecureTLS    bool
	SessionBackend string
	StateDir       string
	SessionKey     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MetricsAddr    string
	LogLevel       slog.Level
	LogFile        string
	PublicHost     string
}

// LoadConsoleConfig reads an optional .env file and then constructs a
// ConsoleConfig from environment variables.
func LoadConsoleConfig() ConsoleConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}
	stateDir := GetString("KEYSTONE_STATE_DIR", defaultStateDir())
	cfg := ConsoleConfig{
		APIBaseURL:     GetString("KEYSTONE_API_BASE", "http://localhost:8000"),
		AuthScheme:     GetString("KEYSTONE_AUTH_SCHEME", "Token"),
		PollInterval:   GetMillis("KEYSTONE_POLL_INTERVAL_MS", 2000*time.Millisecond),
		RequestTimeout: time.Duration(GetInt("KEYSTONE_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		InsecureTLS:    GetBool("KEYSTONE_INSECURE", false),
		SessionBackend: strings.ToLower(GetString("KEYSTONE_SESSION_BACKEND", SessionBackendFile)),
		StateDir:       stateDir,
		SessionKey:     GetString("KEYSTONE_SESSION_KEY", ""),
		RedisAddr:      GetString("KEYSTONE_REDIS_ADDR", ""),
		RedisPassword:  GetString("KEYSTONE_REDIS_PASSWORD", ""),
		RedisDB:        GetInt("KEYSTONE_REDIS_DB", 0),
		MetricsAddr:    GetString("KEYSTONE_METRICS_ADDR", ""),
		LogLevel:       ParseLevel(GetString("KEYSTONE_LOG_LEVEL", "info")),
		LogFile:        GetString("KEYSTONE_LOG_FILE", filepath.Join(stateDir, "keystone.log")),
	}
	cfg.PublicHost = GetString("KEYSTONE_PUBLIC_HOST", HostOf(cfg.APIBaseURL))
	return cfg
}

// ParseLevel maps a level name onto slog levels, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HostOf extracts the hostname of a base URL, tolerating a missing scheme.
func HostOf(base string) string {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return "localhost"
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "keystone")
	}
	return filepath.Join(base, "keystone")
}
