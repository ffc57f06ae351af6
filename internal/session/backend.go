package session

import (
	"fmt"

	"github.com/munaimtahir/keystone/pkg/config"
)

// NewBackend selects the persistence backend named in cfg.
func NewBackend(cfg config.ConsoleConfig) (Backend, error) {
	switch cfg.SessionBackend {
	case "", config.SessionBackendFile:
		return NewFile(DefaultPath(cfg.StateDir), cfg.SessionKey), nil
	case config.SessionBackendKeyring:
		return NewKeyring(""), nil
	case config.SessionBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("KEYSTONE_REDIS_ADDR is required for the redis session backend")
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
