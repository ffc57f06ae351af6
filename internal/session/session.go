package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/munaimtahir/keystone/pkg/jwt"
)

// ErrNotFound is returned by backends when no session has been persisted.
var ErrNotFound = errors.New("session not found")

// Record is the persisted form of a session.
type Record struct {
	Token      string `json:"token"`
	Username   string `json:"username,omitempty"`
	APIBaseURL string `json:"api_base_url,omitempty"`
}

// Backend persists the session outside process memory.
type Backend interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// Store owns the current session token. It is either absent or active; the
// in-memory value changes only through Restore, Set and Clear.
type Store struct {
	mu      sync.RWMutex
	rec     Record
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore wraps backend. A nil backend keeps the session in memory only.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if backend == nil {
		backend = NewMemory()
	}
	s := &Store{backend: backend, logger: logger, now: time.Now}
	if s.logger != nil {
		s.logger = s.logger.With("component", "session")
	}
	return s
}

// Token returns the active token, or "" when no session is active.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Token
}

// Active reports whether a token is held.
func (s *Store) Active() bool {
	return s.Token() != ""
}

// Username returns the name the session was opened for.
func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Username
}

// APIBaseURL returns the base URL persisted alongside the token.
func (s *Store) APIBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.APIBaseURL
}

// Restore loads a persisted session. A missing session is not an error. An
// expired JWT is discarded and the backend cleared.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	rec, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if strings.TrimSpace(rec.Token) == "" {
		s.setAPIBase(rec.APIBaseURL)
		return false, nil
	}
	if jwt.Expired(rec.Token, s.now()) {
		s.log("persisted session expired, discarding")
		if err := s.backend.Save(ctx, Record{APIBaseURL: rec.APIBaseURL}); err != nil {
			return false, fmt.Errorf("clear expired session: %w", err)
		}
		s.setAPIBase(rec.APIBaseURL)
		return false, nil
	}
	rec.Token = strings.TrimSpace(rec.Token)
	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
	return true, nil
}

// Set activates rec and persists it. The in-memory session is active even
// when persisting fails; the error is returned so callers can report it.
func (s *Store) Set(ctx context.Context, rec Record) error {
	rec.Token = strings.TrimSpace(rec.Token)
	if rec.Token == "" {
		return errors.New("session token is empty")
	}
	s.mu.Lock()
	if rec.APIBaseURL == "" {
		rec.APIBaseURL = s.rec.APIBaseURL
	}
	s.rec = rec
	s.mu.Unlock()
	if err := s.backend.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear drops the token in memory first, then in the backend. The base URL
// survives so the next login targets the same server.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	base := s.rec.APIBaseURL
	s.rec = Record{APIBaseURL: base}
	s.mu.Unlock()
	if base == "" {
		if err := s.backend.Clear(ctx); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}
	if err := s.backend.Save(ctx, Record{APIBaseURL: base}); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) setAPIBase(base string) {
	s.mu.Lock()
	s.rec.APIBaseURL = base
	s.mu.Unlock()
}

func (s *Store) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// Memory is a process-local backend.
type Memory struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, ErrNotFound
	}
	return *m.rec, nil
}

func (m *Memory) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
