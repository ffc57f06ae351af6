package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/munaimtahir/keystone/internal/metrics"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

// ErrStale is returned when the mirror was cleared while a reload was in
// flight; the fetched snapshot is dropped.
var ErrStale = errors.New("reload superseded by reset")

// Lister fetches the two server-owned collections.
type Lister interface {
	ListRepositories(ctx context.Context) ([]client.Repository, error)
	ListApplications(ctx context.Context) ([]client.Application, error)
}

// Snapshot is an immutable view of both collections taken at one commit.
type Snapshot struct {
	Repositories []client.Repository
	Applications []client.Application
	LoadedAt     time.Time
	Version      uint64
}

// Repository finds a repository by id.
func (s Snapshot) Repository(id int64) (client.Repository, bool) {
	for _, r := range s.Repositories {
		if r.ID == id {
			return r, true
		}
	}
	return client.Repository{}, false
}

// Application finds an application by id.
func (s Snapshot) Application(id int64) (client.Application, bool) {
	for _, a := range s.Applications {
		if a.ID == id {
			return a, true
		}
	}
	return client.Application{}, false
}

// AnyTransitional reports whether any application is queued or deploying.
func (s Snapshot) AnyTransitional() bool {
	for _, a := range s.Applications {
		if a.Status.Transitional() {
			return true
		}
	}
	return false
}

// Mirror caches the repository and application collections. It is only ever
// replaced wholesale by Reload.
type Mirror struct {
	api     Lister
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	snap    Snapshot
	epoch   uint64
	version uint64
}

// New constructs an empty mirror backed by api.
func New(api Lister, logger *slog.Logger, m *metrics.Metrics) *Mirror {
	mr := &Mirror{api: api, logger: logger, metrics: m, now: time.Now}
	if mr.logger != nil {
		mr.logger = mr.logger.With("component", "mirror")
	}
	return mr
}

// Reload fetches both collections concurrently and commits them together.
// If either fetch fails the cache is left untouched and the error returned.
func (m *Mirror) Reload(ctx context.Context) error {
	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	var (
		repos []client.Repository
		apps  []client.Application
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repos, err = m.api.ListRepositories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		apps, err = m.api.ListApplications(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		m.metrics.Reload(err)
		if m.logger != nil {
			m.logger.Debug("reload failed", "error", err)
		}
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.metrics.Reload(ErrStale)
		return ErrStale
	}
	m.version++
	m.snap = Snapshot{
		Repositories: repos,
		Applications: apps,
		LoadedAt:     m.now(),
		Version:      m.version,
	}
	m.mu.Unlock()
	m.metrics.Reload(nil)
	return nil
}

// Snapshot returns the last committed collections.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Clear empties the cache and invalidates reloads already in flight.
func (m *Mirror) Clear() {
	m.mu.Lock()
	m.epoch++
	m.version++
	m.snap = Snapshot{Version: m.version}
	m.mu.Unlock()
}
