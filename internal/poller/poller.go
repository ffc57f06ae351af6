package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/munaimtahir/keystone/internal/metrics"
	"github.com/munaimtahir/keystone/internal/mirror"
)

// DefaultInterval is the reconciliation period while active.
const DefaultInterval = 2 * time.Second

// Tick outcomes reported to metrics.
const (
	outcomeReloaded  = "reloaded"
	outcomeFailed    = "failed"
	outcomeDropped   = "dropped"
	outcomeNoSession = "no_session"
	outcomeSettled   = "settled"
)

// Mirror is the part of the resource mirror the poller drives.
type Mirror interface {
	Reload(ctx context.Context) error
	Snapshot() mirror.Snapshot
}

// Session reports whether an operator session is active.
type Session interface {
	Active() bool
}

// Poller reloads the mirror on a fixed interval while any application is in
// a transitional state. It is idle otherwise and holds no ticker.
type Poller struct {
	mirror   Mirror
	session  Session
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu     sync.Mutex
	active bool
	wake   chan struct{}
}

// New constructs an idle poller.
func New(m Mirror, s Session, logger *slog.Logger, mt *metrics.Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		mirror:   m,
		session:  s,
		logger:   logger,
		metrics:  mt,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p.logger = p.logger.With("component", "poller")
	return p
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Activate switches the poller on. It is a no-op without a session.
func (p *Poller) Activate() {
	if !p.session.Active() {
		return
	}
	p.mu.Lock()
	changed := !p.active
	p.active = true
	p.mu.Unlock()
	if changed {
		p.logger.Debug("poller activated")
		p.metrics.PollerActive(true)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Deactivate returns the poller to idle. The running loop stops its ticker on
// the next wake or tick.
func (p *Poller) Deactivate() {
	p.mu.Lock()
	changed := p.active
	p.active = false
	p.mu.Unlock()
	if changed {
		p.logger.Debug("poller idle")
		p.metrics.PollerActive(false)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Active reports the current state.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Run drives the poller until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.interval)
	defer p.logger.Info("poller stopped")

	for {
		if !p.Active() {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}

		ticker := time.NewTicker(p.interval)
		for p.Active() {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-p.wake:
			case <-ticker.C:
				p.tick(ctx)
			}
		}
		ticker.Stop()
	}
}

// RunUntilIdle activates the poller and drives it on the caller's goroutine
// until it settles. observe, if set, sees the mirror after every tick.
func (p *Poller) RunUntilIdle(ctx context.Context, observe func(mirror.Snapshot)) error {
	p.Activate()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for p.Active() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
			if observe != nil {
				observe(p.mirror.Snapshot())
			}
		}
	}
	return nil
}

// tick performs one reconciliation step and reports its outcome.
func (p *Poller) tick(ctx context.Context) string {
	result := p.step(ctx)
	p.metrics.PollTick(result)
	return result
}

func (p *Poller) step(ctx context.Context) string {
	if !p.session.Active() {
		p.Deactivate()
		return outcomeNoSession
	}
	if err := p.mirror.Reload(ctx); err != nil {
		if errors.Is(err, mirror.ErrStale) {
			return outcomeDropped
		}
		if ctx.Err() != nil {
			return outcomeDropped
		}
		p.logger.Warn("reload failed", "error", err)
		return outcomeFailed
	}
	if !p.mirror.Snapshot().AnyTransitional() {
		p.Deactivate()
		return outcomeSettled
	}
	return outcomeReloaded
}
