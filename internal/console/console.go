// Package console wires the session, transport, mirror, poller, gateway and
// detail views into one operator session.
package console

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/gateway"
	"github.com/munaimtahir/keystone/internal/metrics"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/internal/notify"
	"github.com/munaimtahir/keystone/internal/poller"
	"github.com/munaimtahir/keystone/internal/session"
	"github.com/munaimtahir/keystone/pkg/api/client"
	"github.com/munaimtahir/keystone/pkg/config"
)

// ErrNoSession is returned by operations that require a logged-in operator.
var ErrNoSession = gateway.ErrNoSession

// Console is one operator's view of the control plane.
type Console struct {
	cfg     config.ConsoleConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	session *session.Store
	api     *client.Client
	mirror  *mirror.Mirror
	views   *detail.Views
	poller  *poller.Poller
	notice  *notify.Slot
	gateway *gateway.Gateway

	// mu serialises login and logout.
	mu sync.Mutex
}

// New wires a console against cfg.APIBaseURL. store is expected to be
// restored already; a nil store keeps the session in memory.
func New(cfg config.ConsoleConfig, store *session.Store, logger *slog.Logger, mt *metrics.Metrics, opts ...client.Option) (*Console, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if store == nil {
		store = session.NewStore(nil, logger)
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if cfg.InsecureTLS {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		httpClient.Transport = tr
	}
	base := []client.Option{
		client.WithHTTPClient(httpClient),
		client.WithTokenSource(store),
		client.WithAuthScheme(cfg.AuthScheme),
		client.WithObserver(mt.ObserveRequest),
	}
	api, err := client.New(cfg.APIBaseURL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	c := &Console{
		cfg:     cfg,
		logger:  logger.With("component", "console"),
		metrics: mt,
		session: store,
		api:     api,
		notice:  &notify.Slot{},
	}
	c.mirror = mirror.New(api, logger, mt)
	c.views = detail.New(api, logger)
	c.poller = poller.New(c.mirror, store, logger, mt, cfg.PollInterval)
	c.gateway = gateway.New(api, c.mirror, c.views, c.poller, store, c.notice, logger, mt)
	return c, nil
}

func (c *Console) API() *client.Client { return c.api }
func (c *Console) Mirror() *mirror.Mirror { return c.mirror }
func (c *Console) Views() *detail.Views { return c.views }
func (c *Console) Poller() *poller.Poller { return c.poller }
func (c *Console) Gateway() *gateway.Gateway { return c.gateway }
func (c *Console) Notice() *notify.Slot { return c.notice }
func (c *Console) Session() *session.Store { return c.session }

// Authenticated reports whether a session token is held.
func (c *Console) Authenticated() bool {
	return c.session.Active()
}

// PublicHost is the host shown in application links.
func (c *Console) PublicHost() string {
	if h := strings.TrimSpace(c.cfg.PublicHost); h != "" {
		return h
	}
	return config.HostOf(c.api.BaseURL())
}

// Login exchanges credentials for a token. On failure the server message is
// placed in the notice slot and any existing session is left as it was.
func (c *Console) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.api.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		c.notice.Error(err.Error())
		c.logger.Info("login failed", "username", username, "error", err)
		return err
	}
	name := resp.Username
	if name == "" {
		name = strings.TrimSpace(username)
	}
	rec := session.Record{Token: resp.Token, Username: name, APIBaseURL: c.api.BaseURL()}
	if err := c.session.Set(ctx, rec); err != nil {
		if !c.session.Active() {
			c.notice.Error(err.Error())
			return err
		}
		c.logger.Warn("session not persisted", "error", err)
	}
	c.notice.Clear()
	c.logger.Info("logged in", "username", name)
	return nil
}

// Logout notifies the server best-effort and then clears the session, the
// mirror, the detail views, the poller and the notice. It always succeeds
// locally.
func (c *Console) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Active() {
		if err := c.api.Logout(ctx); err != nil {
			c.logger.Debug("server logout failed", "error", err)
		}
	}
	if err := c.session.Clear(ctx); err != nil {
		c.logger.Warn("persisted session not cleared", "error", err)
	}
	c.poller.Deactivate()
	c.mirror.Clear()
	c.views.Close()
	c.notice.Clear()
	c.logger.Info("logged out")
}

// Reload refreshes the mirror. A failure is shown in the notice slot and the
// mirror keeps its previous contents.
func (c *Console) Reload(ctx context.Context) error {
	if !c.session.Active() {
		return ErrNoSession
	}
	err := c.mirror.Reload(ctx)
	if err != nil && !errors.Is(err, mirror.ErrStale) {
		c.notice.Error(err.Error())
	}
	return err
}

// Health probes the control plane without authentication requirements.
func (c *Console) Health(ctx context.Context) (client.Health, error) {
	return c.api.Health(ctx)
}

// Watch polls until no application is queued or deploying.
func (c *Console) Watch(ctx context.Context, observe func(mirror.Snapshot)) error {
	if !c.session.Active() {
		return ErrNoSession
	}
	return c.poller.RunUntilIdle(ctx, observe)
}

// Run drives the background poller until ctx is cancelled.
func (c *Console) Run(ctx context.Context) {
	c.poller.Run(ctx)
}
