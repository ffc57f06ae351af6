package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/metrics"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/internal/notify"
	"github.com/munaimtahir/keystone/internal/validate"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

var (
	// ErrBusy is returned while another mutating action is in flight.
	ErrBusy = errors.New("another action is in progress")
	// ErrPrecondition matches every *PreconditionError.
	ErrPrecondition = errors.New("action not allowed")
	// ErrNoSession is returned when an action is attempted while logged out.
	ErrNoSession = errors.New("not logged in")
)

// PreconditionError explains why an action was refused before dispatch.
type PreconditionError struct {
	Action  string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func refuse(action, format string, args ...any) *PreconditionError {
	return &PreconditionError{Action: action, Message: fmt.Sprintf(format, args...)}
}

// API is the set of mutating control plane calls the gateway dispatches.
type API interface {
	CreateRepository(ctx context.Context, input client.CreateRepositoryInput) (client.Repository, error)
	CreateApplication(ctx context.Context, input client.CreateApplicationInput) (client.Application, error)
	PrepareRepository(ctx context.Context, id int64) (client.PrepareResult, error)
	TriggerDeployment(ctx context.Context, appID int64, kind client.DeploymentType) (client.Deployment, error)
	StopApplication(ctx context.Context, appID int64) (client.ActionResult, error)
	ContainerStatus(ctx context.Context, appID int64) (client.ContainerStatus, error)
}

// Mirror is the resource mirror as seen by the gateway.
type Mirror interface {
	Reload(ctx context.Context) error
	Snapshot() mirror.Snapshot
}

// Views is the inspection scope the gateway opens and updates.
type Views interface {
	Inspect(ctx context.Context, repoID int64) (client.InspectionResult, error)
	ApplyPrepare(repoID int64, res client.PrepareResult)
}

// Poller is activated after every deploy-class action.
type Poller interface {
	Activate()
}

// Session reports whether an operator is logged in.
type Session interface {
	Active() bool
}

// Gateway runs operator actions through validation, gating, dispatch and
// reload. Only one mutating action runs at a time.
type Gateway struct {
	api     API
	mirror  Mirror
	views   Views
	poller  Poller
	session Session
	notice  *notify.Slot
	logger  *slog.Logger
	metrics *metrics.Metrics

	busy atomic.Bool
}

// New wires a gateway. A nil session is treated as always logged in.
func New(api API, m Mirror, views Views, p Poller, s Session, notice *notify.Slot, logger *slog.Logger, mt *metrics.Metrics) *Gateway {
	if notice == nil {
		notice = &notify.Slot{}
	}
	g := &Gateway{
		api:     api,
		mirror:  m,
		views:   views,
		poller:  p,
		session: s,
		notice:  notice,
		logger:  logger,
		metrics: mt,
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g.logger = g.logger.With("component", "gateway")
	return g
}

// Busy reports whether a mutating action is in flight. Action controls are
// disabled while it is set.
func (g *Gateway) Busy() bool {
	return g.busy.Load()
}

type action[T any] struct {
	name     string
	check    func(snap mirror.Snapshot) error
	dispatch func(ctx context.Context) (T, error)
	// reload is skipped for read-only actions.
	reload bool
	// after runs on success and returns the info banner text.
	after func(res T) string
}

func run[T any](ctx context.Context, g *Gateway, a action[T]) (T, error) {
	var zero T
	if !g.loggedIn() {
		return zero, g.fail(a.name, ErrNoSession)
	}
	if a.check != nil {
		if err := a.check(g.mirror.Snapshot()); err != nil {
			return zero, g.fail(a.name, err)
		}
	}
	if !g.busy.CompareAndSwap(false, true) {
		return zero, ErrBusy
	}
	defer g.busy.Store(false)

	res, err := a.dispatch(ctx)
	if err != nil {
		return zero, g.fail(a.name, err)
	}
	g.metrics.Action(a.name, nil)
	g.logger.Info("action dispatched", "action", a.name)

	var reloadErr error
	// a logout during dispatch leaves nothing to reload into
	if a.reload && g.loggedIn() {
		if reloadErr = g.mirror.Reload(ctx); reloadErr != nil {
			g.logger.Warn("reload after action failed", "action", a.name, "error", reloadErr)
		}
	}
	msg := ""
	if a.after != nil {
		msg = a.after(res)
	}
	switch {
	case reloadErr != nil && !errors.Is(reloadErr, mirror.ErrStale):
		g.notice.Error(reloadErr.Error())
	case msg != "":
		g.notice.Info(msg)
	}
	return res, nil
}

func (g *Gateway) loggedIn() bool {
	return g.session == nil || g.session.Active()
}

func (g *Gateway) fail(name string, err error) error {
	g.metrics.Action(name, err)
	g.notice.Error(err.Error())
	switch {
	case errors.Is(err, validate.ErrInvalid), errors.Is(err, ErrPrecondition), errors.Is(err, ErrNoSession):
		g.logger.Debug("action refused", "action", name, "reason", err)
	default:
		g.logger.Warn("action failed", "action", name, "error", err)
	}
	return err
}

// AddRepository validates form and registers the repository.
func (g *Gateway) AddRepository(ctx context.Context, form validate.RepositoryForm) (client.Repository, error) {
	input, err := validate.Repository(form)
	if err != nil {
		return client.Repository{}, g.fail("add_repository", err)
	}
	return run(ctx, g, action[client.Repository]{
		name: "add_repository",
		dispatch: func(ctx context.Context) (client.Repository, error) {
			return g.api.CreateRepository(ctx, input)
		},
		reload: true,
		after: func(repo client.Repository) string {
			return fmt.Sprintf("Repository %s added", input.Name)
		},
	})
}

// AddApplication validates form and creates the application.
func (g *Gateway) AddApplication(ctx context.Context, form validate.ApplicationForm) (client.Application, error) {
	input, err := validate.Application(form)
	if err != nil {
		return client.Application{}, g.fail("add_application", err)
	}
	return run(ctx, g, action[client.Application]{
		name: "add_application",
		dispatch: func(ctx context.Context) (client.Application, error) {
			return g.api.CreateApplication(ctx, input)
		},
		reload: true,
		after: func(app client.Application) string {
			return fmt.Sprintf("Application %s created", input.Name)
		},
	})
}

// InspectRepository triggers inspection and opens its detail view.
func (g *Gateway) InspectRepository(ctx context.Context, repoID int64) (client.InspectionResult, error) {
	return run(ctx, g, action[client.InspectionResult]{
		name: "inspect_repository",
		check: func(snap mirror.Snapshot) error {
			repo, ok := snap.Repository(repoID)
			if !ok {
				return refuse("inspect_repository", "Repository %d not found", repoID)
			}
			if !CanInspect(repo) {
				return refuse("inspect_repository", "Repository %s is already being inspected", repo.Name)
			}
			return nil
		},
		dispatch: func(ctx context.Context) (client.InspectionResult, error) {
			res, err := g.views.Inspect(ctx, repoID)
			if errors.Is(err, detail.ErrSuperseded) {
				return res, nil
			}
			return res, err
		},
		reload: true,
	})
}

// PrepareRepository prepares an inspected repository for deployment.
func (g *Gateway) PrepareRepository(ctx context.Context, repoID int64) (client.PrepareResult, error) {
	return run(ctx, g, action[client.PrepareResult]{
		name: "prepare_repository",
		check: func(snap mirror.Snapshot) error {
			repo, ok := snap.Repository(repoID)
			if !ok {
				return refuse("prepare_repository", "Repository %d not found", repoID)
			}
			if !CanPrepare(repo) {
				return refuse("prepare_repository", "Repository %s must be inspected before it can be prepared", repo.Name)
			}
			return nil
		},
		dispatch: func(ctx context.Context) (client.PrepareResult, error) {
			return g.api.PrepareRepository(ctx, repoID)
		},
		reload: true,
		after: func(res client.PrepareResult) string {
			g.views.ApplyPrepare(repoID, res)
			if res.Message != "" {
				return res.Message
			}
			return "Repository prepared for deployment"
		},
	})
}

// Deploy dispatches a deploy, update or rollback and activates the poller.
func (g *Gateway) Deploy(ctx context.Context, appID int64, kind client.DeploymentType) (client.Deployment, error) {
	name := string(kind)
	if !kind.Valid() {
		return client.Deployment{}, g.fail("deploy", fmt.Errorf("unknown deployment type %q", kind))
	}
	var appName string
	return run(ctx, g, action[client.Deployment]{
		name: name,
		check: func(snap mirror.Snapshot) error {
			app, ok := snap.Application(appID)
			if !ok {
				return refuse(name, "Application %d not found", appID)
			}
			appName = app.Name
			if CanTrigger(app, kind) {
				return nil
			}
			if app.Status.Transitional() {
				return refuse(name, "Application %s is %s; wait for it to settle", app.Name, app.Status)
			}
			return refuse(name, "Repository for %s is not prepared for deployment", app.Name)
		},
		dispatch: func(ctx context.Context) (client.Deployment, error) {
			return g.api.TriggerDeployment(ctx, appID, kind)
		},
		reload: true,
		after: func(client.Deployment) string {
			g.poller.Activate()
			return fmt.Sprintf("%s queued for %s", deployVerb(kind), appName)
		},
	})
}

// StopApplication stops a settled application.
func (g *Gateway) StopApplication(ctx context.Context, appID int64) (client.ActionResult, error) {
	var appName string
	return run(ctx, g, action[client.ActionResult]{
		name: "stop",
		check: func(snap mirror.Snapshot) error {
			app, ok := snap.Application(appID)
			if !ok {
				return refuse("stop", "Application %d not found", appID)
			}
			appName = app.Name
			if !CanStop(app) {
				return refuse("stop", "Application %s is %s; wait for it to settle", app.Name, app.Status)
			}
			return nil
		},
		dispatch: func(ctx context.Context) (client.ActionResult, error) {
			return g.api.StopApplication(ctx, appID)
		},
		reload: true,
		after: func(res client.ActionResult) string {
			if res.Message != "" {
				return res.Message
			}
			return fmt.Sprintf("Application %s stopped", appName)
		},
	})
}

// CheckContainerStatus reports the live container state verbatim. The
// mirror is not reloaded.
func (g *Gateway) CheckContainerStatus(ctx context.Context, appID int64) (client.ContainerStatus, error) {
	return run(ctx, g, action[client.ContainerStatus]{
		name: "container_status",
		dispatch: func(ctx context.Context) (client.ContainerStatus, error) {
			return g.api.ContainerStatus(ctx, appID)
		},
		after: func(res client.ContainerStatus) string {
			if res.Status == "" {
				return "Container status: unknown"
			}
			return "Container status: " + res.Status
		},
	})
}

func deployVerb(kind client.DeploymentType) string {
	switch kind {
	case client.DeployUpdate:
		return "Update"
	case client.DeployRollback:
		return "Rollback"
	default:
		return "Deployment"
	}
}
