package detail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/munaimtahir/keystone/pkg/api/client"
)

const (
	// EmptyLogs is shown in place of a deployment without a log blob.
	EmptyLogs = "(no logs recorded)"
	// EmptyContainerLogs is shown when an application's container printed nothing.
	EmptyContainerLogs = "(no container output)"
)

// ErrSuperseded is returned when a fetch finished after its view was closed
// or reopened for another subject. Its result was not applied.
var ErrSuperseded = errors.New("detail view closed before result arrived")

// Fetcher is the subset of the control plane the detail views read from.
type Fetcher interface {
	ListDeployments(ctx context.Context, appID int64) ([]client.Deployment, error)
	DeploymentLogs(ctx context.Context, deploymentID int64) (string, error)
	ApplicationLogs(ctx context.Context, appID int64) (string, error)
	GetRepository(ctx context.Context, id int64) (client.Repository, error)
	InspectRepository(ctx context.Context, id int64) (client.InspectionResult, error)
}

// Kind names the open view. At most one is open at a time.
type Kind int

const (
	None Kind = iota
	History
	Logs
	Inspection
)

func (k Kind) String() string {
	switch k {
	case History:
		return "history"
	case Logs:
		return "logs"
	case Inspection:
		return "inspection"
	default:
		return "none"
	}
}

// HistoryState holds the deployment history of one application.
type HistoryState struct {
	AppID       int64
	Loading     bool
	Err         error
	Deployments []client.Deployment
}

// LogsState holds the log blob of one deployment, or the container output
// of one application when AppID is set.
type LogsState struct {
	DeploymentID int64
	AppID        int64
	Loading      bool
	Err          error
	Loaded       bool
	Logs         string
}

// Text returns the logs, or the empty marker once loaded with nothing recorded.
func (s LogsState) Text() string {
	if !s.Loaded || s.Logs != "" {
		return s.Logs
	}
	if s.AppID != 0 {
		return EmptyContainerLogs
	}
	return EmptyLogs
}

// InspectionState holds the inspection/preparation report of one repository.
type InspectionState struct {
	RepoID   int64
	RepoName string
	Loading  bool
	Err      error
	Status   client.InspectionStatus
	Report   Report
	Prepared bool
	Message  string
	Config   json.RawMessage
}

// ShowReport reports whether the structured report sections apply.
func (s InspectionState) ShowReport() bool {
	return s.Status == client.InspectionReady || s.Status == client.InspectionPrepared
}

// ShowPrepare reports whether the Prepare action is offered.
func (s InspectionState) ShowPrepare() bool {
	return !s.Loading && !s.Prepared && s.Status.AllowsPrepare()
}

// Snapshot is a copy of all view state.
type Snapshot struct {
	Open       Kind
	History    HistoryState
	Logs       LogsState
	Inspection InspectionState
	Version    uint64
}

// Views owns the three detail scopes. Results are applied only while the
// scope that requested them is still the open one.
type Views struct {
	api    Fetcher
	logger *slog.Logger

	mu         sync.Mutex
	open       Kind
	gen        uint64
	cancel     context.CancelFunc
	history    HistoryState
	logs       LogsState
	inspection InspectionState
	version    uint64
}

// New constructs closed views.
func New(api Fetcher, logger *slog.Logger) *Views {
	v := &Views{api: api, logger: logger}
	if v.logger == nil {
		v.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v.logger = v.logger.With("component", "detail")
	return v
}

// Current returns a copy of the view state.
func (v *Views) Current() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		Open:       v.open,
		History:    v.history,
		Logs:       v.logs,
		Inspection: v.inspection,
		Version:    v.version,
	}
}

// Close abandons any in-flight fetch and clears every scope.
func (v *Views) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	v.open = None
	v.history = HistoryState{}
	v.logs = LogsState{}
	v.inspection = InspectionState{}
	v.version++
}

// OpenHistory shows the deployment history of appID. An empty history is a
// valid result.
func (v *Views) OpenHistory(ctx context.Context, appID int64) error {
	ctx, gen := v.begin(ctx, History, func() {
		v.history = HistoryState{AppID: appID, Loading: true}
	})
	deps, err := v.api.ListDeployments(ctx, appID)
	return v.finish(gen, err, func() {
		v.history.Loading = false
		v.history.Err = err
		if err == nil {
			if deps == nil {
				deps = []client.Deployment{}
			}
			v.history.Deployments = deps
		}
	})
}

// OpenLogs shows the log blob of deploymentID.
func (v *Views) OpenLogs(ctx context.Context, deploymentID int64) error {
	ctx, gen := v.begin(ctx, Logs, func() {
		v.logs = LogsState{DeploymentID: deploymentID, Loading: true}
	})
	text, err := v.api.DeploymentLogs(ctx, deploymentID)
	return v.finish(gen, err, func() {
		v.logs.Loading = false
		v.logs.Err = err
		if err == nil {
			v.logs.Loaded = true
			v.logs.Logs = text
		}
	})
}

// OpenContainerLogs shows the recent container output of appID in the logs
// scope.
func (v *Views) OpenContainerLogs(ctx context.Context, appID int64) error {
	ctx, gen := v.begin(ctx, Logs, func() {
		v.logs = LogsState{AppID: appID, Loading: true}
	})
	text, err := v.api.ApplicationLogs(ctx, appID)
	return v.finish(gen, err, func() {
		v.logs.Loading = false
		v.logs.Err = err
		if err == nil {
			v.logs.Loaded = true
			v.logs.Logs = text
		}
	})
}

// OpenInspection shows the current inspection report of repo without
// re-triggering inspection.
func (v *Views) OpenInspection(ctx context.Context, repoID int64) error {
	ctx, gen := v.begin(ctx, Inspection, func() {
		v.inspection = v.resetInspection(repoID)
	})
	repo, err := v.api.GetRepository(ctx, repoID)
	var report Report
	if err == nil {
		report, err = ParseReport(repo.InspectionDetails)
	}
	return v.finish(gen, err, func() {
		v.inspection.Loading = false
		v.inspection.Err = err
		if err == nil {
			v.inspection.RepoName = repo.Name
			v.inspection.Status = repo.InspectionStatus
			v.inspection.Prepared = repo.PreparedForDeployment
			v.inspection.Report = report
			v.inspection.Config = repo.DeploymentConfig
		}
	})
}

// Inspect triggers inspection of repoID and shows the returned report.
func (v *Views) Inspect(ctx context.Context, repoID int64) (client.InspectionResult, error) {
	ctx, gen := v.begin(ctx, Inspection, func() {
		v.inspection = v.resetInspection(repoID)
		v.inspection.Status = client.InspectionInspecting
	})
	res, err := v.api.InspectRepository(ctx, repoID)
	var report Report
	if err == nil {
		var perr error
		if report, perr = ParseReport(res.Details); perr != nil {
			v.logger.Warn("unreadable inspection details", "repo_id", repoID, "error", perr)
		}
	}
	ferr := v.finish(gen, err, func() {
		v.inspection.Loading = false
		v.inspection.Err = err
		if err == nil {
			v.inspection.Status = res.Status
			v.inspection.Report = report
			if res.Status == client.InspectionPrepared {
				v.inspection.Prepared = true
			}
		}
	})
	if err != nil {
		return client.InspectionResult{}, err
	}
	return res, ferr
}

// ApplyPrepare records a successful preparation of repoID, opening the
// inspection view for it when another scope is showing.
func (v *Views) ApplyPrepare(repoID int64, res client.PrepareResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open != Inspection || v.inspection.RepoID != repoID {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
		v.gen++
		v.open = Inspection
		v.history = HistoryState{}
		v.logs = LogsState{}
		v.inspection = InspectionState{RepoID: repoID}
	}
	v.inspection.Loading = false
	v.inspection.Err = nil
	v.inspection.Prepared = true
	v.inspection.Status = client.InspectionPrepared
	v.inspection.Message = res.Message
	if len(res.Config) > 0 {
		v.inspection.Config = res.Config
	}
	v.version++
}

// resetInspection keeps the last report when the same repository is reopened
// so the view does not flash empty. Caller holds v.mu.
func (v *Views) resetInspection(repoID int64) InspectionState {
	next := InspectionState{RepoID: repoID, Loading: true}
	if v.inspection.RepoID == repoID {
		next.RepoName = v.inspection.RepoName
		next.Status = v.inspection.Status
		next.Report = v.inspection.Report
		next.Prepared = v.inspection.Prepared
	}
	return next
}

// begin opens kind, superseding whatever was open, and returns the context
// the fetch must run under.
func (v *Views) begin(parent context.Context, kind Kind, reset func()) (context.Context, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	ctx, cancel := context.WithCancel(parent)
	v.cancel = cancel
	if kind != v.open {
		v.history = HistoryState{}
		v.logs = LogsState{}
		if kind != Inspection {
			v.inspection = InspectionState{}
		}
	}
	v.open = kind
	reset()
	v.version++
	return ctx, v.gen
}

// finish applies a fetch result if gen is still current.
func (v *Views) finish(gen uint64, err error, apply func()) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		v.logger.Debug("discarding stale detail result", "generation", gen)
		return ErrSuperseded
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	apply()
	v.version++
	return err
}
