package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/internal/notify"
	"github.com/munaimtahir/keystone/internal/validate"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

// fakePlane is an in-memory control plane.
type fakePlane struct {
	mu        sync.Mutex
	repos     []client.Repository
	apps      []client.Application
	calls     []string
	failNext  error
	listErr   error
	inside    func()
	container string
}

func (f *fakePlane) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakePlane) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePlane) ListRepositories(ctx context.Context) ([]client.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]client.Repository(nil), f.repos...), nil
}

func (f *fakePlane) ListApplications(ctx context.Context) ([]client.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Application, len(f.apps))
	for i, a := range f.apps {
		for _, r := range f.repos {
			if r.ID == a.Repo {
				a.RepoPreparedForDeployment = r.PreparedForDeployment
			}
		}
		out[i] = a
	}
	return out, nil
}

func (f *fakePlane) CreateRepository(ctx context.Context, in client.CreateRepositoryInput) (client.Repository, error) {
	if err := f.record("create_repo"); err != nil {
		return client.Repository{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	repo := client.Repository{ID: int64(len(f.repos) + 1), Name: in.Name, GitURL: in.GitURL, DefaultBranch: in.DefaultBranch, InspectionStatus: client.InspectionPending}
	f.repos = append(f.repos, repo)
	return repo, nil
}

func (f *fakePlane) CreateApplication(ctx context.Context, in client.CreateApplicationInput) (client.Application, error) {
	if err := f.record("create_app"); err != nil {
		return client.Application{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	app := client.Application{ID: int64(len(f.apps) + 1), Name: in.Name, Repo: in.Repo, ContainerPort: in.ContainerPort, Status: client.AppIdle}
	f.apps = append(f.apps, app)
	return app, nil
}

func (f *fakePlane) GetRepository(ctx context.Context, id int64) (client.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.repos {
		if r.ID == id {
			return r, nil
		}
	}
	return client.Repository{}, client.APIError{Status: 404, Message: "Not found"}
}

func (f *fakePlane) InspectRepository(ctx context.Context, id int64) (client.InspectionResult, error) {
	if err := f.record("inspect"); err != nil {
		return client.InspectionResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	details := json.RawMessage(`{"compose_files":["docker-compose.yml"],"services":[{"name":"web","build":"."}]}`)
	for i := range f.repos {
		if f.repos[i].ID == id {
			f.repos[i].InspectionStatus = client.InspectionReady
			f.repos[i].InspectionDetails = details
		}
	}
	return client.InspectionResult{Status: client.InspectionReady, Details: details}, nil
}

func (f *fakePlane) PrepareRepository(ctx context.Context, id int64) (client.PrepareResult, error) {
	if err := f.record("prepare"); err != nil {
		return client.PrepareResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.repos {
		if f.repos[i].ID == id {
			f.repos[i].InspectionStatus = client.InspectionPrepared
			f.repos[i].PreparedForDeployment = true
		}
	}
	return client.PrepareResult{Status: client.InspectionPrepared, Message: "Repository prepared"}, nil
}

func (f *fakePlane) TriggerDeployment(ctx context.Context, appID int64, kind client.DeploymentType) (client.Deployment, error) {
	if err := f.record(string(kind)); err != nil {
		return client.Deployment{}, err
	}
	if f.inside != nil {
		f.inside()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == appID {
			f.apps[i].Status = client.AppQueued
		}
	}
	return client.Deployment{App: appID, DeploymentType: kind, Status: client.DeploymentQueued}, nil
}

func (f *fakePlane) StopApplication(ctx context.Context, appID int64) (client.ActionResult, error) {
	if err := f.record("stop"); err != nil {
		return client.ActionResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == appID {
			f.apps[i].Status = client.AppStatus("stopped")
		}
	}
	return client.ActionResult{Status: "stopped"}, nil
}

func (f *fakePlane) ContainerStatus(ctx context.Context, appID int64) (client.ContainerStatus, error) {
	if err := f.record("container_status"); err != nil {
		return client.ContainerStatus{}, err
	}
	return client.ContainerStatus{Status: f.container}, nil
}

func (f *fakePlane) ListDeployments(ctx context.Context, appID int64) ([]client.Deployment, error) {
	return nil, nil
}

func (f *fakePlane) DeploymentLogs(ctx context.Context, id int64) (string, error) {
	return "", nil
}

func (f *fakePlane) ApplicationLogs(ctx context.Context, id int64) (string, error) {
	return "", nil
}

type countingPoller struct{ activations int }

func (p *countingPoller) Activate() { p.activations++ }

type fakeSession struct{ loggedOut bool }

func (s *fakeSession) Active() bool { return !s.loggedOut }

type harness struct {
	plane   *fakePlane
	mirror  *mirror.Mirror
	views   *detail.Views
	poller  *countingPoller
	session *fakeSession
	notice  *notify.Slot
	gw      *Gateway
}

func newHarness(t *testing.T, plane *fakePlane) *harness {
	t.Helper()
	h := &harness{
		plane:   plane,
		mirror:  mirror.New(plane, nil, nil),
		views:   detail.New(plane, nil),
		poller:  &countingPoller{},
		session: &fakeSession{},
		notice:  &notify.Slot{},
	}
	h.gw = New(plane, h.mirror, h.views, h.poller, h.session, h.notice, nil, nil)
	if err := h.mirror.Reload(context.Background()); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	return h
}

func TestGatingRules(t *testing.T) {
	cases := []struct {
		status   client.AppStatus
		prepared bool
		deploy   bool
		rollback bool
	}{
		{client.AppIdle, true, true, true},
		{client.AppIdle, false, false, true},
		{client.AppQueued, true, false, false},
		{client.AppDeploying, true, false, false},
		{client.AppRunning, true, true, true},
		{client.AppFailed, false, false, true},
		{client.AppStatus("paused"), true, true, true},
	}
	for _, tc := range cases {
		app := client.Application{Status: tc.status, RepoPreparedForDeployment: tc.prepared}
		if got := CanDeploy(app); got != tc.deploy {
			t.Fatalf("CanDeploy(%s, prepared=%v) = %v", tc.status, tc.prepared, got)
		}
		if got := CanTrigger(app, client.DeployUpdate); got != tc.deploy {
			t.Fatalf("update gate mismatch for %s", tc.status)
		}
		if got := CanRollback(app); got != tc.rollback {
			t.Fatalf("CanRollback(%s) = %v", tc.status, got)
		}
	}
	if CanInspect(client.Repository{InspectionStatus: client.InspectionInspecting}) {
		t.Fatalf("inspecting repo must not be re-inspected")
	}
	if CanPrepare(client.Repository{InspectionStatus: client.InspectionFailed}) {
		t.Fatalf("failed inspection must not be prepared")
	}
}

func TestValidationNeverReachesNetwork(t *testing.T) {
	h := newHarness(t, &fakePlane{})
	_, err := h.gw.AddRepository(context.Background(), validate.RepositoryForm{Name: "svc", GitURL: "ftp://x"})
	if !errors.Is(err, validate.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.plane.callCount() != 0 {
		t.Fatalf("validation failure must not dispatch")
	}
	if n := h.notice.Current(); n.Kind != notify.Error || n.Message == "" {
		t.Fatalf("expected error banner, got %+v", n)
	}
}

func TestDeployRefusedForUnpreparedRepository(t *testing.T) {
	plane := &fakePlane{
		repos: []client.Repository{{ID: 1, Name: "svc", InspectionStatus: client.InspectionReady}},
		apps:  []client.Application{{ID: 1, Name: "web", Repo: 1, Status: client.AppIdle}},
	}
	h := newHarness(t, plane)
	_, err := h.gw.Deploy(context.Background(), 1, client.DeployFresh)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if plane.callCount() != 0 || h.poller.activations != 0 {
		t.Fatalf("refused deploy must not dispatch or poll")
	}

	if _, err := h.gw.Deploy(context.Background(), 1, client.DeployRollback); err != nil {
		t.Fatalf("rollback does not require preparation: %v", err)
	}
	if h.poller.activations != 1 {
		t.Fatalf("rollback should activate the poller")
	}
}

func TestDispatchFailureLeavesMirrorUntouched(t *testing.T) {
	plane := &fakePlane{repos: []client.Repository{{ID: 1, Name: "svc"}}}
	h := newHarness(t, plane)
	before := h.mirror.Snapshot()

	plane.failNext = client.APIError{Status: 400, Message: "name already exists"}
	form := validate.ApplicationForm{Name: "web", RepoID: 1, Port: "8000", EnvVars: `{"A":"1"}`}
	if _, err := h.gw.AddApplication(context.Background(), form); err == nil {
		t.Fatalf("expected failure")
	}
	if after := h.mirror.Snapshot(); after.Version != before.Version {
		t.Fatalf("failed dispatch must not reload")
	}
	if n := h.notice.Current(); n.Kind != notify.Error || n.Message != "name already exists" {
		t.Fatalf("expected server message verbatim, got %+v", n)
	}
	if form.EnvVars != `{"A":"1"}` || form.Port != "8000" {
		t.Fatalf("form input must be preserved")
	}
}

func TestBusyRejectsConcurrentAction(t *testing.T) {
	plane := &fakePlane{
		repos: []client.Repository{{ID: 1, Name: "svc", PreparedForDeployment: true, InspectionStatus: client.InspectionPrepared}},
		apps:  []client.Application{{ID: 1, Name: "web", Repo: 1, Status: client.AppRunning}},
	}
	h := newHarness(t, plane)
	var nested error
	plane.inside = func() {
		if !h.gw.Busy() {
			t.Errorf("gateway should report busy during dispatch")
		}
		_, nested = h.gw.Deploy(context.Background(), 1, client.DeployUpdate)
	}
	if _, err := h.gw.Deploy(context.Background(), 1, client.DeployUpdate); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !errors.Is(nested, ErrBusy) {
		t.Fatalf("expected ErrBusy for the overlapping action, got %v", nested)
	}
	if h.gw.Busy() {
		t.Fatalf("busy flag must clear after the action")
	}
}

func TestStopRefusedWhileTransitional(t *testing.T) {
	plane := &fakePlane{apps: []client.Application{
		{ID: 1, Name: "web", Status: client.AppQueued},
		{ID: 2, Name: "api", Status: client.AppDeploying},
	}}
	h := newHarness(t, plane)
	for _, id := range []int64{1, 2} {
		_, err := h.gw.StopApplication(context.Background(), id)
		if !errors.Is(err, ErrPrecondition) {
			t.Fatalf("app %d: expected precondition error, got %v", id, err)
		}
	}
	if plane.callCount() != 0 {
		t.Fatalf("refused stop must not dispatch, calls=%v", plane.calls)
	}
	if n := h.notice.Current(); n.Kind != notify.Error || n.Message == "" {
		t.Fatalf("expected refusal banner, got %+v", n)
	}
}

func TestStopReloadsWithoutPolling(t *testing.T) {
	plane := &fakePlane{apps: []client.Application{{ID: 1, Name: "web", Status: client.AppRunning}}}
	h := newHarness(t, plane)
	before := h.mirror.Snapshot().Version

	res, err := h.gw.StopApplication(context.Background(), 1)
	if err != nil || res.Status != "stopped" {
		t.Fatalf("stop: %+v %v", res, err)
	}
	snap := h.mirror.Snapshot()
	app, _ := snap.Application(1)
	if snap.Version == before || app.Status != client.AppStatus("stopped") {
		t.Fatalf("stop should reload the mirror, got version %d status %s", snap.Version, app.Status)
	}
	if h.poller.activations != 0 {
		t.Fatalf("stop is not deploy-class and must not activate the poller")
	}
	if n := h.notice.Current(); n.Kind != notify.Info || n.Message != "Application web stopped" {
		t.Fatalf("unexpected banner %+v", n)
	}
	if !CanDeploy(client.Application{Status: app.Status, RepoPreparedForDeployment: true}) {
		t.Fatalf("a stopped app can be deployed again")
	}
}

func TestActionsRequireSession(t *testing.T) {
	plane := &fakePlane{
		repos: []client.Repository{{ID: 1, Name: "svc", PreparedForDeployment: true, InspectionStatus: client.InspectionPrepared}},
		apps:  []client.Application{{ID: 1, Name: "web", Repo: 1, Status: client.AppRunning}},
	}
	h := newHarness(t, plane)
	h.session.loggedOut = true

	if _, err := h.gw.Deploy(context.Background(), 1, client.DeployUpdate); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := h.gw.StopApplication(context.Background(), 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if plane.callCount() != 0 || h.poller.activations != 0 {
		t.Fatalf("logged-out actions must not dispatch")
	}
}

func TestLogoutDuringDispatchSkipsReload(t *testing.T) {
	plane := &fakePlane{
		repos: []client.Repository{{ID: 1, Name: "svc", PreparedForDeployment: true, InspectionStatus: client.InspectionPrepared}},
		apps:  []client.Application{{ID: 1, Name: "web", Repo: 1, Status: client.AppRunning}},
	}
	h := newHarness(t, plane)
	before := h.mirror.Snapshot().Version
	plane.inside = func() { h.session.loggedOut = true }

	if _, err := h.gw.Deploy(context.Background(), 1, client.DeployUpdate); err != nil {
		t.Fatalf("dispatched deploy should still succeed: %v", err)
	}
	if h.mirror.Snapshot().Version != before {
		t.Fatalf("no reload may run after logout")
	}
}

func TestContainerStatusIsReadOnly(t *testing.T) {
	plane := &fakePlane{
		apps:      []client.Application{{ID: 1, Name: "web", Status: client.AppRunning}},
		container: "running (healthy)",
	}
	h := newHarness(t, plane)
	before := h.mirror.Snapshot().Version
	if _, err := h.gw.CheckContainerStatus(context.Background(), 1); err != nil {
		t.Fatalf("container status: %v", err)
	}
	if h.mirror.Snapshot().Version != before {
		t.Fatalf("container status must not reload the mirror")
	}
	if n := h.notice.Current(); n.Kind != notify.Info || n.Message != "Container status: running (healthy)" {
		t.Fatalf("unexpected banner %+v", n)
	}
}

func TestRepositoryToDeployScenario(t *testing.T) {
	plane := &fakePlane{}
	h := newHarness(t, plane)
	ctx := context.Background()

	repo, err := h.gw.AddRepository(ctx, validate.RepositoryForm{Name: "svc", GitURL: "https://github.com/o/r.git"})
	if err != nil {
		t.Fatalf("add repository: %v", err)
	}
	if repo.DefaultBranch != "main" {
		t.Fatalf("expected default branch main, got %q", repo.DefaultBranch)
	}
	if _, err := h.gw.PrepareRepository(ctx, repo.ID); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("prepare before inspection must be refused, got %v", err)
	}

	res, err := h.gw.InspectRepository(ctx, repo.ID)
	if err != nil || res.Status != client.InspectionReady || len(res.Details) == 0 {
		t.Fatalf("inspect: %+v %v", res, err)
	}
	if view := h.views.Current(); view.Open != detail.Inspection || !view.Inspection.ShowPrepare() {
		t.Fatalf("inspection view should offer prepare: %+v", view.Inspection)
	}

	if _, err := h.gw.PrepareRepository(ctx, repo.ID); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, _ := h.mirror.Snapshot().Repository(repo.ID)
	if !got.PreparedForDeployment {
		t.Fatalf("repository should be prepared after reload")
	}

	app, err := h.gw.AddApplication(ctx, validate.ApplicationForm{Name: "web", RepoID: repo.ID, Port: "8000"})
	if err != nil {
		t.Fatalf("add application: %v", err)
	}
	mirrored, _ := h.mirror.Snapshot().Application(app.ID)
	if !CanDeploy(mirrored) {
		t.Fatalf("deploy should be enabled: %+v", mirrored)
	}

	if _, err := h.gw.Deploy(ctx, app.ID, client.DeployFresh); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	mirrored, _ = h.mirror.Snapshot().Application(app.ID)
	if mirrored.Status != client.AppQueued || h.poller.activations != 1 {
		t.Fatalf("expected queued app and active poller, got %s / %d", mirrored.Status, h.poller.activations)
	}
	if CanDeploy(mirrored) {
		t.Fatalf("deploy must be disabled while queued")
	}
	if n := h.notice.Current(); n.Kind != notify.Info {
		t.Fatalf("expected info banner, got %+v", n)
	}
}
