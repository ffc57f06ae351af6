// Package tui is the interactive operator console.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/munaimtahir/keystone/internal/console"
	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

// refreshEvery is how often the view re-reads console state that changed in
// the background (poller reloads).
const refreshEvery = 500 * time.Millisecond

type pane int

const (
	paneRepositories pane = iota
	paneApplications
)

// Model renders a console. It never mutates mirror state itself; every
// change goes through the console's gateway, views or session.
type Model struct {
	ctx context.Context
	con *console.Console

	styles   styles
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	width  int
	height int

	pane       pane
	repoSel    int
	appSel     int
	historySel int

	form    form
	pending int
	health  string
}

// New constructs the model. ctx bounds every request the model issues.
func New(ctx context.Context, con *console.Console) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		con:      con,
		styles:   newStyles(),
		keys:     newKeyMap(),
		help:     help.New(),
		spinner:  sp,
		viewport: viewport.New(80, 20),
		health:   "checking",
	}
	if !con.Authenticated() {
		m.form = newLoginForm(con.Session().Username())
	}
	return m
}

type (
	reloadedMsg   struct{ err error }
	loginDoneMsg  struct{ err error }
	detailDoneMsg struct{ err error }
	refreshMsg    time.Time
	healthMsg     struct {
		status string
		err    error
	}
	actionDoneMsg struct {
		name string
		err  error
	}
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.healthCmd(), refreshTick()}
	if m.con.Authenticated() {
		cmds = append(cmds, m.reloadCmd())
	}
	return tea.Batch(cmds...)
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m Model) healthCmd() tea.Cmd {
	return func() tea.Msg {
		h, err := m.con.Health(m.ctx)
		return healthMsg{status: h.Status, err: err}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	return func() tea.Msg {
		return reloadedMsg{err: m.con.Reload(m.ctx)}
	}
}

func (m Model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginDoneMsg{err: m.con.Login(m.ctx, username, password)}
	}
}

func (m Model) actionCmd(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{name: name, err: fn(m.ctx)}
	}
}

func (m Model) detailCmd(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return detailDoneMsg{err: fn(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = max(20, msg.Width-6)
		m.viewport.Height = max(5, msg.Height-10)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case refreshMsg:
		m.clampSelection(m.con.Mirror().Snapshot())
		return m, refreshTick()
	case healthMsg:
		if msg.err != nil {
			m.health = "unreachable"
		} else {
			m.health = msg.status
		}
		return m, nil
	case reloadedMsg:
		m.pending = max(0, m.pending-1)
		m.clampSelection(m.con.Mirror().Snapshot())
		return m, nil
	case loginDoneMsg:
		m.pending = max(0, m.pending-1)
		if msg.err != nil {
			return m, nil
		}
		m.form = form{}
		m.pending++
		return m, m.reloadCmd()
	case actionDoneMsg:
		m.pending = max(0, m.pending-1)
		if msg.err == nil && (m.form.kind == formRepository || m.form.kind == formApplication) {
			m.form = form{}
		}
		m.clampSelection(m.con.Mirror().Snapshot())
		m.syncViewport()
		return m, nil
	case detailDoneMsg:
		m.pending = max(0, m.pending-1)
		m.historySel = 0
		m.syncViewport()
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if m.form.kind != formNone {
			return m.updateForm(msg)
		}
		if m.con.Views().Current().Open != detail.None {
			return m.updateDetail(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.form.kind == formLogin {
			return m, tea.Quit
		}
		m.form = form{}
		return m, nil
	case "tab", "down":
		m.form = m.form.move(1)
		return m, nil
	case "shift+tab", "up":
		m.form = m.form.move(-1)
		return m, nil
	case "enter":
		if m.pending > 0 {
			return m, nil
		}
		return m.submitForm()
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	gw := m.con.Gateway()
	switch m.form.kind {
	case formLogin:
		m.pending++
		return m, m.loginCmd(m.form.value(0), m.form.value(1))
	case formRepository:
		input := m.form.repositoryForm()
		m.pending++
		return m, m.actionCmd("add_repository", func(ctx context.Context) error {
			_, err := gw.AddRepository(ctx, input)
			return err
		})
	case formApplication:
		input := m.form.applicationForm()
		m.pending++
		return m, m.actionCmd("add_application", func(ctx context.Context) error {
			_, err := gw.AddApplication(ctx, input)
			return err
		})
	}
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	views := m.con.Views()
	state := views.Current()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Close):
		views.Close()
		return m, nil
	}

	switch state.Open {
	case detail.History:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.historySel = max(0, m.historySel-1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.historySel = min(len(state.History.Deployments)-1, m.historySel+1)
			return m, nil
		case key.Matches(msg, m.keys.Open):
			if m.historySel < 0 || m.historySel >= len(state.History.Deployments) {
				return m, nil
			}
			depID := state.History.Deployments[m.historySel].ID
			m.pending++
			return m, m.detailCmd(func(ctx context.Context) error { return views.OpenLogs(ctx, depID) })
		}
	case detail.Logs:
		if appID := state.Logs.AppID; appID != 0 && key.Matches(msg, m.keys.Refresh) {
			m.pending++
			return m, m.detailCmd(func(ctx context.Context) error { return views.OpenContainerLogs(ctx, appID) })
		}
	case detail.Inspection:
		repoID := state.Inspection.RepoID
		gw := m.con.Gateway()
		switch {
		case key.Matches(msg, m.keys.Prepare):
			if !state.Inspection.ShowPrepare() || gw.Busy() {
				return m, nil
			}
			m.pending++
			return m, m.actionCmd("prepare_repository", func(ctx context.Context) error {
				_, err := gw.PrepareRepository(ctx, repoID)
				return err
			})
		case key.Matches(msg, m.keys.Inspect):
			if gw.Busy() {
				return m, nil
			}
			m.pending++
			return m, m.actionCmd("inspect_repository", func(ctx context.Context) error {
				_, err := gw.InspectRepository(ctx, repoID)
				return err
			})
		}
	}
	var cmd tea.Cmd
	m.syncViewport()
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.con.Mirror().Snapshot()
	gw := m.con.Gateway()
	views := m.con.Views()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Close):
		m.con.Notice().Clear()
		return m, nil
	case key.Matches(msg, m.keys.Switch):
		m.pane = (m.pane + 1) % 2
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.pane == paneRepositories {
			m.repoSel = max(0, m.repoSel-1)
		} else {
			m.appSel = max(0, m.appSel-1)
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.pane == paneRepositories {
			m.repoSel = min(len(snap.Repositories)-1, m.repoSel+1)
		} else {
			m.appSel = min(len(snap.Applications)-1, m.appSel+1)
		}
		m.clampSelection(snap)
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.pending++
		return m, tea.Batch(m.reloadCmd(), m.healthCmd())
	case key.Matches(msg, m.keys.Logout):
		m.con.Logout(m.ctx)
		m.form = newLoginForm(m.con.Session().Username())
		m.repoSel, m.appSel = 0, 0
		return m, nil
	}

	if gw.Busy() {
		return m, nil
	}

	if key.Matches(msg, m.keys.New) {
		if m.pane == paneRepositories {
			m.form = newRepositoryForm()
		} else {
			var repoID int64
			if repo, ok := m.selectedRepository(snap); ok {
				repoID = repo.ID
			}
			m.form = newApplicationForm(repoID)
		}
		return m, nil
	}

	if m.pane == paneRepositories {
		repo, ok := m.selectedRepository(snap)
		if !ok {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Inspect):
			m.pending++
			return m, m.actionCmd("inspect_repository", func(ctx context.Context) error {
				_, err := gw.InspectRepository(ctx, repo.ID)
				return err
			})
		case key.Matches(msg, m.keys.Prepare):
			m.pending++
			return m, m.actionCmd("prepare_repository", func(ctx context.Context) error {
				_, err := gw.PrepareRepository(ctx, repo.ID)
				return err
			})
		case key.Matches(msg, m.keys.Report), key.Matches(msg, m.keys.Open):
			m.pending++
			return m, m.detailCmd(func(ctx context.Context) error { return views.OpenInspection(ctx, repo.ID) })
		}
		return m, nil
	}

	app, ok := m.selectedApplication(snap)
	if !ok {
		return m, nil
	}
	trigger := func(kind client.DeploymentType) (tea.Model, tea.Cmd) {
		m.pending++
		return m, m.actionCmd(string(kind), func(ctx context.Context) error {
			_, err := gw.Deploy(ctx, app.ID, kind)
			return err
		})
	}
	switch {
	case key.Matches(msg, m.keys.Deploy):
		return trigger(client.DeployFresh)
	case key.Matches(msg, m.keys.Update):
		return trigger(client.DeployUpdate)
	case key.Matches(msg, m.keys.Rollback):
		return trigger(client.DeployRollback)
	case key.Matches(msg, m.keys.Stop):
		m.pending++
		return m, m.actionCmd("stop", func(ctx context.Context) error {
			_, err := gw.StopApplication(ctx, app.ID)
			return err
		})
	case key.Matches(msg, m.keys.Container):
		m.pending++
		return m, m.actionCmd("container_status", func(ctx context.Context) error {
			_, err := gw.CheckContainerStatus(ctx, app.ID)
			return err
		})
	case key.Matches(msg, m.keys.History), key.Matches(msg, m.keys.Open):
		m.pending++
		return m, m.detailCmd(func(ctx context.Context) error { return views.OpenHistory(ctx, app.ID) })
	case key.Matches(msg, m.keys.Logs):
		m.pending++
		return m, m.detailCmd(func(ctx context.Context) error { return views.OpenContainerLogs(ctx, app.ID) })
	}
	return m, nil
}

func (m Model) selectedRepository(snap mirror.Snapshot) (client.Repository, bool) {
	if m.repoSel < 0 || m.repoSel >= len(snap.Repositories) {
		return client.Repository{}, false
	}
	return snap.Repositories[m.repoSel], true
}

func (m Model) selectedApplication(snap mirror.Snapshot) (client.Application, bool) {
	if m.appSel < 0 || m.appSel >= len(snap.Applications) {
		return client.Application{}, false
	}
	return snap.Applications[m.appSel], true
}

func (m *Model) clampSelection(snap mirror.Snapshot) {
	m.repoSel = clamp(m.repoSel, 0, max(0, len(snap.Repositories)-1))
	m.appSel = clamp(m.appSel, 0, max(0, len(snap.Applications)-1))
}

func (m *Model) syncViewport() {
	m.viewport.SetContent(m.renderDetailBody(m.con.Views().Current()))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
