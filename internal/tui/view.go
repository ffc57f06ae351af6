package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/gateway"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/internal/notify"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()

	var body string
	switch {
	case m.form.kind != formNone:
		body = m.styles.Modal.Render(m.form.view(m.styles))
	case m.con.Views().Current().Open != detail.None:
		vp := m.viewport
		vp.SetContent(m.renderDetailBody(m.con.Views().Current()))
		body = m.styles.Modal.Width(m.width - 2).Render(m.renderDetailHeader() + "\n\n" + vp.View())
	default:
		body = m.renderLists()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	parts := []string{"Keystone", m.con.API().BaseURL(), "health: " + m.health}
	if user := m.con.Session().Username(); user != "" && m.con.Authenticated() {
		parts = append(parts, "user: "+user)
	}
	if m.con.Poller().Active() {
		parts = append(parts, "polling")
	}
	if m.pending > 0 || m.con.Gateway().Busy() {
		parts = append(parts, m.spinner.View()+" working")
	}
	return m.styles.Header.Width(m.width).Render(strings.Join(parts, "  ·  "))
}

func (m Model) renderFooter() string {
	var line string
	switch n := m.con.Notice().Current(); n.Kind {
	case notify.Error:
		line = m.styles.Error.Render("✗ " + n.Message)
	case notify.Info:
		line = m.styles.Info.Render("✓ " + n.Message)
	}
	return line + "\n" + m.help.View(m.keys)
}

func (m Model) renderLists() string {
	snap := m.con.Mirror().Snapshot()
	half := max(30, m.width/2-2)
	repos := m.renderRepositories(snap, half)
	apps := m.renderApplications(snap, half)
	return lipgloss.JoinHorizontal(lipgloss.Top, repos, apps)
}

func (m Model) renderRepositories(snap mirror.Snapshot, w int) string {
	title := m.styles.Title.Render(fmt.Sprintf("Repositories (%d)", len(snap.Repositories)))
	lines := []string{title}
	if len(snap.Repositories) == 0 {
		lines = append(lines, m.styles.Muted.Render("none yet, press n to add one"))
	}
	for i, repo := range snap.Repositories {
		marker := "  "
		style := m.styles.Item
		if m.pane == paneRepositories && i == m.repoSel {
			marker = "▶ "
			style = m.styles.Selected
		}
		prepared := ""
		if repo.PreparedForDeployment {
			prepared = " ✓"
		}
		lines = append(lines, style.Render(marker+repo.Name)+" "+m.styles.status(string(repo.InspectionStatus), repo.InspectionStatus.Known())+prepared)
		if m.pane == paneRepositories && i == m.repoSel {
			lines = append(lines, m.styles.Muted.Render("    "+repo.GitURL+" @ "+repo.DefaultBranch))
			lines = append(lines, "    "+m.gate("inspect", gateway.CanInspect(repo))+" "+m.gate("prepare", gateway.CanPrepare(repo)))
		}
	}
	return m.styles.Pane.Width(w).Render(strings.Join(lines, "\n"))
}

func (m Model) renderApplications(snap mirror.Snapshot, w int) string {
	title := m.styles.Title.Render(fmt.Sprintf("Applications (%d)", len(snap.Applications)))
	lines := []string{title}
	if len(snap.Applications) == 0 {
		lines = append(lines, m.styles.Muted.Render("none yet"))
	}
	host := m.con.PublicHost()
	for i, app := range snap.Applications {
		marker := "  "
		style := m.styles.Item
		selected := m.pane == paneApplications && i == m.appSel
		if selected {
			marker = "▶ "
			style = m.styles.Selected
		}
		lines = append(lines, style.Render(marker+app.Name)+" "+m.styles.status(string(app.Status), app.Status.Known()))
		if !selected {
			continue
		}
		repoName := app.RepoName
		if repoName == "" {
			if repo, ok := snap.Repository(app.Repo); ok {
				repoName = repo.Name
			}
		}
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("    repo %s · port %d", repoName, app.ContainerPort)))
		if url := app.PublicURL(host); url != "" {
			lines = append(lines, "    "+m.styles.Info.Render(url))
		}
		lines = append(lines, "    "+strings.Join([]string{
			m.gate("deploy", gateway.CanDeploy(app)),
			m.gate("update", gateway.CanDeploy(app)),
			m.gate("rollback", gateway.CanRollback(app)),
			m.gate("stop", gateway.CanStop(app)),
		}, " "))
		if !app.RepoPreparedForDeployment {
			lines = append(lines, m.styles.Muted.Render("    repository not prepared"))
		}
	}
	return m.styles.Pane.Width(w).Render(strings.Join(lines, "\n"))
}

func (m Model) gate(label string, enabled bool) string {
	if enabled && !m.con.Gateway().Busy() {
		return m.styles.Item.Render("[" + label + "]")
	}
	return m.styles.Disabled.Render("[" + label + "]")
}

func (m Model) renderDetailHeader() string {
	state := m.con.Views().Current()
	switch state.Open {
	case detail.History:
		return m.styles.Title.Render(fmt.Sprintf("Deployment history · app %d", state.History.AppID))
	case detail.Logs:
		if state.Logs.AppID != 0 {
			return m.styles.Title.Render(fmt.Sprintf("Container logs · app %d", state.Logs.AppID))
		}
		return m.styles.Title.Render(fmt.Sprintf("Logs · deployment %d", state.Logs.DeploymentID))
	case detail.Inspection:
		name := state.Inspection.RepoName
		if name == "" {
			name = fmt.Sprintf("repository %d", state.Inspection.RepoID)
		}
		return m.styles.Title.Render("Inspection · " + name)
	}
	return ""
}

func (m Model) renderDetailBody(state detail.Snapshot) string {
	switch state.Open {
	case detail.History:
		return m.renderHistory(state.History)
	case detail.Logs:
		return m.renderLogs(state.Logs)
	case detail.Inspection:
		return m.renderInspection(state.Inspection)
	}
	return ""
}

func (m Model) renderHistory(s detail.HistoryState) string {
	switch {
	case s.Loading:
		return "Loading history…"
	case s.Err != nil:
		return m.styles.Error.Render(s.Err.Error())
	case len(s.Deployments) == 0:
		return m.styles.Muted.Render("No deployments yet.")
	}
	lines := make([]string, 0, len(s.Deployments)+1)
	for i, dep := range s.Deployments {
		marker := "  "
		if i == m.historySel {
			marker = "▶ "
		}
		line := fmt.Sprintf("%s#%d %-8s %s %s", marker, dep.ID, dep.DeploymentType, m.styles.status(string(dep.Status), true), dep.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if dep.AssignedPort != nil {
			line += fmt.Sprintf(" port %d", *dep.AssignedPort)
		}
		if dep.ErrorSummary != "" {
			line += " " + m.styles.Error.Render(dep.ErrorSummary)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", m.styles.Muted.Render("enter: logs · esc: close"))
	return strings.Join(lines, "\n")
}

func (m Model) renderLogs(s detail.LogsState) string {
	switch {
	case s.Loading:
		return "Loading logs…"
	case s.Err != nil:
		return m.styles.Error.Render(s.Err.Error())
	case s.Logs == "":
		return m.styles.Muted.Render(s.Text())
	}
	return s.Text()
}

func (m Model) renderInspection(s detail.InspectionState) string {
	if s.Err != nil {
		return m.styles.Error.Render(s.Err.Error())
	}
	lines := []string{"Status: " + m.styles.status(string(s.Status), s.Status == "" || s.Status.Known())}
	if s.Loading {
		lines = append(lines, "Loading…")
	}
	switch s.Status {
	case client.InspectionPending:
		lines = append(lines, m.styles.Muted.Render("Not inspected yet. Press i to inspect."))
	case client.InspectionInspecting:
		lines = append(lines, m.styles.Muted.Render("Inspection in progress."))
	case client.InspectionFailed:
		lines = append(lines, m.styles.Error.Render("Inspection failed."))
		lines = append(lines, section(m.styles, "Issues", s.Report.Issues)...)
	}
	if s.ShowReport() {
		lines = append(lines, section(m.styles, "Compose files", s.Report.ComposeFiles)...)
		if len(s.Report.Services) > 0 {
			services := make([]string, 0, len(s.Report.Services))
			for _, svc := range s.Report.Services {
				entry := svc.Name
				if svc.Builds() {
					entry += " [build " + svc.Build + "]"
				}
				if svc.Image != "" {
					entry += " [image " + svc.Image + "]"
				}
				services = append(services, entry)
			}
			lines = append(lines, section(m.styles, "Services", services)...)
		}
		lines = append(lines, section(m.styles, "Issues", s.Report.Issues)...)
		lines = append(lines, section(m.styles, "Recommendations", s.Report.Recommendations)...)
	}
	if s.Message != "" {
		lines = append(lines, "", m.styles.Info.Render(s.Message))
	}
	if s.Prepared {
		lines = append(lines, "", m.styles.Info.Render("Prepared for deployment"))
	}
	hint := "i: re-inspect · esc: close"
	if s.ShowPrepare() {
		hint = "p: prepare · " + hint
	}
	lines = append(lines, "", m.styles.Muted.Render(hint))
	return strings.Join(lines, "\n")
}

func section(s styles, title string, items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := []string{"", s.Title.Render(title)}
	for _, item := range items {
		out = append(out, "  • "+item)
	}
	return out
}
