package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/munaimtahir/keystone/internal/validate"
)

type formKind int

const (
	formNone formKind = iota
	formLogin
	formRepository
	formApplication
)

// form is a vertical list of text inputs. Values survive failed submissions.
type form struct {
	kind   formKind
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
}

func newInput(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 512
	ti.Width = 48
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func newLoginForm(username string) form {
	f := form{
		kind:   formLogin,
		title:  "Sign in to Keystone",
		labels: []string{"Username", "Password"},
		inputs: []textinput.Model{newInput("admin", false), newInput("", true)},
	}
	f.inputs[0].SetValue(username)
	if username != "" {
		f.focus = 1
	}
	f.inputs[f.focus].Focus()
	return f
}

func newRepositoryForm() form {
	f := form{
		kind:   formRepository,
		title:  "Add repository",
		labels: []string{"Name", "Git URL", "Default branch", "GitHub token"},
		inputs: []textinput.Model{
			newInput("svc", false),
			newInput("https://github.com/org/repo.git", false),
			newInput(validate.DefaultBranch, false),
			newInput("optional", true),
		},
	}
	f.inputs[0].Focus()
	return f
}

func newApplicationForm(repoID int64) form {
	f := form{
		kind:   formApplication,
		title:  "Add application",
		labels: []string{"Name", "Repository ID", "Container port", "Health check path", "Env vars (JSON object)"},
		inputs: []textinput.Model{
			newInput("web", false),
			newInput("", false),
			newInput("8000", false),
			newInput("/health", false),
			newInput(`{"KEY":"value"}`, false),
		},
	}
	if repoID > 0 {
		f.inputs[1].SetValue(strconv.FormatInt(repoID, 10))
	}
	f.inputs[0].Focus()
	return f
}

func (f form) value(i int) string {
	return f.inputs[i].Value()
}

func (f form) repositoryForm() validate.RepositoryForm {
	return validate.RepositoryForm{
		Name:          f.value(0),
		GitURL:        f.value(1),
		DefaultBranch: f.value(2),
		GitHubToken:   f.value(3),
	}
}

func (f form) applicationForm() validate.ApplicationForm {
	repoID, _ := strconv.ParseInt(strings.TrimSpace(f.value(1)), 10, 64)
	return validate.ApplicationForm{
		Name:            f.value(0),
		RepoID:          repoID,
		Port:            f.value(2),
		HealthCheckPath: f.value(3),
		EnvVars:         f.value(4),
	}
}

// move shifts focus by delta, wrapping around.
func (f form) move(delta int) form {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
	return f
}

func (f form) update(msg tea.Msg) (form, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f form) view(s styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(f.title))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := s.Muted.Render(f.labels[i])
		if i == f.focus {
			label = s.Selected.Render(f.labels[i])
		}
		b.WriteString(label + "\n" + in.View() + "\n\n")
	}
	b.WriteString(s.Muted.Render("tab/shift+tab move · enter submit · esc cancel"))
	return b.String()
}
