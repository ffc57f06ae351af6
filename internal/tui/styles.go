package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Disabled lipgloss.Style
	Pane     lipgloss.Style
	Modal    lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Muted    lipgloss.Style
	Status   map[string]lipgloss.Style
}

func newStyles() styles {
	return styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#3B4252")).Padding(0, 1),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0")),
		Item:     lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EBCB8B")),
		Disabled: lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A")),
		Pane:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4C566A")).Padding(0, 1),
		Modal:    lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#88C0D0")).Padding(0, 1),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A")).Bold(true),
		Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1")),
		Status: map[string]lipgloss.Style{
			"running":    lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C")),
			"prepared":   lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C")),
			"ready":      lipgloss.NewStyle().Foreground(lipgloss.Color("#8FBCBB")),
			"queued":     lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B")),
			"deploying":  lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B")),
			"inspecting": lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B")),
			"failed":     lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A")),
		},
	}
}

// status colours v; states the server added after this build are marked with "?".
func (s styles) status(v string, known bool) string {
	if !known {
		return s.Muted.Render(v + "?")
	}
	if st, ok := s.Status[v]; ok {
		return st.Render(v)
	}
	return s.Muted.Render(v)
}
