package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Switch    key.Binding
	Refresh   key.Binding
	New       key.Binding
	Inspect   key.Binding
	Report    key.Binding
	Prepare   key.Binding
	Deploy    key.Binding
	Update    key.Binding
	Rollback  key.Binding
	Stop      key.Binding
	Container key.Binding
	History   key.Binding
	Logs      key.Binding
	Open      key.Binding
	Close     key.Binding
	Logout    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Switch:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "repos/apps")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Inspect:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inspect")),
		Report:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "report")),
		Prepare:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prepare")),
		Deploy:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deploy")),
		Update:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "update")),
		Rollback:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "rollback")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Container: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "container")),
		History:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		Logs:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "container logs")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Close:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Logout:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.New, k.Deploy, k.History, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Switch, k.Refresh, k.New},
		{k.Inspect, k.Report, k.Prepare},
		{k.Deploy, k.Update, k.Rollback, k.Stop, k.Container, k.History, k.Logs},
		{k.Open, k.Close, k.Logout, k.Help, k.Quit},
	}
}
