package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/munaimtahir/keystone/internal/tui"
)

func commandLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	id := fs.Int64("deployment", 0, "Deployment identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--deployment is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	views := e.con.Views()
	if err := views.OpenLogs(ctx, *id); err != nil {
		return err
	}
	fmt.Println(views.Current().Logs.Text())
	return nil
}

func commandWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	id := fs.Int64("id", 0, "Only report this application")
	fs.Parse(args)

	e, err := bootstrap("", false)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireSession(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if err := e.con.Reload(ctx); err != nil {
		return err
	}
	if !e.con.Mirror().Snapshot().AnyTransitional() {
		fmt.Println("no applications are queued or deploying")
		return nil
	}
	return watchApplications(ctx, e, *id)
}

func commandTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	e, err := bootstrap(*apiBase, true)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signalContext()
	defer stop()
	go e.con.Run(ctx)

	p := tea.NewProgram(tui.New(ctx, e.con), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
