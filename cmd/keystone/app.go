package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/munaimtahir/keystone/internal/gateway"
	"github.com/munaimtahir/keystone/internal/mirror"
	"github.com/munaimtahir/keystone/internal/validate"
	"github.com/munaimtahir/keystone/pkg/api/client"
)

func commandApp(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: keystone app [list|create|deploy|update|rollback|stop|status|history|logs]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return appList(args[1:])
	case "create":
		return appCreate(args[1:])
	case "deploy":
		return appTrigger(client.DeployFresh, args[1:])
	case "update":
		return appTrigger(client.DeployUpdate, args[1:])
	case "rollback":
		return appTrigger(client.DeployRollback, args[1:])
	case "stop":
		return appStop(args[1:])
	case "status":
		return appStatus(args[1:])
	case "history":
		return appHistory(args[1:])
	case "logs":
		return appLogs(args[1:])
	default:
		return fmt.Errorf("unknown app command: %s", sub)
	}
}

func appList(args []string) error {
	fs := flag.NewFlagSet("app list", flag.ExitOnError)
	fs.Parse(args)

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	if err := e.con.Reload(ctx); err != nil {
		return err
	}
	host := e.con.PublicHost()
	for _, a := range e.con.Mirror().Snapshot().Applications {
		fmt.Printf("%d\t%s\t%s\trepo=%d\tdeploy=%s\trollback=%s\t%s\n",
			a.ID, a.Name, a.Status, a.Repo,
			enabled(gateway.CanDeploy(a)), enabled(gateway.CanRollback(a)), a.PublicURL(host))
	}
	return nil
}

func appCreate(args []string) error {
	fs := flag.NewFlagSet("app create", flag.ExitOnError)
	name := fs.String("name", "", "Application name")
	repo := fs.Int64("repo", 0, "Repository identifier")
	port := fs.String("port", "", "Container port")
	health := fs.String("health", "", "Health check path")
	envVars := fs.String("env", "", `Environment variables as a JSON object, e.g. '{"KEY":"value"}'`)
	fs.Parse(args)

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	app, err := e.con.Gateway().AddApplication(ctx, validate.ApplicationForm{
		Name:            *name,
		RepoID:          *repo,
		Port:            *port,
		HealthCheckPath: *health,
		EnvVars:         *envVars,
	})
	if err != nil {
		return err
	}
	fmt.Printf("application created: %d (%s)\n", app.ID, app.Name)
	return nil
}

func appTrigger(kind client.DeploymentType, args []string) error {
	fs := flag.NewFlagSet("app "+string(kind), flag.ExitOnError)
	id := fs.Int64("id", 0, "Application identifier")
	wait := fs.Bool("wait", false, "Poll until the application settles")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	if err := e.con.Reload(ctx); err != nil {
		return err
	}
	if _, err := e.con.Gateway().Deploy(ctx, *id, kind); err != nil {
		return err
	}
	fmt.Println(e.con.Notice().Current().Message)
	if !*wait {
		return nil
	}
	sigCtx, stop := signalContext()
	defer stop()
	return watchApplications(sigCtx, e, *id)
}

func appStop(args []string) error {
	fs := flag.NewFlagSet("app stop", flag.ExitOnError)
	id := fs.Int64("id", 0, "Application identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	if err := e.con.Reload(ctx); err != nil {
		return err
	}
	if _, err := e.con.Gateway().StopApplication(ctx, *id); err != nil {
		return err
	}
	fmt.Println(e.con.Notice().Current().Message)
	return nil
}

func appStatus(args []string) error {
	fs := flag.NewFlagSet("app status", flag.ExitOnError)
	id := fs.Int64("id", 0, "Application identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	status, err := e.con.Gateway().CheckContainerStatus(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Println(status.Status)
	if len(status.Details) > 0 {
		fmt.Println(string(status.Details))
	}
	return nil
}

func appHistory(args []string) error {
	fs := flag.NewFlagSet("app history", flag.ExitOnError)
	id := fs.Int64("id", 0, "Application identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	views := e.con.Views()
	if err := views.OpenHistory(ctx, *id); err != nil {
		return err
	}
	deps := views.Current().History.Deployments
	if len(deps) == 0 {
		fmt.Println("no deployments yet")
		return nil
	}
	for _, d := range deps {
		port := "-"
		if d.AssignedPort != nil {
			port = fmt.Sprint(*d.AssignedPort)
		}
		fmt.Printf("%d\t%s\t%s\tport=%s\t%s\t%s\n", d.ID, d.DeploymentType, d.Status, port, d.CreatedAt.Format(time.RFC3339), d.ErrorSummary)
	}
	return nil
}

func enabled(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

// watchApplications polls until nothing is queued or deploying, printing
// each status change. appID zero watches every application.
func watchApplications(ctx context.Context, e *env, appID int64) error {
	last := map[int64]client.AppStatus{}
	for _, a := range e.con.Mirror().Snapshot().Applications {
		last[a.ID] = a.Status
	}
	host := e.con.PublicHost()
	err := e.con.Watch(ctx, func(snap mirror.Snapshot) {
		for _, a := range snap.Applications {
			if appID != 0 && a.ID != appID {
				continue
			}
			if prev, ok := last[a.ID]; ok && prev == a.Status {
				continue
			}
			last[a.ID] = a.Status
			line := fmt.Sprintf("%s\t%s\t%s", time.Now().Format("15:04:05"), a.Name, a.Status)
			if url := a.PublicURL(host); url != "" {
				line += "\t" + url
			}
			fmt.Println(line)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func appLogs(args []string) error {
	fs := flag.NewFlagSet("app logs", flag.ExitOnError)
	id := fs.Int64("id", 0, "Application identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	views := e.con.Views()
	if err := views.OpenContainerLogs(ctx, *id); err != nil {
		return err
	}
	fmt.Println(views.Current().Logs.Text())
	return nil
}
