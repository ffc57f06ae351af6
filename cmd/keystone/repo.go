package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/munaimtahir/keystone/internal/detail"
	"github.com/munaimtahir/keystone/internal/validate"
)

func commandRepo(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: keystone repo [list|create|show|inspect|prepare]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return repoList(args[1:])
	case "create":
		return repoCreate(args[1:])
	case "show":
		return repoShow(args[1:])
	case "inspect":
		return repoInspect(args[1:])
	case "prepare":
		return repoPrepare(args[1:])
	default:
		return fmt.Errorf("unknown repo command: %s", sub)
	}
}

func repoList(args []string) error {
	fs := flag.NewFlagSet("repo list", flag.ExitOnError)
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
	for _, r := range e.con.Mirror().Snapshot().Repositories {
		fmt.Printf("%d\t%s\t%s\t%s\tprepared=%t\n", r.ID, r.Name, r.InspectionStatus, r.GitURL, r.PreparedForDeployment)
	}
	return nil
}

func repoCreate(args []string) error {
	fs := flag.NewFlagSet("repo create", flag.ExitOnError)
	name := fs.String("name", "", "Repository name")
	gitURL := fs.String("git-url", "", "https:// or git@host:org/repo.git remote")
	branch := fs.String("branch", "", "Default branch (default main)")
	token := fs.String("github-token", "", "Optional GitHub token for private repositories")
	fs.Parse(args)

	e, ctx, cancel, err := sessionEnv()
	if err != nil {
		return err
	}
	defer e.close()
	defer cancel()

	repo, err := e.con.Gateway().AddRepository(ctx, validate.RepositoryForm{
		Name:          *name,
		GitURL:        *gitURL,
		DefaultBranch: *branch,
		GitHubToken:   *token,
	})
	if err != nil {
		return err
	}
	fmt.Printf("repository created: %d (%s)\n", repo.ID, repo.Name)
	return nil
}

func repoShow(args []string) error {
	fs := flag.NewFlagSet("repo show", flag.ExitOnError)
	id := fs.Int64("id", 0, "Repository identifier")
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
	if err := views.OpenInspection(ctx, *id); err != nil {
		return err
	}
	printInspection(views.Current().Inspection)
	return nil
}

func repoInspect(args []string) error {
	fs := flag.NewFlagSet("repo inspect", flag.ExitOnError)
	id := fs.Int64("id", 0, "Repository identifier")
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
	if _, err := e.con.Gateway().InspectRepository(ctx, *id); err != nil {
		return err
	}
	printInspection(e.con.Views().Current().Inspection)
	return nil
}

func repoPrepare(args []string) error {
	fs := flag.NewFlagSet("repo prepare", flag.ExitOnError)
	id := fs.Int64("id", 0, "Repository identifier")
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
	res, err := e.con.Gateway().PrepareRepository(ctx, *id)
	if err != nil {
		return err
	}
	msg := res.Message
	if msg == "" {
		msg = "repository prepared"
	}
	fmt.Printf("%s (status=%s)\n", msg, res.Status)
	return nil
}

func printInspection(s detail.InspectionState) {
	fmt.Printf("repository %d %s\n", s.RepoID, s.RepoName)
	fmt.Printf("status: %s\tprepared: %t\n", s.Status, s.Prepared)
	if !s.ShowReport() {
		return
	}
	printSection("compose files", s.Report.ComposeFiles)
	if len(s.Report.Services) > 0 {
		fmt.Println("services:")
		for _, svc := range s.Report.Services {
			line := "  - " + svc.Name
			if svc.Builds() {
				line += " build=" + svc.Build
			}
			if svc.Image != "" {
				line += " image=" + svc.Image
			}
			fmt.Println(line)
		}
	}
	printSection("issues", s.Report.Issues)
	printSection("recommendations", s.Report.Recommendations)
	if s.ShowPrepare() {
		fmt.Printf("\nrun 'keystone repo prepare --id %d' to prepare for deployment\n", s.RepoID)
	}
}

func printSection(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println(title + ":")
	for _, item := range items {
		fmt.Println("  - " + item)
	}
}

// sessionEnv bootstraps a console that must already hold a session.
func sessionEnv() (*env, context.Context, context.CancelFunc, error) {
	e, err := bootstrap("", false)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := e.requireSession(); err != nil {
		e.close()
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	return e, ctx, cancel, nil
}
