package validate

import (
	"strings"

	"github.com/munaimtahir/keystone/pkg/api/client"
)

// RepositoryForm is the operator's input for registering a repository.
type RepositoryForm struct {
	Name          string `validate:"notblank"`
	GitURL        string `validate:"giturl"`
	DefaultBranch string
	GitHubToken   string
}

var repositoryMessages = map[string]string{
	"Name":   "Repository name is required",
	"GitURL": "Git URL must be an https://, http:// or git@host:org/repo.git address",
}

// Repository validates the form and builds the create payload.
func Repository(form RepositoryForm) (client.CreateRepositoryInput, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.GitURL = strings.TrimSpace(form.GitURL)
	if err := Struct(form, repositoryMessages); err != nil {
		return client.CreateRepositoryInput{}, err
	}
	branch := strings.TrimSpace(form.DefaultBranch)
	if branch == "" {
		branch = DefaultBranch
	}
	return client.CreateRepositoryInput{
		Name:          form.Name,
		GitURL:        form.GitURL,
		DefaultBranch: branch,
		GitHubToken:   strings.TrimSpace(form.GitHubToken),
	}, nil
}

// ApplicationForm is the operator's input for creating an application. Port
// and EnvVars hold raw text as typed.
type ApplicationForm struct {
	Name            string
	RepoID          int64
	Port            string
	HealthCheckPath string
	EnvVars         string
}

type applicationInput struct {
	Name   string `validate:"notblank"`
	RepoID int64  `validate:"gt=0"`
}

var applicationMessages = map[string]string{
	"Name":   "Application name is required",
	"RepoID": "Select a repository",
}

// Application validates the form and builds the create payload.
func Application(form ApplicationForm) (client.CreateApplicationInput, error) {
	name := strings.TrimSpace(form.Name)
	if err := Struct(applicationInput{Name: name, RepoID: form.RepoID}, applicationMessages); err != nil {
		return client.CreateApplicationInput{}, err
	}
	port, err := Port(form.Port)
	if err != nil {
		return client.CreateApplicationInput{}, err
	}
	env, err := EnvVars(form.EnvVars)
	if err != nil {
		return client.CreateApplicationInput{}, err
	}
	return client.CreateApplicationInput{
		Name:            name,
		Repo:            form.RepoID,
		ContainerPort:   port,
		HealthCheckPath: strings.TrimSpace(form.HealthCheckPath),
		EnvVars:         env,
	}, nil
}
