package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LoginResponse captures the token payload emitted by the auth endpoint.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	var resp LoginResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/token", body, &resp); err != nil {
		return LoginResponse{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return LoginResponse{}, errors.New("login response did not include a token")
	}
	return resp, nil
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Health reflects the unauthenticated health probe.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Health queries the control plane health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.call(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Repository mirrors a server-owned repository record. The github token is
// write-only and never appears here.
type Repository struct {
	ID                    int64            `json:"id"`
	Name                  string           `json:"name"`
	GitURL                string           `json:"git_url"`
	DefaultBranch         string           `json:"default_branch"`
	InspectionStatus      InspectionStatus `json:"inspection_status"`
	InspectionDetails     json.RawMessage  `json:"inspection_details,omitempty"`
	PreparedForDeployment bool             `json:"prepared_for_deployment"`
	DeploymentConfig      json.RawMessage  `json:"deployment_config,omitempty"`
}

// CreateRepositoryInput captures the payload for repository registration.
type CreateRepositoryInput struct {
	Name          string `json:"name"`
	GitURL        string `json:"git_url"`
	DefaultBranch string `json:"default_branch"`
	GitHubToken   string `json:"github_token,omitempty"`
}

// ListRepositories returns every registered repository.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	if err := c.list(ctx, "/api/repos/", &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetRepository fetches a single repository including its inspection report.
func (c *Client) GetRepository(ctx context.Context, id int64) (Repository, error) {
	var repo Repository
	if err := c.call(ctx, http.MethodGet, repoPath(id, ""), nil, &repo); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// CreateRepository registers a new repository.
func (c *Client) CreateRepository(ctx context.Context, input CreateRepositoryInput) (Repository, error) {
	var repo Repository
	if err := c.call(ctx, http.MethodPost, "/api/repos/", input, &repo); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// InspectionResult is returned when inspection is triggered.
type InspectionResult struct {
	Status  InspectionStatus `json:"status"`
	Details json.RawMessage  `json:"details,omitempty"`
}

// InspectRepository triggers server-side inspection of the repository.
func (c *Client) InspectRepository(ctx context.Context, id int64) (InspectionResult, error) {
	var res InspectionResult
	if err := c.call(ctx, http.MethodPost, repoPath(id, "inspect"), nil, &res); err != nil {
		return InspectionResult{}, err
	}
	return res, nil
}

// PrepareResult is returned when a repository is prepared for deployment.
type PrepareResult struct {
	Status  InspectionStatus `json:"status"`
	Config  json.RawMessage  `json:"config,omitempty"`
	Message string           `json:"message"`
}

// PrepareRepository normalises the repository's deployment configuration.
func (c *Client) PrepareRepository(ctx context.Context, id int64) (PrepareResult, error) {
	var res PrepareResult
	if err := c.call(ctx, http.MethodPost, repoPath(id, "prepare"), nil, &res); err != nil {
		return PrepareResult{}, err
	}
	return res, nil
}

// Application mirrors a server-owned application record.
type Application struct {
	ID                        int64             `json:"id"`
	Name                      string            `json:"name"`
	Repo                      int64             `json:"repo"`
	RepoName                  string            `json:"repo_name,omitempty"`
	ContainerPort             int               `json:"container_port"`
	HealthCheckPath           string            `json:"health_check_path,omitempty"`
	EnvVars                   EnvVars           `json:"env_vars,omitempty"`
	Status                    AppStatus         `json:"status"`
	CurrentPort               *int              `json:"current_port"`
	RepoPreparedForDeployment bool              `json:"repo_prepared_for_deployment"`
}

// PublicURL renders the out-of-band address of a running application. The
// port is assigned by the server; an application without one has no URL.
func (a Application) PublicURL(host string) string {
	if a.Status != AppRunning || a.CurrentPort == nil || *a.CurrentPort <= 0 {
		return ""
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, *a.CurrentPort)
}

// CreateApplicationInput captures the payload for application creation.
type CreateApplicationInput struct {
	Name            string            `json:"name"`
	Repo            int64             `json:"repo"`
	ContainerPort   int               `json:"container_port"`
	HealthCheckPath string            `json:"health_check_path"`
	EnvVars         map[string]string `json:"env_vars"`
}

// ListApplications returns every application.
func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	var apps []Application
	if err := c.list(ctx, "/api/apps/", &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateApplication binds a new application to a repository.
func (c *Client) CreateApplication(ctx context.Context, input CreateApplicationInput) (Application, error) {
	if input.EnvVars == nil {
		input.EnvVars = map[string]string{}
	}
	var app Application
	if err := c.call(ctx, http.MethodPost, "/api/apps/", input, &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// Deployment is an append-only history record.
type Deployment struct {
	ID             int64            `json:"id"`
	App            int64            `json:"app"`
	AppName        string           `json:"app_name,omitempty"`
	DeploymentType DeploymentType   `json:"deployment_type"`
	Status         DeploymentStatus `json:"status"`
	AssignedPort   *int             `json:"assigned_port"`
	ErrorSummary   string           `json:"error_summary"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TriggerDeployment queues a deploy, update or rollback for the application.
// Servers that answer with a non-JSON body still count as success.
func (c *Client) TriggerDeployment(ctx context.Context, appID int64, kind DeploymentType) (Deployment, error) {
	if !kind.Valid() {
		return Deployment{}, fmt.Errorf("unknown deployment type %q", kind)
	}
	var dep Deployment
	err := c.call(ctx, http.MethodPost, appPath(appID, string(kind)), nil, &dep)
	if err != nil && !errors.Is(err, ErrUnexpectedPayload) {
		return Deployment{}, err
	}
	return dep, nil
}

// ActionResult is the generic acknowledgement of an application action.
type ActionResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StopApplication stops the application's running container.
func (c *Client) StopApplication(ctx context.Context, appID int64) (ActionResult, error) {
	var res ActionResult
	err := c.call(ctx, http.MethodPost, appPath(appID, "stop"), nil, &res)
	if err != nil && !errors.Is(err, ErrUnexpectedPayload) {
		return ActionResult{}, err
	}
	return res, nil
}

// ContainerStatus reports the live container state of an application.
type ContainerStatus struct {
	Status  string          `json:"status"`
	Details json.RawMessage `json:"details,omitempty"`
}

// ContainerStatus queries the container runtime for the application.
func (c *Client) ContainerStatus(ctx context.Context, appID int64) (ContainerStatus, error) {
	resp, err := c.Request(ctx, appPath(appID, "container_status"), RequestOptions{Method: http.MethodGet})
	if err != nil {
		return ContainerStatus{}, err
	}
	if resp.Text != "" {
		return ContainerStatus{Status: strings.TrimSpace(resp.Text)}, nil
	}
	var status ContainerStatus
	if err := resp.Decode(&status); err != nil {
		return ContainerStatus{}, err
	}
	return status, nil
}

// ListDeployments returns the application's deployments, most recent first.
func (c *Client) ListDeployments(ctx context.Context, appID int64) ([]Deployment, error) {
	path := "/api/deployments/?app=" + url.QueryEscape(strconv.FormatInt(appID, 10))
	var deployments []Deployment
	if err := c.list(ctx, path, &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// DeploymentLogs returns the log blob of one deployment. A missing blob is
// returned as an empty string.
func (c *Client) DeploymentLogs(ctx context.Context, deploymentID int64) (string, error) {
	return c.logs(ctx, fmt.Sprintf("/api/deployments/%d/logs/", deploymentID))
}

// ApplicationLogs returns the tail of the application's container output.
func (c *Client) ApplicationLogs(ctx context.Context, appID int64) (string, error) {
	return c.logs(ctx, appPath(appID, "logs"))
}

// logs reads a {"logs": ...} payload, accepting a raw text body as well.
func (c *Client) logs(ctx context.Context, path string) (string, error) {
	resp, err := c.Request(ctx, path, RequestOptions{Method: http.MethodGet})
	if err != nil {
		return "", err
	}
	if resp.Text != "" {
		return resp.Text, nil
	}
	var payload struct {
		Logs *string `json:"logs"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	if payload.Logs == nil {
		return "", nil
	}
	return *payload.Logs, nil
}

// list decodes either a bare JSON array or a paginated {"results": [...]} envelope.
func (c *Client) list(ctx context.Context, path string, v any) error {
	resp, err := c.Request(ctx, path, RequestOptions{Method: http.MethodGet})
	if err != nil {
		return err
	}
	if resp.Text != "" {
		return ErrUnexpectedPayload
	}
	if resp.JSON == nil {
		return nil
	}
	if bytes.HasPrefix(resp.JSON, []byte("{")) {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(resp.JSON, &page); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if page.Results == nil {
			return fmt.Errorf("decode response: expected a list")
		}
		return Response{JSON: page.Results}.Decode(v)
	}
	return resp.Decode(v)
}

func repoPath(id int64, action string) string {
	if action == "" {
		return fmt.Sprintf("/api/repos/%d/", id)
	}
	return fmt.Sprintf("/api/repos/%d/%s/", id, action)
}

func appPath(id int64, action string) string {
	return fmt.Sprintf("/api/apps/%d/%s/", id, action)
}
