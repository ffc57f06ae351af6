package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestRequestSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Fatalf("expected Accept application/json, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Token abc" {
			t.Fatalf("unexpected Authorization header %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatalf("expected request id header")
		}
		switch r.URL.Path {
		case "/with-body":
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Fatalf("expected json content type, got %q", got)
			}
		case "/explicit":
			if got := r.Header.Get("Content-Type"); got != "text/plain" {
				t.Fatalf("explicit content type overwritten: %q", got)
			}
		case "/no-body":
			if got := r.Header.Get("Content-Type"); got != "" {
				t.Fatalf("content type set without body: %q", got)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli, err := New(srv.URL, WithTokenSource(staticToken(" abc ")))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	if _, err := cli.Request(ctx, "/with-body", RequestOptions{Method: http.MethodPost, Body: map[string]string{"a": "b"}}); err != nil {
		t.Fatalf("with body: %v", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	if _, err := cli.Request(ctx, "/explicit", RequestOptions{Method: http.MethodPost, Body: "raw", Header: header}); err != nil {
		t.Fatalf("explicit: %v", err)
	}
	resp, err := cli.Request(ctx, "/no-body", RequestOptions{})
	if err != nil {
		t.Fatalf("no body: %v", err)
	}
	if !resp.Empty() {
		t.Fatalf("expected empty response, got %+v", resp)
	}
}

func TestRequestOmitsAuthorizationWithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Fatalf("authorization header should be omitted")
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL, WithTokenSource(staticToken("")))
	if _, err := cli.ListRepositories(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestRequestHTTPErrorUsesPayloadMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		http.Error(w, "<html>boom</html>", http.StatusBadGateway)
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.Request(context.Background(), "/json", RequestOptions{})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Error() != "Invalid credentials" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}

	_, err = cli.Request(context.Background(), "/html", RequestOptions{})
	if err == nil || err.Error() != "Request failed (502)" {
		t.Fatalf("expected generic message, got %v", err)
	}
}

func TestRequestReturnsRawTextForNonJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain log line\n"))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	resp, err := cli.Request(context.Background(), "/x", RequestOptions{})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.JSON != nil || resp.Text != "plain log line\n" {
		t.Fatalf("unexpected response %+v", resp)
	}
	logs, err := cli.DeploymentLogs(context.Background(), 4)
	if err != nil || logs != "plain log line\n" {
		t.Fatalf("expected raw logs, got %q %v", logs, err)
	}
}

func TestRequestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	var observedStatus = -1
	cli, _ := New(base, WithObserver(func(method, route string, status int, elapsed time.Duration) {
		observedStatus = status
	}))
	_, err := cli.ListApplications(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
	if netErr.Err == nil || err.Error() != netErr.Err.Error() {
		t.Fatalf("network error should surface its cause verbatim: %v", err)
	}
	if observedStatus != 0 {
		t.Fatalf("expected observer status 0, got %d", observedStatus)
	}
}

func TestListAcceptsPaginatedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/deployments/" || r.URL.Query().Get("app") != "7" {
			t.Fatalf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"count":1,"results":[{"id":3,"app":7,"deployment_type":"rollback","status":"SUCCESS","created_at":"2024-05-01T10:00:00.123456Z"}]}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	deps, err := cli.ListDeployments(context.Background(), 7)
	if err != nil {
		t.Fatalf("list deployments: %v", err)
	}
	if len(deps) != 1 || deps[0].DeploymentType != DeployRollback || deps[0].Status != DeploymentSuccess {
		t.Fatalf("unexpected deployments %+v", deps)
	}
}

func TestTriggerDeploymentPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		w.Write([]byte("queued"))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	for _, kind := range []DeploymentType{DeployFresh, DeployUpdate, DeployRollback} {
		if _, err := cli.TriggerDeployment(context.Background(), 2, kind); err != nil {
			t.Fatalf("trigger %s: %v", kind, err)
		}
	}
	want := "/api/apps/2/deploy/,/api/apps/2/update/,/api/apps/2/rollback/"
	if got := strings.Join(paths, ","); got != want {
		t.Fatalf("unexpected paths %s", got)
	}
	if _, err := cli.TriggerDeployment(context.Background(), 2, "restart"); err == nil {
		t.Fatalf("expected unknown deployment type to fail")
	}
}

func TestCreateApplicationSendsEmptyEnvObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(payload["env_vars"]) != "{}" {
			t.Fatalf("expected env_vars {}, got %s", payload["env_vars"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1,"name":"web","repo":1,"container_port":8000,"status":""}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	app, err := cli.CreateApplication(context.Background(), CreateApplicationInput{Name: "web", Repo: 1, ContainerPort: 8000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.Status != AppIdle {
		t.Fatalf("blank status should normalise to idle, got %q", app.Status)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !AppQueued.Transitional() || !AppDeploying.Transitional() {
		t.Fatalf("queued and deploying are transitional")
	}
	if AppRunning.Transitional() || AppStatus("stopped").Transitional() {
		t.Fatalf("running and unknown states are not transitional")
	}
	if !InspectionReady.AllowsPrepare() || !InspectionPrepared.AllowsPrepare() || InspectionInspecting.AllowsPrepare() {
		t.Fatalf("unexpected prepare gating")
	}
	if IsUnauthorized(APIError{Status: 500}) || !IsUnauthorized(APIError{Status: 401}) {
		t.Fatalf("unexpected unauthorized classification")
	}
}

func TestRouteCollapsesIdentifiers(t *testing.T) {
	if got := Route("/api/apps/12/deploy/?x=1"); got != "/api/apps/:id/deploy/" {
		t.Fatalf("unexpected route %s", got)
	}
}

func TestPublicURL(t *testing.T) {
	port := 9001
	app := Application{Status: AppRunning, CurrentPort: &port}
	if got := app.PublicURL("10.0.0.5"); got != "http://10.0.0.5:9001" {
		t.Fatalf("unexpected url %s", got)
	}
	app.Status = AppFailed
	if got := app.PublicURL("10.0.0.5"); got != "" {
		t.Fatalf("non-running app should have no url, got %s", got)
	}
}

func TestListApplicationsToleratesScalarEnvValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"name":"api","repo":1,"container_port":8000,"status":"running","env_vars":{"PORT":8000,"DEBUG":true,"RATIO":0.50,"EMPTY":null,"NAME":"api"}},
			{"id":2,"name":"worker","repo":1,"container_port":8001,"status":"deploying","env_vars":{"OPTS":{"a":[1, 2]}}},
			{"id":3,"name":"cron","repo":1,"container_port":8002,"status":"idle","env_vars":null}
		]`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	apps, err := cli.ListApplications(context.Background())
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	if len(apps) != 3 {
		t.Fatalf("expected every application, got %d", len(apps))
	}
	env := apps[0].EnvVars
	if env["PORT"] != "8000" || env["DEBUG"] != "true" || env["RATIO"] != "0.50" || env["EMPTY"] != "" || env["NAME"] != "api" {
		t.Fatalf("unexpected env %v", env)
	}
	if apps[1].EnvVars["OPTS"] != `{"a":[1,2]}` || apps[1].Status != AppDeploying {
		t.Fatalf("nested values should be kept as compact json: %+v", apps[1])
	}
	if apps[2].EnvVars != nil {
		t.Fatalf("null env should stay nil, got %v", apps[2].EnvVars)
	}
}

func TestApplicationLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/apps/5/logs/":
			w.Write([]byte(`{"logs":"listening on :8000\n"}`))
		case "/api/apps/6/logs/":
			w.Write([]byte(`{"logs":""}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	logs, err := cli.ApplicationLogs(context.Background(), 5)
	if err != nil || logs != "listening on :8000\n" {
		t.Fatalf("unexpected logs %q %v", logs, err)
	}
	if logs, err := cli.ApplicationLogs(context.Background(), 6); err != nil || logs != "" {
		t.Fatalf("empty logs should be blank, got %q %v", logs, err)
	}
}
