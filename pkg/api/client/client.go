package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL    = "http://localhost:8000"
	defaultAuthScheme = "Token"
	defaultTimeout    = 15 * time.Second
)

// ErrUnexpectedPayload is returned by typed endpoints when a successful
// response carried a non-JSON body where a JSON document was required.
var ErrUnexpectedPayload = errors.New("unexpected non-JSON response")

// TokenSource yields the current session token. An empty token means no
// session is active and the Authorization header is omitted.
type TokenSource interface {
	Token() string
}

// Observer receives one call per completed request. Status is zero when the
// request failed before a response was received.
type Observer func(method, route string, status int, elapsed time.Duration)

// Client provides typed access to the Keystone control plane.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	scheme     string
	observe    Observer
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTokenSource attaches the session token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithAuthScheme sets the word placed before the token in the Authorization header.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(scheme); s != "" {
			c.scheme = s
		}
	}
}

// WithObserver registers a per-request hook, typically for metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		scheme:     defaultAuthScheme,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response. Message holds the payload's error field or
// a generic fallback, so it is always safe to show to the operator.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	return e.Message
}

// NetworkError is a connection-level failure. Its message is the underlying
// cause, unchanged.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// RequestOptions describes a single Request call.
type RequestOptions struct {
	Method string
	// Body is sent as-is when it is a string or []byte and JSON-encoded otherwise.
	Body   any
	Header http.Header
}

// Response is a normalised 2xx response body. An empty body leaves both JSON
// and Text unset; a body that is not valid JSON is returned in Text.
type Response struct {
	Status int
	JSON   json.RawMessage
	Text   string
}

// Empty reports whether the response had no body.
func (r Response) Empty() bool {
	return r.JSON == nil && r.Text == ""
}

// Decode unmarshals the JSON body into v.
func (r Response) Decode(v any) error {
	if r.JSON == nil {
		if r.Text != "" {
			return ErrUnexpectedPayload
		}
		return nil
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Request performs an authenticated request against path, which is appended
// to the base URL.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (Response, error) {
	if c == nil {
		return Response{}, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		reader  io.Reader
		hasBody bool
	)
	switch body := opts.Body.(type) {
	case nil:
	case string:
		reader, hasBody = strings.NewReader(body), true
	case []byte:
		reader, hasBody = bytes.NewReader(body), true
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
		reader, hasBody = bytes.NewReader(payload), true
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.Token()); token != "" {
			req.Header.Set("Authorization", c.scheme+" "+token)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(method, path, 0, started)
		return Response{}, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.record(method, path, resp.StatusCode, started)
	if err != nil {
		return Response{}, &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, APIError{Status: resp.StatusCode, Message: extractError(data, resp.StatusCode)}
	}

	out := Response{Status: resp.StatusCode}
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
	case json.Valid(trimmed):
		out.JSON = json.RawMessage(trimmed)
	default:
		out.Text = string(data)
	}
	return out, nil
}

func (c *Client) record(method, path string, status int, started time.Time) {
	if c.observe == nil {
		return
	}
	c.observe(method, Route(path), status, time.Since(started))
}

func (c *Client) call(ctx context.Context, method, path string, body, v any) error {
	resp, err := c.Request(ctx, path, RequestOptions{Method: method, Body: body})
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return resp.Decode(v)
}

func extractError(data []byte, status int) string {
	fallback := fmt.Sprintf("Request failed (%d)", status)
	if len(bytes.TrimSpace(data)) == 0 {
		return fallback
	}
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallback
	}
	msg, ok := payload.Error.(string)
	if !ok || strings.TrimSpace(msg) == "" {
		return fallback
	}
	return strings.TrimSpace(msg)
}

// Route collapses numeric path segments into ":id" and drops the query so
// requests can be grouped by endpoint.
func Route(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		numeric := true
		for _, r := range part {
			if r < '0' || r > '9' {
				numeric = false
				break
			}
		}
		if numeric {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
