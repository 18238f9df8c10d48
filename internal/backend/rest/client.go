// Package rest implements the service.Service interface over the task store's
// JSON HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"tasksync/internal/config"
	"tasksync/internal/errors"
	"tasksync/internal/logging"
	"tasksync/internal/service"
)

const (
	// DefaultRequestTimeout bounds list/get/create/update/delete calls.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultHealthTimeout bounds the health call.
	DefaultHealthTimeout = 5 * time.Second

	// RequestIDHeader carries a per-call identifier for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Client implements service.Service over HTTP.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	requestTimeout time.Duration
	healthTimeout  time.Duration
	logger         *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRequestTimeout sets the timeout for task calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithHealthTimeout sets the timeout for the health call.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.healthTimeout = d
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent("rest")
		}
	}
}

// New creates a client from the resolved configuration.
// If token.json exists in the config dir, requests carry its bearer token.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	httpClient := &http.Client{Transport: http.DefaultTransport}

	if cfg.HasToken() {
		token, err := LoadToken(cfg.TokenPath())
		if err != nil {
			return nil, err
		}
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(token, oauth2.StaticTokenSource(token)),
			Base:   http.DefaultTransport,
		}
	}

	return NewWithHTTPClient(cfg.API.BaseURL, httpClient,
		WithRequestTimeout(cfg.API.RequestTimeout),
		WithHealthTimeout(cfg.API.HealthTimeout),
		WithLogger(cfg.Log()),
	)
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:        u,
		httpClient:     httpClient,
		requestTimeout: DefaultRequestTimeout,
		healthTimeout:  DefaultHealthTimeout,
		logger:         logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadToken reads a stored oauth2 token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("invalid token.json: missing access_token")
	}
	return &token, nil
}

// ListTasks returns every task in store order.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	var tasks []service.Task
	if err := c.do(ctx, "list tasks", c.requestTimeout, http.MethodGet, c.tasksURL(), nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// GetTask returns a single task.
func (c *Client) GetTask(ctx context.Context, id int64) (service.Task, error) {
	var task service.Task
	if err := c.do(ctx, "get task", c.requestTimeout, http.MethodGet, c.taskURL(id), nil, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// CreateTask validates the input locally, then creates the task.
func (c *Client) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	if err := in.Validate(); err != nil {
		return service.Task{}, err
	}
	in = in.Normalize()

	var task service.Task
	if err := c.do(ctx, "create task", c.requestTimeout, http.MethodPost, c.tasksURL(), in, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// UpdateTask validates the patch locally, then applies it.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch service.TaskPatch) (service.Task, error) {
	if err := patch.Validate(); err != nil {
		return service.Task{}, err
	}

	var task service.Task
	if err := c.do(ctx, "update task", c.requestTimeout, http.MethodPut, c.taskURL(id), patch, &task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes a task. The acknowledgement body is ignored.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, "delete task", c.requestTimeout, http.MethodDelete, c.taskURL(id), nil, nil)
}

// CheckHealth calls {base}/health.
func (c *Client) CheckHealth(ctx context.Context) (service.Health, error) {
	var health service.Health
	if err := c.do(ctx, "check health", c.healthTimeout, http.MethodGet, c.baseURL.JoinPath("health"), nil, &health); err != nil {
		return service.Health{}, err
	}
	return health, nil
}

// Ping calls {base}/api/v1/test.
func (c *Client) Ping(ctx context.Context) (service.Ping, error) {
	var ping service.Ping
	if err := c.do(ctx, "ping", c.healthTimeout, http.MethodGet, c.apiURL("test"), nil, &ping); err != nil {
		return service.Ping{}, err
	}
	return ping, nil
}

func (c *Client) apiURL(elem ...string) *url.URL {
	return c.baseURL.JoinPath(append([]string{"api", "v1"}, elem...)...)
}

func (c *Client) tasksURL() *url.URL {
	return c.apiURL("tasks")
}

func (c *Client) taskURL(id int64) *url.URL {
	return c.apiURL("tasks", strconv.FormatInt(id, 10))
}

// do performs one request with its own deadline and classifies the outcome.
// out may be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, op string, timeout time.Duration, method string, u *url.URL, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	target := u.String()
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	log := c.logger.With("op", op, "request_id", requestID, "method", method, "url", target)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cerr := classifyTransportError(ctx, op, target, timeout, err)
		log.Warn("request failed", "duration_ms", time.Since(start).Milliseconds(), "error", cerr.Error())
		return cerr
	}
	defer func() { _ = resp.Body.Close() }()

	if err := googleapi.CheckResponse(resp); err != nil {
		rerr := remoteError(op, resp.StatusCode, err)
		log.Warn("request rejected", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds(), "error", rerr.Error())
		return rerr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(ctx, op, target, timeout, err)
	}
	log.Debug("request completed", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds(), "bytes", len(data))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewRemoteError(op, resp.StatusCode, string(data), fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

// classifyTransportError maps a failure without a response to a timeout or
// unreachable error.
func classifyTransportError(ctx context.Context, op, target string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(op, timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeoutError(op, timeout, err)
	}
	return errors.NewUnreachableError(op, target, err)
}

// remoteError converts a googleapi.CheckResponse failure.
func remoteError(op string, status int, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return errors.NewRemoteError(op, gerr.Code, gerr.Body, err)
	}
	return errors.NewRemoteError(op, status, "", err)
}
