package bytebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// Client is a lightweight client for the Bytebase v1 release API.
// Every call is attempted exactly once.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
	observe   func(op string, statusCode int)
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the base transport. The bearer token and tracing layers
// are applied on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// WithLogger sets the logger used for request debugging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithObserver registers a callback invoked after every response with the
// operation name and HTTP status code.
func WithObserver(fn func(op string, statusCode int)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a Client for the service at baseURL authenticating with
// the given bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		userAgent: "release-action",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   otelhttp.NewTransport(base),
	}
	c.logger = c.logger.With("component", "bytebase_client")
	return c
}

// BaseURL returns the service URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckRelease runs the pre-flight check of files against targets.
func (c *Client) CheckRelease(ctx context.Context, project string, files []CheckFile, targets []string) (*CheckReleaseResponse, error) {
	req := struct {
		Release struct {
			Files []CheckFile `json:"files"`
		} `json:"release"`
		Targets []string `json:"targets"`
	}{Targets: targets}
	req.Release.Files = files

	var resp CheckReleaseResponse
	if err := c.doRequest(ctx, "check release", c.projectPath(project, "/releases:check"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchCreateSheets uploads sheets and returns their names in request order.
func (c *Client) BatchCreateSheets(ctx context.Context, project string, sheets []Sheet) ([]string, error) {
	type createSheetRequest struct {
		Sheet Sheet `json:"sheet"`
	}
	requests := make([]createSheetRequest, 0, len(sheets))
	for _, s := range sheets {
		requests = append(requests, createSheetRequest{Sheet: s})
	}

	var resp struct {
		Sheets []struct {
			Name string `json:"name"`
		} `json:"sheets"`
	}
	err := c.doRequest(ctx, "create sheets", c.projectPath(project, "/sheets:batchCreate"),
		map[string]any{"requests": requests}, &resp)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		names = append(names, s.Name)
	}
	return names, nil
}

// CreateRelease creates the release and returns its resource name.
func (c *Client) CreateRelease(ctx context.Context, project string, release *Release) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if err := c.doRequest(ctx, "create release", c.projectPath(project, "/releases"), release, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("%w: create release returned no name", ErrMalformedResponse)
	}
	return resp.Name, nil
}

// PreviewPlan previews applying the named release to targets.
func (c *Client) PreviewPlan(ctx context.Context, project, releaseName string, targets []string, allowOutOfOrder bool) (*PreviewPlanResponse, error) {
	req := map[string]any{
		"release":         releaseName,
		"targets":         targets,
		"allowOutOfOrder": allowOutOfOrder,
	}
	var resp PreviewPlanResponse
	if err := c.doRequest(ctx, "preview plan", c.projectPath(project, ":previewPlan"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) projectPath(project, suffix string) string {
	return "/v1/" + strings.Trim(project, "/") + suffix
}

// doRequest POSTs payload as JSON and decodes a successful body into out.
func (c *Client) doRequest(ctx context.Context, op, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bytebase: failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("bytebase: failed to create %s request: %w", op, err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bytebase: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bytebase: failed to read %s response: %w", op, err)
	}

	c.logger.Debug("bytebase request",
		"op", op,
		"url", req.URL.String(),
		"request_id", requestID,
		"status", resp.StatusCode,
	)
	if c.observe != nil {
		c.observe(op, resp.StatusCode)
	}

	message := errorMessage(body)
	if resp.StatusCode != http.StatusOK {
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Message: message}
	}
	if message != "" {
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Message: message}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s returned an empty body", ErrMalformedResponse, op)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

// errorMessage extracts the "message" field of an error body, if any.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}
