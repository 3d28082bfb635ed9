package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"AgentConsole/internal/tools"
)

// maxResponseSize limits response body reads.
const maxResponseSize = 10 * 1024 * 1024

// RequestIDHeader carries the per-call id that also appears in logs and spans.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// Client calls the agent API. Every call is made at most once; the token is
// passed explicitly so the client itself holds no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	failures   metric.Int64Counter
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("agentconsole/backend")
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("agentconsole/backend")
	}

	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter(
		"backend.request.errors",
		metric.WithDescription("Backend calls that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		tracer:     tracer,
		duration:   duration,
		failures:   failures,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "health", http.MethodGet, "/health", "", false, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, "/login", "", false, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, "register", http.MethodPost, "/register", "", false, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetProfile(ctx context.Context, token string) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, "profile_get", http.MethodGet, "/profile", token, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token, defaultAgent string) (*Profile, error) {
	var resp Profile
	req := UpdateProfileRequest{DefaultAgent: defaultAgent}
	if err := c.do(ctx, "profile_update", http.MethodPut, "/profile", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Generate calls POST /generate
func (c *Client) Generate(ctx context.Context, token string, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, "generate", http.MethodPost, "/generate", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Continue calls POST /continue
func (c *Client) Continue(ctx context.Context, token string, req ContinueRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, "continue", http.MethodPost, "/continue", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Orchestrate calls POST /orchestrate
func (c *Client) Orchestrate(ctx context.Context, token string, req OrchestrateRequest) (*OrchestrateResponse, error) {
	var resp OrchestrateResponse
	if err := c.do(ctx, "orchestrate", http.MethodPost, "/orchestrate", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Build calls POST /build
func (c *Client) Build(ctx context.Context, token string, req OrchestrateRequest) (*BuildResponse, error) {
	var resp BuildResponse
	if err := c.do(ctx, "build", http.MethodPost, "/build", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSession asks the server for a fresh session id
func (c *Client) CreateSession(ctx context.Context, token string) (*NewSessionResponse, error) {
	var resp NewSessionResponse
	if err := c.do(ctx, "session_create", http.MethodPost, "/sessions", token, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns every session id known to the server
func (c *Client) ListSessions(ctx context.Context, token string) (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.do(ctx, "session_list", http.MethodGet, "/sessions", token, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession fetches one session transcript
func (c *Client) GetSession(ctx context.Context, token, sessionID string) (*SessionDetail, error) {
	var resp SessionDetail
	path := "/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "session_get", http.MethodGet, path, token, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTools returns the tools the backend exposes
func (c *Client) ListTools(ctx context.Context, token string) ([]tools.Tool, error) {
	var resp ToolsResponse
	if err := c.do(ctx, "tools", http.MethodGet, "/tools", token, true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

func (c *Client) CreateFile(ctx context.Context, token, path, content string) (*FileResponse, error) {
	var resp FileResponse
	req := CreateFileRequest{Path: path, Content: content}
	if err := c.do(ctx, "file_create", http.MethodPost, "/files/create", token, true, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListFiles(ctx context.Context, token string) ([]string, error) {
	var resp FilesResponse
	if err := c.do(ctx, "file_list", http.MethodGet, "/files", token, true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) ReadFile(ctx context.Context, token, path string) (*ReadFileResponse, error) {
	var resp ReadFileResponse
	if err := c.do(ctx, "file_read", http.MethodPost, "/files/read", token, true, FileRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteFile(ctx context.Context, token, path string) (*FileResponse, error) {
	var resp FileResponse
	if err := c.do(ctx, "file_delete", http.MethodPost, "/files/delete", token, true, FileRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request and decodes the JSON response into respBody.
func (c *Client) do(ctx context.Context, op, method, path, token string, auth bool, reqBody, respBody any) (err error) {
	if auth && token == "" {
		return ErrMissingToken
	}

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("request_id", requestID),
		),
	)
	defer span.End()

	logger := c.logger.With("operation", op, "request_id", requestID)
	start := time.Now()
	status := 0

	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.Int("status", status),
		)
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		if err != nil {
			c.failures.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("backend call failed", "status", status, "error", err)
			return
		}
		logger.Info("backend call succeeded", "status", status, "duration_ms", time.Since(start).Milliseconds())
	}()

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return fmt.Errorf("response exceeds maximum size of %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		logger.Debug("undecodable response body", "error", err, "body_bytes", len(data))
		return ErrUnknownResponse
	}
	return nil
}
