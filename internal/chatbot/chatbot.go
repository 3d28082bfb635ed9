package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"AgentConsole/internal/backend"
	"AgentConsole/internal/config"
	"AgentConsole/internal/session"
	"AgentConsole/internal/state"
	"AgentConsole/internal/telemetry"
	"AgentConsole/internal/tools"
)

var (
	ErrNotAuthenticated  = errors.New("not logged in (missing token)")
	ErrEmptyPrompt       = errors.New("empty prompt")
	ErrNothingToContinue = errors.New("no AI text to continue")
	ErrEmptySessionID    = errors.New("session id required")
	ErrBusy              = errors.New("another request is still in progress")
	ErrStale             = errors.New("response discarded: the session changed while the request was in flight")

	ErrEmailRequired    = errors.New("email required")
	ErrPasswordRequired = errors.New("password required")
	ErrPasswordTooShort = fmt.Errorf("password too short (min %d)", MinPasswordLength)
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUnknownAgent     = fmt.Errorf("unknown agent (%s)", strings.Join(config.Agents, "|"))
)

// MinPasswordLength is the shortest password register accepts.
const MinPasswordLength = 4

// API is the subset of backend.Client the chat flow uses.
type API interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResponse, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error)
	GetProfile(ctx context.Context, token string) (*backend.Profile, error)
	UpdateProfile(ctx context.Context, token, defaultAgent string) (*backend.Profile, error)
	Generate(ctx context.Context, token string, req backend.GenerateRequest) (*backend.GenerateResponse, error)
	Continue(ctx context.Context, token string, req backend.ContinueRequest) (*backend.GenerateResponse, error)
	Orchestrate(ctx context.Context, token string, req backend.OrchestrateRequest) (*backend.OrchestrateResponse, error)
	Build(ctx context.Context, token string, req backend.OrchestrateRequest) (*backend.BuildResponse, error)
	CreateSession(ctx context.Context, token string) (*backend.NewSessionResponse, error)
	ListSessions(ctx context.Context, token string) (*backend.SessionsResponse, error)
	GetSession(ctx context.Context, token, sessionID string) (*backend.SessionDetail, error)
	ListTools(ctx context.Context, token string) ([]tools.Tool, error)
	CreateFile(ctx context.Context, token, path, content string) (*backend.FileResponse, error)
	ListFiles(ctx context.Context, token string) ([]string, error)
	ReadFile(ctx context.Context, token, path string) (*backend.ReadFileResponse, error)
	DeleteFile(ctx context.Context, token, path string) (*backend.FileResponse, error)
}

// Deps are the collaborators of a ChatBot. Logger, Tracer and Meter may be nil.
type Deps struct {
	API    API
	Store  state.Store
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// ChatBot holds the console state: credentials mirrored from the store, the
// visible transcript and the single in-flight call.
type ChatBot struct {
	config   config.Config
	api      API
	store    state.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	counter  metric.Int64Counter
	catalog  *tools.Catalog
	mu       sync.Mutex
	token    string
	sid      string
	agent    string
	messages []session.Message
	sessions []string
	lastErr  string

	// epoch changes whenever the identity changes (login, logout); a call
	// started under another epoch must not touch state.
	epoch    uint64
	inflight *call
}

// call is one backend interaction guarded by the loading flag.
type call struct {
	ctx       context.Context
	cancel    context.CancelFunc
	span      trace.Span
	epoch     uint64
	token     string
	sessionID string
}

// New creates a ChatBot and restores the token and session id from the store.
func New(ctx context.Context, cfg config.Config, deps Deps) (*ChatBot, error) {
	if deps.API == nil || deps.Store == nil {
		return nil, fmt.Errorf("chatbot needs an API client and a state store")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer, meter := deps.Tracer, deps.Meter
	if tracer == nil || meter == nil {
		noopTracer, noopMeter := telemetry.NoopTelemetry()
		if tracer == nil {
			tracer = noopTracer
		}
		if meter == nil {
			meter = noopMeter
		}
	}

	counter, err := meter.Int64Counter(
		"chatbot.messages",
		metric.WithDescription("Chat messages appended to the transcript"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message counter: %w", err)
	}

	token, err := deps.Store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	sid, err := deps.Store.SessionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session id: %w", err)
	}

	agent := cfg.Agent
	if !config.ValidAgent(agent) {
		agent = config.AgentAuto
	}

	cb := &ChatBot{
		config:  cfg,
		api:     deps.API,
		store:   deps.Store,
		logger:  logger,
		tracer:  tracer,
		counter: counter,
		catalog: tools.NewCatalog(),
		token:   token,
		sid:     sid,
		agent:   agent,
	}
	logger.Info("chatbot ready", "authenticated", token != "", "session_id", sid, "agent", agent)
	return cb, nil
}

// View is a read-only snapshot of the console state.
type View struct {
	Authenticated bool
	SessionID     string
	Agent         string
	Messages      []session.Message
	Sessions      []string
	Tools         []tools.Tool
	Loading       bool
	Error         string
}

// View returns a copy of the current state for rendering.
func (cb *ChatBot) View() View {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return View{
		Authenticated: cb.token != "",
		SessionID:     cb.sid,
		Agent:         cb.agent,
		Messages:      append([]session.Message(nil), cb.messages...),
		Sessions:      append([]string(nil), cb.sessions...),
		Tools:         cb.catalog.All(),
		Loading:       cb.inflight != nil,
		Error:         cb.lastErr,
	}
}

// Token returns the current bearer token, "" when logged out.
func (cb *ChatBot) Token() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.token
}

// SetAgent selects the agent used by Orchestrate and Build.
func (cb *ChatBot) SetAgent(name string) error {
	if !config.ValidAgent(name) {
		return ErrUnknownAgent
	}
	cb.mu.Lock()
	cb.agent = name
	cb.mu.Unlock()
	return nil
}

// ClearMessages empties the visible transcript without touching the server.
func (cb *ChatBot) ClearMessages() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.inflight != nil {
		return ErrBusy
	}
	cb.messages = nil
	return nil
}

// failLocked records err as the last error and returns it.
func (cb *ChatBot) failLocked(err error) error {
	cb.lastErr = err.Error()
	return err
}

// beginLocked starts a call. The caller holds cb.mu.
func (cb *ChatBot) beginLocked(ctx context.Context, op string, needAuth bool) (*call, error) {
	if needAuth && cb.token == "" {
		return nil, cb.failLocked(ErrNotAuthenticated)
	}
	if cb.inflight != nil {
		return nil, cb.failLocked(ErrBusy)
	}

	cctx, cancel := context.WithCancel(ctx)
	cctx, span := cb.tracer.Start(cctx, "chatbot."+op)
	c := &call{
		ctx:       cctx,
		cancel:    cancel,
		span:      span,
		epoch:     cb.epoch,
		token:     cb.token,
		sessionID: cb.sid,
	}
	cb.inflight = c
	cb.lastErr = ""
	return c, nil
}

func (cb *ChatBot) begin(ctx context.Context, op string, needAuth bool) (*call, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.beginLocked(ctx, op, needAuth)
}

// finish releases the loading flag if c still owns it.
func (cb *ChatBot) finish(c *call) {
	c.span.End()
	c.cancel()
	cb.mu.Lock()
	if cb.inflight == c {
		cb.inflight = nil
	}
	cb.mu.Unlock()
}

// settle applies the outcome of c under the lock. Responses from an older
// epoch are dropped. onError runs before the error is recorded.
func (cb *ChatBot) settle(c *call, err error, apply change, onError func()) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c.epoch != cb.epoch {
		cb.logger.Info("discarding stale response", "error", err)
		return ErrStale
	}
	if err != nil {
		c.span.RecordError(err)
		if onError != nil {
			onError()
		}
		return cb.failLocked(err)
	}
	if apply != nil {
		if err := apply(); err != nil {
			c.span.RecordError(err)
			return cb.failLocked(err)
		}
	}
	return nil
}

// change is a state update applied under cb.mu once a call has succeeded.
type change func() error

// run performs fn as one guarded call. fn returns the state change to apply.
func (cb *ChatBot) run(ctx context.Context, op string, needAuth bool, fn func(c *call) (change, error)) error {
	c, err := cb.begin(ctx, op, needAuth)
	if err != nil {
		return err
	}
	defer cb.finish(c)

	apply, err := fn(c)
	return cb.settle(c, err, apply, nil)
}

// appendLocked adds a message and counts it.
func (cb *ChatBot) appendLocked(ctx context.Context, msg session.Message) int {
	cb.messages = append(cb.messages, msg)
	cb.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(msg.Role))))
	return len(cb.messages) - 1
}

// adoptSessionLocked makes id the active session and persists it.
func (cb *ChatBot) adoptSessionLocked(ctx context.Context, id string) {
	if id == cb.sid {
		return
	}
	cb.sid = id
	if err := cb.store.SetSessionID(ctx, id); err != nil {
		cb.logger.Error("failed to persist session id", "session_id", id, "error", err)
		return
	}
	cb.logger.Info("active session changed", "session_id", id)
}

// refreshSessions re-reads the session list. Failures are logged only.
func (cb *ChatBot) refreshSessions(ctx context.Context, token string, epoch uint64) {
	resp, err := cb.api.ListSessions(ctx, token)
	if err != nil {
		cb.logger.Warn("failed to refresh sessions", "error", err)
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if epoch == cb.epoch {
		cb.sessions = resp.Sessions
	}
}

type sendMode int

const (
	modeGenerate sendMode = iota
	modeOrchestrate
	modeBuild
)

func (m sendMode) String() string {
	switch m {
	case modeGenerate:
		return "generate"
	case modeOrchestrate:
		return "orchestrate"
	default:
		return "build"
	}
}

// Generate sends prompt to /generate and appends the reply.
func (cb *ChatBot) Generate(ctx context.Context, prompt string) (session.Message, error) {
	return cb.send(ctx, modeGenerate, prompt)
}

// Orchestrate sends prompt to the selected agent and appends the reply
// tagged with the agent that handled it.
func (cb *ChatBot) Orchestrate(ctx context.Context, prompt string) (session.Message, error) {
	return cb.send(ctx, modeOrchestrate, prompt)
}

// Build asks the selected agent to generate files; the reply summarizes
// what was created.
func (cb *ChatBot) Build(ctx context.Context, prompt string) (session.Message, error) {
	return cb.send(ctx, modeBuild, prompt)
}

func (cb *ChatBot) send(ctx context.Context, mode sendMode, prompt string) (session.Message, error) {
	prompt = strings.TrimSpace(prompt)

	cb.mu.Lock()
	if cb.token == "" {
		err := cb.failLocked(ErrNotAuthenticated)
		cb.mu.Unlock()
		return session.Message{}, err
	}
	if prompt == "" {
		err := cb.failLocked(ErrEmptyPrompt)
		cb.mu.Unlock()
		return session.Message{}, err
	}
	c, err := cb.beginLocked(ctx, mode.String(), true)
	if err != nil {
		cb.mu.Unlock()
		return session.Message{}, err
	}
	idx := cb.appendLocked(ctx, session.Message{Role: session.RoleUser, Text: prompt, Status: session.StatusPending})
	agent := cb.agent
	cb.mu.Unlock()
	defer cb.finish(c)

	var reply session.Message
	var sid string
	switch mode {
	case modeGenerate:
		var resp *backend.GenerateResponse
		resp, err = cb.api.Generate(c.ctx, c.token, backend.GenerateRequest{
			Prompt:    prompt,
			Language:  cb.config.Language,
			MaxTokens: cb.config.MaxTokens,
			SessionID: c.sessionID,
		})
		if err == nil {
			reply, sid = session.AIMessage(resp.Result, ""), resp.SessionID
		}
	case modeOrchestrate:
		var resp *backend.OrchestrateResponse
		resp, err = cb.api.Orchestrate(c.ctx, c.token, backend.OrchestrateRequest{
			Prompt:    prompt,
			Agent:     agent,
			Language:  cb.config.Language,
			MaxTokens: cb.config.MaxTokens,
			SessionID: c.sessionID,
		})
		if err == nil {
			reply, sid = session.AIMessage(resp.Result, resp.Agent), resp.SessionID
		}
	case modeBuild:
		var resp *backend.BuildResponse
		resp, err = cb.api.Build(c.ctx, c.token, backend.OrchestrateRequest{
			Prompt:    prompt,
			Agent:     agent,
			Language:  cb.config.Language,
			MaxTokens: cb.config.BuildMaxTokens,
			SessionID: c.sessionID,
		})
		if err == nil {
			reply, sid = session.AIMessage(buildSummary(resp), resp.Agent), resp.SessionID
		}
	}

	err = cb.settle(c, err,
		func() error {
			cb.messages[idx].Status = session.StatusSent
			cb.appendLocked(c.ctx, reply)
			cb.adoptSessionLocked(c.ctx, sid)
			return nil
		},
		func() {
			cb.messages[idx].Status = session.StatusFailed
		},
	)
	if err != nil {
		cb.logger.Warn("send failed", "mode", mode.String(), "error", err)
		return session.Message{}, err
	}

	cb.logger.Info("reply received", "mode", mode.String(), "session_id", sid, "agent", reply.Agent)
	cb.refreshSessions(c.ctx, c.token, c.epoch)
	return reply, nil
}

func buildSummary(resp *backend.BuildResponse) string {
	text := strings.TrimSpace(resp.Summary)
	if len(resp.FilesCreated) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	if text != "" {
		b.WriteString("\n")
	}
	b.WriteString("Files created:")
	for _, f := range resp.FilesCreated {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}

// Continue asks the backend to extend the most recent AI message.
func (cb *ChatBot) Continue(ctx context.Context) (session.Message, error) {
	cb.mu.Lock()
	if cb.token == "" {
		err := cb.failLocked(ErrNotAuthenticated)
		cb.mu.Unlock()
		return session.Message{}, err
	}
	last := session.LastAIText(cb.messages)
	if last == "" {
		err := cb.failLocked(ErrNothingToContinue)
		cb.mu.Unlock()
		return session.Message{}, err
	}
	c, err := cb.beginLocked(ctx, "continue", true)
	cb.mu.Unlock()
	if err != nil {
		return session.Message{}, err
	}
	defer cb.finish(c)

	resp, err := cb.api.Continue(c.ctx, c.token, backend.ContinueRequest{
		LastOutput: last,
		Language:   cb.config.Language,
		MaxTokens:  cb.config.MaxTokens,
		SessionID:  c.sessionID,
	})

	var reply session.Message
	err = cb.settle(c, err, func() error {
		reply = session.AIMessage(resp.Result, "")
		cb.appendLocked(c.ctx, reply)
		cb.adoptSessionLocked(c.ctx, resp.SessionID)
		return nil
	}, nil)
	if err != nil {
		return session.Message{}, err
	}
	return reply, nil
}

// NewSession opens a fresh server session and clears the transcript.
func (cb *ChatBot) NewSession(ctx context.Context) (string, error) {
	var id string
	err := cb.run(ctx, "new_session", true, func(c *call) (change, error) {
		resp, err := cb.api.CreateSession(c.ctx, c.token)
		if err != nil {
			return nil, err
		}
		id = resp.SessionID
		return func() error {
			cb.adoptSessionLocked(c.ctx, id)
			cb.messages = nil
			return nil
		}, nil
	})
	if err != nil {
		return "", err
	}

	cb.mu.Lock()
	token, epoch := cb.token, cb.epoch
	cb.mu.Unlock()
	cb.refreshSessions(ctx, token, epoch)
	return id, nil
}

// RefreshSessions reloads the list of session ids.
func (cb *ChatBot) RefreshSessions(ctx context.Context) ([]string, error) {
	var list []string
	err := cb.run(ctx, "list_sessions", true, func(c *call) (change, error) {
		resp, err := cb.api.ListSessions(c.ctx, c.token)
		if err != nil {
			return nil, err
		}
		list = resp.Sessions
		return func() error { cb.sessions = list; return nil }, nil
	})
	return list, err
}

// LoadSession fetches a transcript and replaces the visible messages with it.
func (cb *ChatBot) LoadSession(ctx context.Context, id string) ([]session.Message, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		cb.mu.Lock()
		err := cb.failLocked(ErrEmptySessionID)
		cb.mu.Unlock()
		return nil, err
	}

	var messages []session.Message
	err := cb.run(ctx, "load_session", true, func(c *call) (change, error) {
		detail, err := cb.api.GetSession(c.ctx, c.token, id)
		if err != nil {
			return nil, err
		}
		messages, err = session.DecodeTranscript(detail.Messages)
		if err != nil {
			cb.logger.Warn("failed to decode transcript", "session_id", id, "error", err)
			return nil, backend.ErrUnknownResponse
		}
		adopted := detail.SessionID
		if adopted == "" {
			adopted = id
		}
		return func() error {
			cb.adoptSessionLocked(c.ctx, adopted)
			cb.messages = append([]session.Message(nil), messages...)
			return nil
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// LoadDashboard fetches tools and sessions, and opens a session when none is
// active.
func (cb *ChatBot) LoadDashboard(ctx context.Context) error {
	return cb.run(ctx, "dashboard", true, func(c *call) (change, error) {
		list, err := cb.api.ListTools(c.ctx, c.token)
		if err != nil {
			return nil, err
		}
		sessions, err := cb.api.ListSessions(c.ctx, c.token)
		if err != nil {
			return nil, err
		}
		created := ""
		if c.sessionID == "" {
			resp, err := cb.api.CreateSession(c.ctx, c.token)
			if err != nil {
				return nil, err
			}
			created = resp.SessionID
		}
		return func() error {
			cb.catalog.Replace(list)
			cb.sessions = sessions.Sessions
			if created != "" {
				cb.adoptSessionLocked(c.ctx, created)
			}
			return nil
		}, nil
	})
}

// RefreshTools reloads the tool catalog.
func (cb *ChatBot) RefreshTools(ctx context.Context) ([]tools.Tool, error) {
	err := cb.run(ctx, "tools", true, func(c *call) (change, error) {
		list, err := cb.api.ListTools(c.ctx, c.token)
		if err != nil {
			return nil, err
		}
		return func() error { cb.catalog.Replace(list); return nil }, nil
	})
	if err != nil {
		return nil, err
	}
	return cb.catalog.All(), nil
}

// Tools returns the catalog loaded by the last dashboard or tools refresh.
func (cb *ChatBot) Tools() *tools.Catalog {
	return cb.catalog
}
