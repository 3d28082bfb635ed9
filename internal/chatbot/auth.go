package chatbot

import (
	"context"
	"fmt"
	"strings"

	"AgentConsole/internal/backend"
	"AgentConsole/internal/config"
)

// Login exchanges credentials for a token, persists it together with the
// session id the backend returned (possibly none), and starts a new epoch.
func (cb *ChatBot) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := cb.checkCredentials(email, password); err != nil {
		return err
	}

	var token string
	var epoch uint64
	err := cb.run(ctx, "login", false, func(c *call) (change, error) {
		resp, err := cb.api.Login(c.ctx, email, password)
		if err != nil {
			return nil, err
		}
		return cb.adoptLogin(c, resp, &token, &epoch)
	})
	if err != nil {
		return err
	}

	cb.logger.Info("logged in")
	cb.refreshSessions(ctx, token, epoch)
	return nil
}

// RegisterInput mirrors the registration form.
type RegisterInput struct {
	Email    string
	Password string
	Confirm  string
	Agent    string
}

// Validate runs the local form checks; none of them touch the network.
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return ErrEmailRequired
	}
	if strings.TrimSpace(in.Password) == "" {
		return ErrPasswordRequired
	}
	if len(in.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if in.Password != in.Confirm {
		return ErrPasswordMismatch
	}
	if in.Agent != "" && !config.ValidAgent(in.Agent) {
		return ErrUnknownAgent
	}
	return nil
}

// Register creates the account, logs in with it and stores the chosen
// default agent in the profile.
func (cb *ChatBot) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if in.Agent == "" {
		in.Agent = config.AgentAuto
	}
	if err := in.Validate(); err != nil {
		cb.mu.Lock()
		defer cb.mu.Unlock()
		return cb.failLocked(err)
	}

	var token string
	var epoch uint64
	err := cb.run(ctx, "register", false, func(c *call) (change, error) {
		if _, err := cb.api.Register(c.ctx, backend.RegisterRequest{
			Email:        in.Email,
			Password:     in.Password,
			Service:      in.Agent,
			DefaultAgent: in.Agent,
		}); err != nil {
			return nil, err
		}
		resp, err := cb.api.Login(c.ctx, in.Email, in.Password)
		if err != nil {
			return nil, err
		}
		if _, err := cb.api.UpdateProfile(c.ctx, resp.AccessToken, in.Agent); err != nil {
			cb.logger.Warn("failed to store default agent", "agent", in.Agent, "error", err)
		}
		return cb.adoptLogin(c, resp, &token, &epoch)
	})
	if err != nil {
		return err
	}

	cb.mu.Lock()
	cb.agent = in.Agent
	cb.mu.Unlock()

	cb.logger.Info("registered", "agent", in.Agent)
	cb.refreshSessions(ctx, token, epoch)
	return nil
}

func (cb *ChatBot) checkCredentials(email, password string) error {
	var err error
	switch {
	case email == "":
		err = ErrEmailRequired
	case password == "":
		err = ErrPasswordRequired
	default:
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failLocked(err)
}

// adoptLogin returns the state change that installs a successful login. The
// token and session id are persisted inside the change so a login overtaken by
// a logout writes nothing. The new token and epoch are reported through the
// pointers.
func (cb *ChatBot) adoptLogin(c *call, resp *backend.LoginResponse, token *string, epoch *uint64) (change, error) {
	if resp.AccessToken == "" {
		return nil, backend.ErrUnknownResponse
	}
	return func() error {
		if err := cb.store.SetToken(c.ctx, resp.AccessToken); err != nil {
			return fmt.Errorf("failed to persist token: %w", err)
		}
		if err := cb.store.SetSessionID(c.ctx, resp.SessionID); err != nil {
			return fmt.Errorf("failed to persist session id: %w", err)
		}
		cb.epoch++
		cb.token = resp.AccessToken
		cb.sid = resp.SessionID
		cb.messages = nil
		cb.sessions = nil
		cb.catalog.Reset()
		*token = resp.AccessToken
		*epoch = cb.epoch
		return nil
	}, nil
}

// Logout cancels any in-flight call and forgets the token, the session id and
// everything derived from them.
func (cb *ChatBot) Logout(ctx context.Context) error {
	cb.mu.Lock()
	if cb.inflight != nil {
		cb.inflight.cancel()
		cb.inflight = nil
	}
	cb.epoch++
	cb.token = ""
	cb.sid = ""
	cb.messages = nil
	cb.sessions = nil
	cb.lastErr = ""
	cb.catalog.Reset()
	cb.mu.Unlock()

	if err := cb.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stored credentials: %w", err)
	}
	cb.logger.Info("logged out")
	return nil
}

// Profile returns the account profile.
func (cb *ChatBot) Profile(ctx context.Context) (*backend.Profile, error) {
	var profile *backend.Profile
	err := cb.run(ctx, "profile", true, func(c *call) (change, error) {
		var err error
		profile, err = cb.api.GetProfile(c.ctx, c.token)
		return nil, err
	})
	return profile, err
}

// SetDefaultAgent stores agent as the profile default and selects it locally.
func (cb *ChatBot) SetDefaultAgent(ctx context.Context, agent string) (*backend.Profile, error) {
	if !config.ValidAgent(agent) {
		cb.mu.Lock()
		defer cb.mu.Unlock()
		return nil, cb.failLocked(ErrUnknownAgent)
	}
	var profile *backend.Profile
	err := cb.run(ctx, "profile_update", true, func(c *call) (change, error) {
		var err error
		profile, err = cb.api.UpdateProfile(c.ctx, c.token, agent)
		if err != nil {
			return nil, err
		}
		return func() error { cb.agent = agent; return nil }, nil
	})
	return profile, err
}
