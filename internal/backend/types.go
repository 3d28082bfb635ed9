package backend

import (
	"encoding/json"

	"AgentConsole/internal/tools"
)

// LoginRequest represents the request body for /login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the response from /login. SessionID is only set by
// backends that open a session at login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	SessionID   string `json:"session_id,omitempty"`
}

// RegisterRequest represents the request body for /register. Service and
// DefaultAgent carry the same agent name; older backends read the first.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Service      string `json:"service"`
	DefaultAgent string `json:"default_agent,omitempty"`
}

type RegisterResponse struct {
	Message string `json:"message"`
}

// Profile represents the response from /profile
type Profile struct {
	Email        string `json:"email"`
	DefaultAgent string `json:"default_agent"`
}

type UpdateProfileRequest struct {
	DefaultAgent string `json:"default_agent"`
}

// GenerateRequest represents the request body for /generate
type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	Language  string `json:"language"`
	MaxTokens int    `json:"max_tokens"`
	SessionID string `json:"session_id,omitempty"`
}

// ContinueRequest represents the request body for /continue
type ContinueRequest struct {
	LastOutput string `json:"last_output"`
	Language   string `json:"language"`
	MaxTokens  int    `json:"max_tokens"`
	SessionID  string `json:"session_id,omitempty"`
}

// GenerateResponse is returned by both /generate and /continue
type GenerateResponse struct {
	Result    string `json:"result"`
	Truncated bool   `json:"truncated"`
	SessionID string `json:"session_id"`
}

// OrchestrateRequest represents the request body for /orchestrate and /build
type OrchestrateRequest struct {
	Prompt    string `json:"prompt"`
	Agent     string `json:"agent"`
	Language  string `json:"language"`
	MaxTokens int    `json:"max_tokens"`
	SessionID string `json:"session_id,omitempty"`
}

// OrchestrateResponse represents the response from /orchestrate
type OrchestrateResponse struct {
	Agent     string `json:"agent"`
	Result    string `json:"result"`
	Truncated bool   `json:"truncated"`
	SessionID string `json:"session_id"`
}

// BuildResponse represents the response from /build
type BuildResponse struct {
	OK           bool     `json:"ok"`
	SessionID    string   `json:"session_id"`
	Agent        string   `json:"agent"`
	Summary      string   `json:"summary"`
	FilesCreated []string `json:"files_created"`
}

type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// SessionDetail represents the response from /sessions/{id}. Messages are
// left raw: they may be legacy lines or structured objects.
type SessionDetail struct {
	SessionID string            `json:"session_id"`
	Messages  []json.RawMessage `json:"messages"`
}

type ToolsResponse struct {
	Tools []tools.Tool `json:"tools"`
}

type CreateFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileRequest is the body of /files/read and /files/delete
type FileRequest struct {
	Path string `json:"path"`
}

// FileResponse is returned by /files/create and /files/delete
type FileResponse struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
}

type FilesResponse struct {
	Files []string `json:"files"`
}

type ReadFileResponse struct {
	OK      bool   `json:"ok"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
