package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentConsole/internal/chatbot"
)

type fakeAPI struct {
	mu      sync.Mutex
	prompts []string
	files   map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	var body map[string]string
	if r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch r.URL.Path {
	case "/health":
		reply(map[string]string{"status": "ok"})
		return
	case "/login":
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			reply(map[string]string{"detail": "Identifiants invalides"})
			return
		}
		reply(map[string]string{"access_token": "tok", "token_type": "bearer"})
		return
	}

	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		reply(map[string]string{"detail": "Not authenticated"})
		return
	}

	switch r.Method + " " + r.URL.Path {
	case "POST /generate":
		f.prompts = append(f.prompts, body["prompt"])
		reply(map[string]any{"result": "**hi**", "session_id": "s1"})
	case "POST /orchestrate":
		f.prompts = append(f.prompts, body["prompt"])
		reply(map[string]any{"result": "routed", "agent": body["agent"], "session_id": "s1"})
	case "GET /sessions":
		reply(map[string]any{"sessions": []string{"s1", "s2"}})
	case "GET /sessions/s1":
		reply(map[string]any{"session_id": "s1", "messages": []string{"USER: hello", "AI: **hi**"}})
	case "GET /tools":
		reply(map[string]any{"tools": []map[string]any{
			{"id": "files", "name": "Files", "description": "workspace files", "capabilities": []string{"read", "write"}},
			{"id": "search", "name": "Search", "description": "web search", "capabilities": []string{"read"}},
		}})
	case "POST /files/create":
		f.files[body["path"]] = body["content"]
		reply(map[string]any{"ok": true, "path": body["path"]})
	case "POST /files/read":
		reply(map[string]any{"ok": true, "path": body["path"], "content": f.files[body["path"]]})
	default:
		w.WriteHeader(http.StatusNotFound)
		reply(map[string]string{"detail": "Not Found"})
	}
}

// setup starts a fake API and writes a config file pointing at it.
func setup(t *testing.T) (string, *fakeAPI) {
	t.Helper()
	for _, key := range []string{"AGENT_API_BASE", "AGENTCONSOLE_STATE", "AGENTCONSOLE_LOG_DIR", "AGENTCONSOLE_DEBUG"} {
		t.Setenv(key, "")
	}

	api := &fakeAPI{files: make(map[string]string)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := "api_base: " + srv.URL + "\n" +
		"state_path: " + filepath.Join(dir, "state.db") + "\n" +
		"log_dir: " + filepath.Join(dir, "logs") + "\n" +
		"telemetry: false\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, api
}

func execute(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPersistsAcrossCommands(t *testing.T) {
	cfg, api := setup(t)

	out, err := execute(t, cfg, "secret\n", "login", "a@b.c")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in.")

	out, err = execute(t, cfg, "", "generate", "hello", "world")
	require.NoError(t, err)
	require.Equal(t, "**hi**\n", out)
	require.Equal(t, []string{"hello world"}, api.prompts)

	out, err = execute(t, cfg, "", "status")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in: yes")
	require.Contains(t, out, "s1")
	require.Contains(t, out, "Backend:   ok")

	out, err = execute(t, cfg, "", "sessions", "list")
	require.NoError(t, err)
	require.Equal(t, "* s1\n  s2\n", out)

	_, err = execute(t, cfg, "", "logout")
	require.NoError(t, err)

	_, err = execute(t, cfg, "", "generate", "again")
	require.ErrorIs(t, err, chatbot.ErrNotAuthenticated)
}

func TestLoginFailureReportsServerMessage(t *testing.T) {
	cfg, _ := setup(t)

	_, err := execute(t, cfg, "wrong\n", "login", "a@b.c")
	require.Error(t, err)
	require.Equal(t, "Identifiants invalides", err.Error())

	out, err := execute(t, cfg, "", "status")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in: no")
}

func TestLoginReadsPasswordFile(t *testing.T) {
	cfg, _ := setup(t)
	pw := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pw, []byte("secret\n"), 0o600))

	_, err := execute(t, cfg, "", "login", "a@b.c", "--password-file", pw)
	require.NoError(t, err)
}

func TestOrchestrateWithAgentFlag(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, cfg, "secret\n", "login", "a@b.c")
	require.NoError(t, err)

	out, err := execute(t, cfg, "", "orchestrate", "--agent", "writer", "write", "docs")
	require.NoError(t, err)
	require.Equal(t, "routed\n(agent: writer)\n", out)

	_, err = execute(t, cfg, "", "orchestrate", "--agent", "chef", "cook")
	require.ErrorIs(t, err, chatbot.ErrUnknownAgent)
}

func TestSessionsExportMarkdown(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, cfg, "secret\n", "login", "a@b.c")
	require.NoError(t, err)

	out, err := execute(t, cfg, "", "sessions", "export", "s1", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Session s1")
	assert.Contains(t, out, "### You\n\nhello")
	assert.Contains(t, out, "### AI\n\n**hi**")

	htmlPath := filepath.Join(t.TempDir(), "s1.html")
	out, err = execute(t, cfg, "", "sessions", "export", "s1", "--format", "html", "-o", htmlPath)
	require.NoError(t, err)
	require.Contains(t, out, "Exported 2 messages")
	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "<strong>hi</strong>")
}

func TestToolsFilters(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, cfg, "secret\n", "login", "a@b.c")
	require.NoError(t, err)

	out, err := execute(t, cfg, "", "tools", "--capability", "write")
	require.NoError(t, err)
	require.Contains(t, out, "files")
	require.NotContains(t, out, "search")
	require.Contains(t, out, "1 of 2 tools")

	out, err = execute(t, cfg, "", "tools", "--capabilities")
	require.NoError(t, err)
	require.Equal(t, "read\nwrite\n", out)

	_, err = execute(t, cfg, "", "tools", "nope")
	require.Error(t, err)
}

func TestFilesCreateFromStdinAndRead(t *testing.T) {
	cfg, api := setup(t)
	_, err := execute(t, cfg, "secret\n", "login", "a@b.c")
	require.NoError(t, err)

	out, err := execute(t, cfg, "package main\n", "files", "create", "main.go")
	require.NoError(t, err)
	require.Equal(t, "Created main.go\n", out)
	require.Equal(t, "package main\n", api.files["main.go"])

	out, err = execute(t, cfg, "", "files", "read", "main.go")
	require.NoError(t, err)
	require.Equal(t, "package main\n", out)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, cfg, "", "--api-base", "ftp://nowhere", "status")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}
