package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", Options{})
	require.Error(t, err)
	_, err = NewClient("/relative", Options{})
	require.Error(t, err)
}

func TestLoginSendsCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, LoginRequest{Email: "a@b.c", Password: "secret"}, req)

		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","session_id":"sess-1"}`)
	})

	resp, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok", resp.AccessToken)
	require.Equal(t, "sess-1", resp.SessionID)
}

func TestGenerateAttachesBearerAndOmitsEmptySession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "hello", raw["prompt"])
		assert.Equal(t, float64(512), raw["max_tokens"])
		_, hasSession := raw["session_id"]
		assert.False(t, hasSession)

		_, _ = io.WriteString(w, `{"result":"hi","truncated":false,"session_id":"new"}`)
	})

	resp, err := c.Generate(context.Background(), "tok", GenerateRequest{Prompt: "hello", Language: "english", MaxTokens: 512})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Result)
	require.Equal(t, "new", resp.SessionID)
}

func TestAuthenticatedCallWithoutTokenSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := c.ListSessions(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingToken)
	_, err = c.Orchestrate(context.Background(), "", OrchestrateRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrMissingToken)
	require.Equal(t, int32(0), hits.Load())
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", http.StatusUnauthorized, `{"detail":"Identifiants invalides"}`, "Identifiants invalides"},
		{"message", http.StatusBadRequest, `{"message":"bad input"}`, "bad input"},
		{"detail wins", http.StatusBadRequest, `{"detail":"d","message":"m"}`, "d"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"not an email"}]}`, "field required; not an email"},
		{"json without fields", http.StatusBadRequest, `{"error":"x"}`, `{"error":"x"}`},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down"},
		{"empty body", http.StatusInternalServerError, "", "HTTP error 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Login(context.Background(), "a@b.c", "x")
			require.Error(t, err)
			require.Equal(t, tt.want, err.Error())

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestMalformedSuccessBodyIsUnknownError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>proxy page</html>`)
	})
	_, err := c.ListTools(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnknownResponse)
	require.Equal(t, "unknown error", err.Error())
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := NewClient(base, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to send request")
}

func TestGetSessionEscapesID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/a%2Fb", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"session_id":"a/b","messages":["USER: hi",{"role":"ai","text":"yo"}]}`)
	})
	detail, err := c.GetSession(context.Background(), "tok", "a/b")
	require.NoError(t, err)
	require.Equal(t, "a/b", detail.SessionID)
	require.Len(t, detail.Messages, 2)
}

func TestEndpointsRouting(t *testing.T) {
	type call struct{ method, path string }
	var seen []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, call{r.Method, r.URL.Path})
		switch r.URL.Path {
		case "/sessions":
			if r.Method == http.MethodPost {
				_, _ = io.WriteString(w, `{"session_id":"s1"}`)
				return
			}
			_, _ = io.WriteString(w, `{"sessions":["s1","s2"]}`)
		case "/tools":
			_, _ = io.WriteString(w, `{"tools":[{"id":"files","name":"Files","description":"d","capabilities":["write"]}]}`)
		case "/files":
			_, _ = io.WriteString(w, `{"files":["a.txt"]}`)
		case "/files/create", "/files/delete":
			_, _ = io.WriteString(w, `{"ok":true,"path":"a.txt"}`)
		case "/files/read":
			_, _ = io.WriteString(w, `{"ok":true,"path":"a.txt","content":"hello"}`)
		case "/profile":
			_, _ = io.WriteString(w, `{"email":"a@b.c","default_agent":"writer"}`)
		case "/build":
			_, _ = io.WriteString(w, `{"ok":true,"session_id":"s1","agent":"backend","summary":"done","files_created":["main.go"]}`)
		case "/register":
			_, _ = io.WriteString(w, `{"message":"created"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	created, err := c.CreateSession(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "s1", created.SessionID)

	list, err := c.ListSessions(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, list.Sessions)

	tl, err := c.ListTools(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, tl, 1)
	require.Equal(t, []string{"write"}, tl[0].Capabilities)

	files, err := c.ListFiles(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, files)

	fr, err := c.CreateFile(ctx, "tok", "a.txt", "hello")
	require.NoError(t, err)
	require.True(t, fr.OK)

	rf, err := c.ReadFile(ctx, "tok", "a.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", rf.Content)

	_, err = c.DeleteFile(ctx, "tok", "a.txt")
	require.NoError(t, err)

	profile, err := c.UpdateProfile(ctx, "tok", "writer")
	require.NoError(t, err)
	require.Equal(t, "writer", profile.DefaultAgent)

	build, err := c.Build(ctx, "tok", OrchestrateRequest{Prompt: "p", Agent: "auto", MaxTokens: 900})
	require.NoError(t, err)
	require.Equal(t, []string{"main.go"}, build.FilesCreated)

	_, err = c.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "pass", Service: "auto"})
	require.NoError(t, err)

	require.Equal(t, []call{
		{http.MethodPost, "/sessions"},
		{http.MethodGet, "/sessions"},
		{http.MethodGet, "/tools"},
		{http.MethodGet, "/files"},
		{http.MethodPost, "/files/create"},
		{http.MethodPost, "/files/read"},
		{http.MethodPost, "/files/delete"},
		{http.MethodPut, "/profile"},
		{http.MethodPost, "/build"},
		{http.MethodPost, "/register"},
	}, seen)
}
