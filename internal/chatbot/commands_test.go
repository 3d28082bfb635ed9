package chatbot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runConsole(t *testing.T, bot *ChatBot, script ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	require.NoError(t, bot.Run(context.Background(), in, &out))
	return out.String()
}

func TestConsoleLoginAndChat(t *testing.T) {
	fb := newFakeBackend(t)
	bot, _ := newTestBot(t, fb, "")

	out := runConsole(t, bot,
		"/login a@b.c",
		"secret",
		"/mode generate",
		"hello",
		"/status",
		"/quit",
		"never sent",
	)

	require.Contains(t, out, "Not logged in")
	require.Contains(t, out, "Logged in.")
	require.Contains(t, out, "Switched to generate mode")
	require.Contains(t, out, "AI: hi")
	require.Contains(t, out, "Logged in: yes")
	require.Contains(t, out, "Goodbye!")
	require.Equal(t, 1, fb.count("POST /generate"))
	require.Zero(t, fb.count("POST /orchestrate"))
}

func TestConsoleUsesReadSecret(t *testing.T) {
	fb := newFakeBackend(t)
	bot, store := newTestBot(t, fb, "")

	var out bytes.Buffer
	c := NewConsole(bot, strings.NewReader("/register a@b.c writer\n"), &out)
	var prompts []string
	c.ReadSecret = func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "abcd", nil
	}
	require.NoError(t, c.Run(context.Background()))

	require.Equal(t, []string{"Password: ", "Confirm password: "}, prompts)
	token, err := store.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok", token)
	require.Equal(t, "writer", bot.View().Agent)
}

func TestConsoleReportsErrorsAndKeepsRunning(t *testing.T) {
	fb := newFakeBackend(t)
	bot, _ := newTestBot(t, fb, "")

	out := runConsole(t, bot,
		"hello",
		"/continue",
		"/mode party",
		"/bogus",
		"/help",
	)

	require.Contains(t, out, "Error: "+ErrNotAuthenticated.Error())
	require.Contains(t, out, "Error: "+ErrUnknownMode.Error())
	require.Contains(t, out, "Error: unknown command: /bogus")
	require.Contains(t, out, "Available commands:")
	require.Contains(t, out, "Goodbye!")
	require.Zero(t, fb.total())
}

func TestConsoleSessionsToolsAndExport(t *testing.T) {
	fb := newFakeBackend(t)
	fb.transcripts["sess-42"] = []any{"USER: bonjour", "AI(writer): **salut**"}
	bot, _ := newTestBot(t, fb, "tok")
	path := filepath.Join(t.TempDir(), "out.html")

	out := runConsole(t, bot,
		"/load sess-42",
		"/tools",
		"/files",
		"/file read a.txt",
		"/export "+path+" html",
		"/sessions",
	)

	require.Contains(t, out, "You: bonjour")
	require.Contains(t, out, "AI (writer): **salut**")
	require.Contains(t, out, "Files [files] workspace files (read, write)")
	require.Contains(t, out, "a.txt")
	require.Contains(t, out, "Exported 2 messages to "+path)
	require.Contains(t, out, "  created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "<strong>salut</strong>")
}
