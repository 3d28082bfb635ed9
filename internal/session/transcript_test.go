package session

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
		ok   bool
	}{
		{"user", "USER: hello there ", UserMessage("hello there"), true},
		{"user no space", "USER:hi", UserMessage("hi"), true},
		{"agent", "AI(backend): use a queue", AIMessage("use a queue", "backend"), true},
		{"agent lowercase prefix", "ai(writer): once upon", AIMessage("once upon", "writer"), true},
		{"agent multiline", "AI(devops): step 1\nstep 2", AIMessage("step 1\nstep 2", "devops"), true},
		{"bare ai", "AI: plain answer", AIMessage("plain answer", ""), true},
		{"untagged", "  something else  ", AIMessage("something else", ""), true},
		{"empty", "   ", AIMessage("", ""), false},
		{"empty user", "USER:   ", UserMessage(""), false},
		{"empty agent text", "AI(frontend):", AIMessage("", "frontend"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTranscriptDropsEmpty(t *testing.T) {
	got := ParseTranscript([]string{"USER: q", "", "AI(auto): a", "AI:"})
	require.Equal(t, []Message{UserMessage("q"), AIMessage("a", "auto")}, got)

	empty := ParseTranscript(nil)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestParseTranscriptRoundTrip(t *testing.T) {
	lines := []string{
		"USER: write a haiku",
		"AI(writer): autumn moonlight",
		"AI: plain",
		"free text",
		"   ",
	}
	first := ParseTranscript(lines)
	second := ParseTranscript(FormatTranscript(first))
	require.Equal(t, first, second)
	require.Equal(t, ParseTranscript(lines), first)
}

func TestDecodeTranscriptMixed(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`"USER: hi"`),
		json.RawMessage(`{"role":"ai","text":"hello","agent":"backend"}`),
		json.RawMessage(`{"role":"USER","text":"  again "}`),
		json.RawMessage(`{"role":"assistant","text":"sure"}`),
		json.RawMessage(`{"role":"ai","text":""}`),
		json.RawMessage(`null`),
		json.RawMessage(`"AI(devops): done"`),
	}
	got, err := DecodeTranscript(raw)
	require.NoError(t, err)
	require.Equal(t, []Message{
		UserMessage("hi"),
		AIMessage("hello", "backend"),
		UserMessage("again"),
		AIMessage("sure", ""),
		AIMessage("done", "devops"),
	}, got)
}

func TestDecodeTranscriptLegacyMatchesStructured(t *testing.T) {
	legacy, err := DecodeTranscript([]json.RawMessage{
		json.RawMessage(`"USER: q"`),
		json.RawMessage(`"AI(auto): a"`),
	})
	require.NoError(t, err)
	structured, err := DecodeTranscript([]json.RawMessage{
		json.RawMessage(`{"role":"user","text":"q"}`),
		json.RawMessage(`{"role":"ai","text":"a","agent":"auto"}`),
	})
	require.NoError(t, err)
	require.Equal(t, legacy, structured)
}

func TestDecodeTranscriptRejectsGarbage(t *testing.T) {
	_, err := DecodeTranscript([]json.RawMessage{json.RawMessage(`42`)})
	require.Error(t, err)
}

func TestLastAIText(t *testing.T) {
	require.Empty(t, LastAIText(nil))
	require.Empty(t, LastAIText([]Message{UserMessage("q")}))
	require.Equal(t, "second", LastAIText([]Message{
		AIMessage("first", ""),
		UserMessage("q"),
		AIMessage("second", "backend"),
		UserMessage("q2"),
	}))
}

func TestExport(t *testing.T) {
	messages := []Message{
		UserMessage("show me **bold**"),
		AIMessage("here is **bold** <script>alert(1)</script>", "writer"),
	}

	var text bytes.Buffer
	require.NoError(t, Export(&text, "sess-42", messages, FormatText))
	require.Equal(t, "USER: show me **bold**\nAI(writer): here is **bold** <script>alert(1)</script>\n", text.String())

	var md bytes.Buffer
	require.NoError(t, Export(&md, "sess-42", messages, FormatMarkdown))
	require.True(t, strings.HasPrefix(md.String(), "# Session sess-42\n"))
	require.Contains(t, md.String(), "### AI (writer)")

	var page bytes.Buffer
	require.NoError(t, Export(&page, "sess-42", messages, FormatHTML))
	require.Contains(t, page.String(), "<strong>bold</strong>")
	require.NotContains(t, page.String(), "<script>")
	require.Contains(t, page.String(), "<title>Session sess-42</title>")

	require.Error(t, Export(&page, "sess-42", messages, "pdf"))
}
