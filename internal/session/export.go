package session

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Export formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
	sanitizer    *bluemonday.Policy
)

func markdownRenderer() (goldmark.Markdown, *bluemonday.Policy) {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
		sanitizer = bluemonday.UGCPolicy()
	})
	return markdown, sanitizer
}

func speaker(m Message) string {
	if m.Role == RoleUser {
		return "You"
	}
	if m.Agent != "" {
		return "AI (" + m.Agent + ")"
	}
	return "AI"
}

// Export writes a session transcript in the given format.
func Export(w io.Writer, sessionID string, messages []Message, format string) error {
	switch format {
	case FormatText, "":
		for _, line := range FormatTranscript(messages) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, toMarkdown(sessionID, messages))
		return err
	case FormatHTML:
		return exportHTML(w, sessionID, messages)
	default:
		return fmt.Errorf("unknown export format %q (text|markdown|html)", format)
	}
}

func toMarkdown(sessionID string, messages []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", sessionID)
	for _, m := range messages {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", speaker(m), m.Text)
	}
	return b.String()
}

func exportHTML(w io.Writer, sessionID string, messages []Message) error {
	md, policy := markdownRenderer()

	var body bytes.Buffer
	for _, m := range messages {
		var rendered bytes.Buffer
		if err := md.Convert([]byte(m.Text), &rendered); err != nil {
			return fmt.Errorf("failed to render message: %w", err)
		}
		fmt.Fprintf(&body, "<section class=%q>\n<h3>%s</h3>\n%s</section>\n",
			string(m.Role), html.EscapeString(speaker(m)), policy.SanitizeBytes(rendered.Bytes()))
	}

	title := html.EscapeString("Session " + sessionID)
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n%s</body>\n</html>\n",
		title, title, body.String())
	return err
}
