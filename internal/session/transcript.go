package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	userPrefix = "USER:"
	aiPrefix   = "AI:"
)

// agentLine matches "AI(<agent>): <text>". The text may span lines.
var agentLine = regexp.MustCompile(`(?is)^AI\((.*?)\):\s*(.*)$`)

// ParseLine decodes one stored transcript line. The boolean is false when the
// line carries no text and should be dropped.
func ParseLine(line string) (Message, bool) {
	t := strings.TrimSpace(line)

	var msg Message
	switch {
	case strings.HasPrefix(t, userPrefix):
		msg = UserMessage(strings.TrimSpace(strings.TrimPrefix(t, userPrefix)))
	default:
		if m := agentLine.FindStringSubmatch(t); m != nil {
			msg = AIMessage(m[2], m[1])
		} else if strings.HasPrefix(t, aiPrefix) {
			msg = AIMessage(strings.TrimSpace(strings.TrimPrefix(t, aiPrefix)), "")
		} else {
			msg = AIMessage(t, "")
		}
	}

	return msg, msg.Text != ""
}

// ParseTranscript decodes stored transcript lines in order, dropping lines
// without text. A nil or empty input yields an empty, non-nil slice.
func ParseTranscript(lines []string) []Message {
	messages := make([]Message, 0, len(lines))
	for _, line := range lines {
		if msg, ok := ParseLine(line); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// FormatLine encodes a message in the stored line format.
func FormatLine(m Message) string {
	if m.Role == RoleUser {
		return userPrefix + " " + m.Text
	}
	if m.Agent != "" {
		return fmt.Sprintf("AI(%s): %s", m.Agent, m.Text)
	}
	return aiPrefix + " " + m.Text
}

// FormatTranscript is the inverse of ParseTranscript for messages it produced.
func FormatTranscript(messages []Message) []string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = FormatLine(m)
	}
	return lines
}

// entry is the structured form of a transcript message.
type entry struct {
	Role  string `json:"role"`
	Text  string `json:"text"`
	Agent string `json:"agent,omitempty"`
}

// DecodeTranscript decodes the messages of a session detail response. Each
// element is either a legacy line (JSON string) or a {role,text,agent} object.
// Roles other than "user" decode as AI.
func DecodeTranscript(raw []json.RawMessage) ([]Message, error) {
	messages := make([]Message, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || bytes.Equal(item, []byte("null")) {
			continue
		}

		if item[0] == '"' {
			var line string
			if err := json.Unmarshal(item, &line); err != nil {
				return nil, fmt.Errorf("failed to decode transcript line %d: %w", i, err)
			}
			if msg, ok := ParseLine(line); ok {
				messages = append(messages, msg)
			}
			continue
		}

		var e entry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("failed to decode transcript entry %d: %w", i, err)
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		if strings.EqualFold(e.Role, string(RoleUser)) {
			messages = append(messages, UserMessage(text))
		} else {
			messages = append(messages, AIMessage(text, e.Agent))
		}
	}
	return messages, nil
}
