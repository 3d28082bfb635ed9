package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingToken is returned before any network call when an
	// authenticated operation is attempted without a token.
	ErrMissingToken = errors.New("missing auth token")

	// ErrUnknownResponse replaces a success response whose body is not the
	// expected JSON.
	ErrUnknownResponse = errors.New("unknown error")
)

// Error is a non-2xx response. Message is what the server said, verbatim.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// errorMessage extracts the human-readable message from an error body:
// JSON "detail", then JSON "message", then the raw text.
func errorMessage(status int, body []byte) string {
	text := string(body)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := fieldMessage(payload["detail"]); msg != "" {
			return msg
		}
		if msg := fieldMessage(payload["message"]); msg != "" {
			return msg
		}
		return text
	}

	if strings.TrimSpace(text) != "" {
		return text
	}
	return fmt.Sprintf("HTTP error %d", status)
}

// fieldMessage renders a detail/message field. Strings are used as is;
// FastAPI validation errors (a list of {msg}) are joined.
func fieldMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return string(raw)
}
