package session

// Role identifies who produced a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Status tracks delivery of a message. Messages from the server are always
// StatusSent; only the optimistic user message moves through the others.
type Status string

const (
	StatusSent    Status = "sent"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Message represents a single chat message
type Message struct {
	Role   Role   `json:"role"`
	Text   string `json:"text"`
	Agent  string `json:"agent,omitempty"`
	Status Status `json:"-"`
}

// UserMessage returns a sent user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text, Status: StatusSent}
}

// AIMessage returns a sent AI message; agent may be empty.
func AIMessage(text, agent string) Message {
	return Message{Role: RoleAI, Text: text, Agent: agent, Status: StatusSent}
}

// LastAIText returns the text of the most recent AI message with non-empty
// text, or "" when there is none.
func LastAIText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAI && messages[i].Text != "" {
			return messages[i].Text
		}
	}
	return ""
}
