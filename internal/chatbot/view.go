package chatbot

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"AgentConsole/internal/session"
	"AgentConsole/internal/tools"
)

// styles renders console output. The renderer is bound to the output writer,
// so colors disappear when it is not a terminal.
type styles struct {
	banner  lipgloss.Style
	user    lipgloss.Style
	ai      lipgloss.Style
	failed  lipgloss.Style
	pending lipgloss.Style
	err     lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		banner:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		user:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		ai:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")),
		pending: r.NewStyle().Foreground(lipgloss.Color("11")),
		err:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		label:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
	}
}

func (s styles) message(m session.Message) string {
	var who string
	if m.Role == session.RoleUser {
		who = s.user.Render("You:")
	} else if m.Agent != "" {
		who = s.ai.Render(fmt.Sprintf("AI (%s):", m.Agent))
	} else {
		who = s.ai.Render("AI:")
	}

	line := who + " " + m.Text
	switch m.Status {
	case session.StatusFailed:
		line += " " + s.failed.Render("[failed]")
	case session.StatusPending:
		line += " " + s.pending.Render("[pending]")
	}
	return line
}

func (s styles) transcript(messages []session.Message) string {
	if len(messages) == 0 {
		return s.dim.Render("(no messages)")
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, s.message(m))
	}
	return strings.Join(lines, "\n")
}

func (s styles) status(v View) string {
	auth := "no"
	if v.Authenticated {
		auth = "yes"
	}
	sid := v.SessionID
	if sid == "" {
		sid = "(none)"
	}
	rows := []string{
		s.label.Render("Logged in:") + " " + auth,
		s.label.Render("Session:") + "   " + sid,
		s.label.Render("Agent:") + "     " + v.Agent,
		s.label.Render("Messages:") + "  " + fmt.Sprint(len(v.Messages)),
	}
	if v.Error != "" {
		rows = append(rows, s.err.Render("Last error:")+" "+v.Error)
	}
	return strings.Join(rows, "\n")
}

func (s styles) sessions(list []string, active string) string {
	if len(list) == 0 {
		return s.dim.Render("(no sessions)")
	}
	lines := make([]string, 0, len(list))
	for _, id := range list {
		if id == active {
			lines = append(lines, "* "+s.label.Render(id))
			continue
		}
		lines = append(lines, "  "+id)
	}
	return strings.Join(lines, "\n")
}

func (s styles) tools(list []tools.Tool) string {
	if len(list) == 0 {
		return s.dim.Render("(no tools)")
	}
	lines := make([]string, 0, len(list))
	for _, t := range list {
		line := s.label.Render(t.Name) + " " + s.dim.Render("["+t.ID+"]")
		if t.Description != "" {
			line += " " + t.Description
		}
		if len(t.Capabilities) > 0 {
			line += " " + s.dim.Render("("+strings.Join(t.Capabilities, ", ")+")")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s styles) errorLine(err error) string {
	return s.err.Render("Error:") + " " + err.Error()
}
