package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"AgentConsole/internal/config"
	"AgentConsole/internal/session"
)

// Console is the interactive loop around a ChatBot. Plain lines are sent as
// prompts in the current mode; lines starting with "/" are commands.
type Console struct {
	bot     *ChatBot
	scanner *bufio.Scanner
	out     io.Writer
	styles  styles
	mode    sendMode

	// ReadSecret reads a password. When nil the next input line is used.
	ReadSecret func(prompt string) (string, error)
}

// NewConsole creates a console reading commands from in and writing to out.
func NewConsole(bot *ChatBot, in io.Reader, out io.Writer) *Console {
	return &Console{
		bot:     bot,
		scanner: bufio.NewScanner(in),
		out:     out,
		styles:  newStyles(out),
		mode:    modeOrchestrate,
	}
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) readLine(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *Console) readSecret(prompt string) (string, error) {
	if c.ReadSecret != nil {
		return c.ReadSecret(prompt)
	}
	line, ok := c.readLine(prompt)
	if !ok {
		return "", io.ErrUnexpectedEOF
	}
	return line, nil
}

// Run starts the console and returns when input ends or /quit is entered.
func (c *Console) Run(ctx context.Context) error {
	c.println(c.styles.banner.Render("=== Agent Console ==="))
	c.println("Talk to the backend agents: generate, orchestrate or build from one prompt.")
	v := c.bot.View()
	if v.Authenticated {
		c.println("Session:", orNone(v.SessionID))
		c.println("Agent:", v.Agent)
		if err := c.bot.LoadDashboard(ctx); err != nil {
			c.println(c.styles.errorLine(err))
		}
	} else {
		c.println("Not logged in. Use /login <email> or /register <email>.")
	}
	c.println("Type /help for commands, /quit to exit")
	c.println()

	for ctx.Err() == nil {
		input, ok := c.readLine("You: ")
		if !ok {
			break
		}
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(ctx, input)
			if err != nil {
				c.println(c.styles.errorLine(err))
				c.bot.logger.Error("command error", "command", strings.Fields(input)[0], "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		reply, err := c.send(ctx, input)
		if err != nil {
			c.println(c.styles.errorLine(err))
			continue
		}
		c.println(c.styles.message(reply))
		c.println()
	}

	if err := c.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	c.println("Goodbye!")
	return nil
}

func (c *Console) send(ctx context.Context, prompt string) (session.Message, error) {
	switch c.mode {
	case modeGenerate:
		return c.bot.Generate(ctx, prompt)
	case modeBuild:
		return c.bot.Build(ctx, prompt)
	default:
		return c.bot.Orchestrate(ctx, prompt)
	}
}

// handleCommand handles special commands
func (c *Console) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	args := parts[1:]

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		c.println(helpText)
		return false, nil

	case "/login":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /login <email>")
		}
		password, err := c.readSecret("Password: ")
		if err != nil {
			return false, fmt.Errorf("failed to read password: %w", err)
		}
		if err := c.bot.Login(ctx, args[0], password); err != nil {
			return false, err
		}
		c.println("Logged in.")
		if err := c.bot.LoadDashboard(ctx); err != nil {
			return false, err
		}
		c.println("Session:", orNone(c.bot.View().SessionID))
		return false, nil

	case "/register":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /register <email> [agent]")
		}
		in := RegisterInput{Email: args[0]}
		if len(args) > 1 {
			in.Agent = args[1]
		}
		var err error
		if in.Password, err = c.readSecret("Password: "); err != nil {
			return false, fmt.Errorf("failed to read password: %w", err)
		}
		if in.Confirm, err = c.readSecret("Confirm password: "); err != nil {
			return false, fmt.Errorf("failed to read password: %w", err)
		}
		if err := c.bot.Register(ctx, in); err != nil {
			return false, err
		}
		c.println("Account created, logged in.")
		return false, nil

	case "/logout":
		if err := c.bot.Logout(ctx); err != nil {
			return false, err
		}
		c.println("Logged out.")
		return false, nil

	case "/status":
		c.println(c.styles.status(c.bot.View()))
		return false, nil

	case "/new":
		id, err := c.bot.NewSession(ctx)
		if err != nil {
			return false, err
		}
		c.println("Started new session:", id)
		return false, nil

	case "/sessions":
		list, err := c.bot.RefreshSessions(ctx)
		if err != nil {
			return false, err
		}
		c.println(c.styles.sessions(list, c.bot.View().SessionID))
		return false, nil

	case "/load":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /load <session-id>")
		}
		messages, err := c.bot.LoadSession(ctx, args[0])
		if err != nil {
			return false, err
		}
		c.println(c.styles.transcript(messages))
		return false, nil

	case "/history":
		c.println(c.styles.transcript(c.bot.View().Messages))
		return false, nil

	case "/clear":
		if err := c.bot.ClearMessages(); err != nil {
			return false, err
		}
		c.println("Transcript cleared.")
		return false, nil

	case "/agent":
		if len(args) < 1 {
			c.println("Agent:", c.bot.View().Agent)
			return false, nil
		}
		if err := c.bot.SetAgent(args[0]); err != nil {
			return false, err
		}
		c.println("Switched to agent", args[0])
		return false, nil

	case "/mode":
		if len(args) < 1 {
			c.println("Mode:", c.mode)
			return false, nil
		}
		mode, err := parseMode(args[0])
		if err != nil {
			return false, err
		}
		c.mode = mode
		c.println("Switched to", mode, "mode")
		return false, nil

	case "/continue":
		reply, err := c.bot.Continue(ctx)
		if err != nil {
			return false, err
		}
		c.println(c.styles.message(reply))
		return false, nil

	case "/tools":
		list, err := c.bot.RefreshTools(ctx)
		if err != nil {
			return false, err
		}
		c.println(c.styles.tools(list))
		return false, nil

	case "/files":
		files, err := c.bot.ListFiles(ctx)
		if err != nil {
			return false, err
		}
		if len(files) == 0 {
			c.println(c.styles.dim.Render("(no files)"))
		}
		for _, f := range files {
			c.println(f)
		}
		return false, nil

	case "/file":
		return false, c.fileCommand(ctx, args)

	case "/export":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /export <path> [text|markdown|html]")
		}
		format := session.FormatText
		if len(args) > 1 {
			format = args[1]
		}
		return false, c.export(args[0], format)

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func (c *Console) fileCommand(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: /file read|delete <path> | /file create <path> <content...>")
	}
	switch args[0] {
	case "read":
		resp, err := c.bot.ReadFile(ctx, args[1])
		if err != nil {
			return err
		}
		c.println(c.styles.label.Render(resp.Path))
		c.println(resp.Content)
	case "create":
		content := strings.Join(args[2:], " ")
		resp, err := c.bot.CreateFile(ctx, args[1], content)
		if err != nil {
			return err
		}
		c.println("Created", resp.Path)
	case "delete":
		resp, err := c.bot.DeleteFile(ctx, args[1])
		if err != nil {
			return err
		}
		c.println("Deleted", resp.Path)
	default:
		return fmt.Errorf("unknown file action: %s", args[0])
	}
	return nil
}

func (c *Console) export(path, format string) error {
	if !validFormat(format) {
		return fmt.Errorf("unknown export format: %s", format)
	}
	v := c.bot.View()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := session.Export(f, v.SessionID, v.Messages, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to export transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}
	c.println("Exported", len(v.Messages), "messages to", path)
	return nil
}

func validFormat(format string) bool {
	switch format {
	case session.FormatText, session.FormatMarkdown, session.FormatHTML:
		return true
	}
	return false
}

// ErrUnknownMode is returned for a /mode argument other than
// generate, orchestrate or build.
var ErrUnknownMode = errors.New("unknown mode (generate|orchestrate|build)")

func parseMode(s string) (sendMode, error) {
	switch s {
	case "generate":
		return modeGenerate, nil
	case "orchestrate":
		return modeOrchestrate, nil
	case "build":
		return modeBuild, nil
	}
	return 0, ErrUnknownMode
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

var helpText = `Available commands:
  /login <email>             - Log in (prompts for the password)
  /register <email> [agent]  - Create an account and log in
  /logout                    - Forget the token and the session
  /status                    - Show login, session and agent
  /new                       - Start a new chat session
  /sessions                  - List sessions
  /load <session-id>         - Load a session transcript
  /history                   - Show the current transcript
  /clear                     - Clear the visible transcript
  /agent [name]              - Show or select the agent (` + strings.Join(config.Agents, "|") + `)
  /mode [name]               - Show or select the send mode (generate|orchestrate|build)
  /continue                  - Continue the last AI answer
  /tools                     - List backend tools
  /files                     - List workspace files
  /file read|delete <path>   - Read or delete a file
  /file create <path> <text> - Create a file
  /export <path> [format]    - Export the transcript (text|markdown|html)
  /quit, /exit               - Exit the console
  /help                      - Show this help message`

// Run starts an interactive console on in and out.
func (cb *ChatBot) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return NewConsole(cb, in, out).Run(ctx)
}
