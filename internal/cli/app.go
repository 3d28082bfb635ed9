package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"AgentConsole/internal/backend"
	"AgentConsole/internal/chatbot"
	"AgentConsole/internal/config"
	"AgentConsole/internal/state"
	"AgentConsole/internal/telemetry"
)

// app carries the flag values and the collaborators built for one command.
type app struct {
	cfgFile string
	apiBase string
	debug   bool

	cfg     config.Config
	logger  *slog.Logger
	client  *backend.Client
	bot     *chatbot.ChatBot
	stdin   *bufio.Reader
	closers []func()
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.apiBase != "" {
		cfg.APIBase = a.apiBase
	}
	if a.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

// open builds logger, telemetry, state store, API client and chatbot.
func (a *app) open(ctx context.Context) error {
	logger, logFile, err := telemetry.InitLogger(a.cfg.LogDir, a.cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, func() { logFile.Close() })

	tracer, meter := telemetry.NoopTelemetry()
	if a.cfg.Telemetry {
		tel, err := telemetry.InitTelemetry(ctx, a.cfg.LogDir, telemetry.MetricInterval)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			tracer, meter = tel.Tracer, tel.Meter
			a.closers = append(a.closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(ctx); err != nil {
					logger.Error("failed to shut down telemetry", "error", err)
				}
			})
		}
	}

	db, err := telemetry.InitDB(a.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to initialize state database: %w", err)
	}
	a.closers = append(a.closers, func() { db.Close() })

	client, err := backend.NewClient(a.cfg.APIBase, backend.Options{
		Timeout: a.cfg.RequestTimeout,
		Logger:  logger,
		Tracer:  tracer,
		Meter:   meter,
	})
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	a.client = client

	bot, err := chatbot.New(ctx, a.cfg, chatbot.Deps{
		API:    client,
		Store:  state.NewSQLiteStore(db),
		Logger: logger,
		Tracer: tracer,
		Meter:  meter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	a.bot = bot
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.bot = nil
	a.client = nil
}

// run wraps a command body that needs the chatbot.
func (a *app) run(fn func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(ctx)
		if err := a.open(ctx); err != nil {
			a.close()
			return err
		}
		defer a.close()
		return fn(cmd, args, a.bot)
	}
}

// readPassword reads a secret from passwordFile, from the terminal with echo
// off, or from the next line of standard input, in that order.
func (a *app) readPassword(cmd *cobra.Command, passwordFile, prompt string) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return terminalSecret(f, cmd.ErrOrStderr(), prompt)
	}

	if a.stdin == nil {
		a.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func terminalSecret(f *os.File, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	data, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}
