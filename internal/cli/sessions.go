package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"AgentConsole/internal/backend"
	"AgentConsole/internal/chatbot"
	"AgentConsole/internal/session"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(
		newSessionsNewCmd(a),
		newSessionsListCmd(a),
		newSessionsLoadCmd(a),
		newSessionsExportCmd(a),
	)
	return cmd
}

func newSessionsNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Open a new session and make it active",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			id, err := bot.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Started new session:", id)
			return nil
		}),
	}
}

func newSessionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session ids; the active one is starred",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			list, err := bot.RefreshSessions(cmd.Context())
			if err != nil {
				return err
			}
			active := bot.View().SessionID
			for _, id := range list {
				marker := " "
				if id == active {
					marker = "*"
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker, id)
			}
			return nil
		}),
	}
}

func newSessionsLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <session-id>",
		Short: "Make a session active and print its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			messages, err := bot.LoadSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return session.Export(cmd.OutOrStdout(), args[0], messages, session.FormatText)
		}),
	}
}

func newSessionsExportCmd(a *app) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export [session-id]",
		Short: "Export a transcript as text, markdown or html",
		Long:  "Export a transcript without changing the active session. Without an id the active session is exported.",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			id := bot.View().SessionID
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return chatbot.ErrEmptySessionID
			}
			token := bot.Token()
			if token == "" {
				return chatbot.ErrNotAuthenticated
			}

			detail, err := a.client.GetSession(cmd.Context(), token, id)
			if err != nil {
				return err
			}
			messages, err := session.DecodeTranscript(detail.Messages)
			if err != nil {
				a.logger.Warn("failed to decode transcript", "session_id", id, "error", err)
				return backend.ErrUnknownResponse
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := session.Export(w, id, messages, format); err != nil {
				return fmt.Errorf("failed to export transcript: %w", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(messages), output)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", session.FormatText, "Export format (text|markdown|html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
