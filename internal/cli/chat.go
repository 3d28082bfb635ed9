package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"AgentConsole/internal/chatbot"
	"AgentConsole/internal/config"
	"AgentConsole/internal/session"
)

func printReply(w io.Writer, reply session.Message) {
	fmt.Fprintln(w, reply.Text)
	if reply.Agent != "" {
		fmt.Fprintf(w, "(agent: %s)\n", reply.Agent)
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Send a prompt to the text generator",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			reply, err := bot.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		}),
	}
}

func newContinueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Continue the last AI answer of the active session",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			if sid := bot.View().SessionID; sid != "" {
				if _, err := bot.LoadSession(cmd.Context(), sid); err != nil {
					return err
				}
			}
			reply, err := bot.Continue(cmd.Context())
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		}),
	}
}

// agentFlag registers --agent on cmd and returns a hook that applies it.
func agentFlag(cmd *cobra.Command) func(bot *chatbot.ChatBot) error {
	var agent string
	cmd.Flags().StringVar(&agent, "agent", "", "Agent to route to ("+strings.Join(config.Agents, "|")+"); defaults to the configured agent")
	return func(bot *chatbot.ChatBot) error {
		if agent == "" {
			return nil
		}
		return bot.SetAgent(agent)
	}
}

func newOrchestrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrate <prompt...>",
		Short: "Route a prompt to an agent",
		Args:  cobra.MinimumNArgs(1),
	}
	applyAgent := agentFlag(cmd)
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
		if err := applyAgent(bot); err != nil {
			return err
		}
		reply, err := bot.Orchestrate(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printReply(cmd.OutOrStdout(), reply)
		return nil
	})
	return cmd
}

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <prompt...>",
		Short: "Ask an agent to generate files in the workspace",
		Args:  cobra.MinimumNArgs(1),
	}
	applyAgent := agentFlag(cmd)
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
		if err := applyAgent(bot); err != nil {
			return err
		}
		reply, err := bot.Build(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printReply(cmd.OutOrStdout(), reply)
		return nil
	})
	return cmd
}

func newConsoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start the interactive chat console",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			c := chatbot.NewConsole(bot, cmd.InOrStdin(), cmd.OutOrStdout())
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				c.ReadSecret = func(prompt string) (string, error) {
					return terminalSecret(f, cmd.OutOrStdout(), prompt)
				}
			}
			return c.Run(cmd.Context())
		}),
	}
}
