package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"AgentConsole/internal/chatbot"
	"AgentConsole/internal/config"
)

func newLoginCmd(a *app) *cobra.Command {
	var passwordFile string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and store the token",
		Long: `Log in to the agent API and keep the token in the local state database.

The password is read from --password-file, prompted on the terminal, or read
from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			password, err := a.readPassword(cmd, passwordFile, "Password: ")
			if err != nil {
				return err
			}
			if err := bot.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			if sid := bot.View().SessionID; sid != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Session:", sid)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "File containing the password, or - to prompt")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var passwordFile string
	var agent string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			in := chatbot.RegisterInput{Email: args[0], Agent: agent}
			var err error
			if in.Password, err = a.readPassword(cmd, passwordFile, "Password: "); err != nil {
				return err
			}
			if passwordFile != "" && passwordFile != "-" {
				in.Confirm = in.Password
			} else if in.Confirm, err = a.readPassword(cmd, "", "Confirm password: "); err != nil {
				return err
			}
			if err := bot.Register(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s (default agent: %s).\n", in.Email, bot.View().Agent)
			return nil
		}),
	}
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "File containing the password, or - to prompt")
	cmd.Flags().StringVar(&agent, "agent", config.AgentAuto, "Default agent for the account")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and session",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			if err := bot.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login state, active session and backend health",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			out := cmd.OutOrStdout()
			v := bot.View()
			loggedIn := "no"
			if v.Authenticated {
				loggedIn = "yes"
			}
			fmt.Fprintln(out, "API:      ", a.client.BaseURL())
			fmt.Fprintln(out, "Logged in:", loggedIn)
			fmt.Fprintln(out, "Session:  ", orNone(v.SessionID))
			fmt.Fprintln(out, "Agent:    ", v.Agent)

			health, err := a.client.Health(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, "Backend:   unreachable:", err)
				return nil
			}
			fmt.Fprintln(out, "Backend:  ", health.Status)
			return nil
		}),
	}
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the account profile",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the account profile",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
				p, err := bot.Profile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Email:        ", p.Email)
				fmt.Fprintln(cmd.OutOrStdout(), "Default agent:", p.DefaultAgent)
				return nil
			}),
		},
		&cobra.Command{
			Use:       "set <agent>",
			Short:     "Change the default agent",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.Agents,
			RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
				p, err := bot.SetDefaultAgent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Default agent:", p.DefaultAgent)
				return nil
			}),
		},
	)
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
