package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Execute is the entry point for the CLI.
// The first interrupt cancels the in-flight request; a second one exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "agentconsole",
		Short:         "Terminal client for the AI agent API",
		Long:          "Log in, chat with the backend agents, manage sessions and workspace files from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Path to config file (.yaml or .json/.jsonc)")
	root.PersistentFlags().StringVar(&a.apiBase, "api-base", "", "Agent API base URL (overrides config and AGENT_API_BASE)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newGenerateCmd(a),
		newContinueCmd(a),
		newOrchestrateCmd(a),
		newBuildCmd(a),
		newSessionsCmd(a),
		newToolsCmd(a),
		newFilesCmd(a),
		newProfileCmd(a),
		newConsoleCmd(a),
	)
	return root
}
