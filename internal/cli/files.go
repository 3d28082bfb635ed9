package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"AgentConsole/internal/chatbot"
)

func newToolsCmd(a *app) *cobra.Command {
	var capability string
	var listCapabilities bool

	cmd := &cobra.Command{
		Use:   "tools [tool-id]",
		Short: "List the tools the backend exposes",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			if _, err := bot.RefreshTools(cmd.Context()); err != nil {
				return err
			}
			catalog := bot.Tools()
			out := cmd.OutOrStdout()

			if listCapabilities {
				for _, c := range catalog.Capabilities() {
					fmt.Fprintln(out, c)
				}
				return nil
			}

			if len(args) == 1 {
				t, ok := catalog.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown tool: %s", args[0])
				}
				fmt.Fprintln(out, "ID:          ", t.ID)
				fmt.Fprintln(out, "Name:        ", t.Name)
				fmt.Fprintln(out, "Description: ", t.Description)
				fmt.Fprintln(out, "Capabilities:", strings.Join(t.Capabilities, ", "))
				return nil
			}

			list := catalog.All()
			if capability != "" {
				list = catalog.WithCapability(capability)
			}
			for _, t := range list {
				fmt.Fprintf(out, "%-12s %s\n", t.ID, t.Description)
			}
			fmt.Fprintf(out, "%d of %d tools\n", len(list), catalog.Count())
			return nil
		}),
	}
	cmd.Flags().StringVar(&capability, "capability", "", "Only list tools with this capability")
	cmd.Flags().BoolVar(&listCapabilities, "capabilities", false, "List the distinct capabilities instead of tools")
	return cmd
}

func newFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage files in the agent workspace",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workspace files",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			files, err := bot.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		}),
	}

	var content, from string
	create := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a file from --content, --from or standard input",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			body := content
			switch {
			case from != "":
				data, err := os.ReadFile(from)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", from, err)
				}
				body = string(data)
			case !cmd.Flags().Changed("content"):
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read standard input: %w", err)
				}
				body = string(data)
			}
			resp, err := bot.CreateFile(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Created", resp.Path)
			return nil
		}),
	}
	create.Flags().StringVar(&content, "content", "", "File content")
	create.Flags().StringVar(&from, "from", "", "Read the content from this local file")

	read := &cobra.Command{
		Use:   "read <path>",
		Short: "Print a workspace file",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			resp, err := bot.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), resp.Content)
			if !strings.HasSuffix(resp.Content, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a workspace file",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string, bot *chatbot.ChatBot) error {
			resp, err := bot.DeleteFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted", resp.Path)
			return nil
		}),
	}

	cmd.AddCommand(list, create, read, del)
	return cmd
}
