package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve context_usage and the Jira tools as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			runtime := app.NewRuntime(a.Config, a.ConfigPath, a.services())
			return runtime.RunMCP(os.Stdout, os.Stdin)
		},
	}
}
