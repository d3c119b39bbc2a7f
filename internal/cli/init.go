package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE:  runInitCmd,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		path = config.DefaultPath()
	}
	path = config.ExpandPath(path)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists; pass --force to overwrite it", path)
	}

	if err := config.Write(path, config.Default()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("wrote "+path))
	return nil
}
