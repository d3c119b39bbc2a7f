package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the filter plugin (gRPC by default, JSON-RPC with --stdio)",
		RunE:  runServeCmd,
	}

	cmd.Flags().Bool("stdio", false, "speak line-delimited JSON-RPC on stdin/stdout")
	cmd.Flags().String("bind", "", "gRPC bind address (overrides config)")
	cmd.Flags().String("events-bind", "", "websocket event feed address (overrides config)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	stdio, _ := cmd.Flags().GetBool("stdio")
	bindOverride, _ := cmd.Flags().GetString("bind")
	eventsOverride, _ := cmd.Flags().GetString("events-bind")

	cfg := a.Config
	if bindOverride != "" {
		cfg.Bind = bindOverride
	}
	if eventsOverride != "" {
		cfg.EventsBind = eventsOverride
	}

	runtime := app.NewRuntime(cfg, a.ConfigPath, app.NewServices(cfg, a.Logger))

	if stdio {
		return runtime.RunStdio(os.Stdout, os.Stdin)
	}

	if pid := app.ReadPID(app.PIDPath(a.ConfigPath)); pid != 0 {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	return runtime.RunServer()
}
