package cli

import (
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
	"github.com/erg0nix/ctxmeter/internal/config"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ctxmeter",
		Short:         "Estimate how much of a model's context window a conversation uses",
		Version:       app.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default ~/.ctxmeter/config.toml)")
	rootCmd.PersistentFlags().String("server", "", "gRPC server address")

	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newJiraCmd())
	rootCmd.AddCommand(newInitCmd())

	return rootCmd
}

func resolveServer(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	return clientAddrFromBind(cfg.Bind)
}

func clientAddrFromBind(bind string) string {
	host, port, err := netSplitHostPort(bind)
	if err != nil || port == "" {
		return bind
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1:" + port
	}
	return bind
}

func netSplitHostPort(addr string) (string, string, error) {
	if strings.HasPrefix(addr, ":") {
		return "", strings.TrimPrefix(addr, ":"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}
