package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/app"
	"github.com/erg0nix/ctxmeter/internal/config"
)

type App struct {
	Config     config.Config
	ConfigPath string
	ServerAddr string
	Logger     *slog.Logger
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	serverOverride, _ := cmd.Flags().GetString("server")

	if configPath == "" {
		configPath = config.DefaultPath()
	}
	configPath = config.ExpandPath(configPath)

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg = config.ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	for _, warning := range cfg.Warnings() {
		logger.Warn("config warning", "detail", warning)
	}

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		ServerAddr: resolveServer(serverOverride, cfg),
		Logger:     logger,
	}, nil
}

func (a *App) services() *app.Services {
	return app.NewServices(a.Config, a.Logger)
}
