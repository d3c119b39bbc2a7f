// Package mcpserver exposes the tool registry to MCP clients.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/tools"
)

const (
	ServerName         = "ctxmeter"
	loggingMethod      = "notifications/message"
	notificationLogger = "ctxmeter"
)

// Registry is what the MCP server needs from tools.Registry.
type Registry interface {
	tools.Executor
	Definitions() []tools.Definition
}

// New builds an MCP server with one MCP tool per registry definition.
func New(registry Registry, version string, logger *slog.Logger) (*server.MCPServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
	)

	for _, def := range registry.Definitions() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", def.Name, err)
		}

		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, schema)
		s.AddTool(tool, toolHandler(registry, def.Name, logger))
	}

	return s, nil
}

func toolHandler(registry Registry, name string, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		out, err := registry.Execute(ctx, name, args, notifier(logger))
		if err != nil {
			if errors.Is(err, tools.ErrToolNotFound) {
				return nil, err
			}
			logger.Warn("mcp tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(out), nil
	}
}

// notifier forwards tool events to the calling client as MCP log messages. Outside of a client
// session the events are dropped.
func notifier(logger *slog.Logger) core.Emitter {
	return func(ctx context.Context, event core.Event) error {
		srv := server.ServerFromContext(ctx)
		if srv == nil {
			return nil
		}

		params := map[string]any{
			"level":  "info",
			"logger": notificationLogger,
			"data":   event,
		}
		if err := srv.SendNotificationToClient(ctx, loggingMethod, params); err != nil {
			logger.Debug("mcp notification dropped", "type", event.Type, "error", err)
		}
		return nil
	}
}

// Serve speaks MCP over the given streams until ctx is done or the input closes.
func Serve(ctx context.Context, s *server.MCPServer, r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, r, w)
}
