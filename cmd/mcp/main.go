package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/broker-docs/internal/adapters/mcp"
	"github.com/kirillkom/broker-docs/internal/bootstrap"
	"github.com/kirillkom/broker-docs/internal/config"
	"github.com/kirillkom/broker-docs/internal/observability/logging"
)

const service = "mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel))

	if cfg.MCPSessionID == "" {
		slog.Error("mcp_session_missing", "hint", "set MCP_SESSION_ID to a session created through the api")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workspace, err := app.Workspaces.Workspace(ctx, cfg.MCPSessionID)
	if err != nil {
		slog.Error("mcp_session_restore_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("mcp_serving", "user_email", workspace.Session().UserEmail)
	if err := server.ServeStdio(mcpadapter.NewServer(mcpadapter.NewTools(workspace, app.Profiles))); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
