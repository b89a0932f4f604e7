package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

const (
	serverName    = "broker-docs"
	serverVersion = "1.0.0"
)

// Tools exposes one workspace and the customer profiles as MCP tools.
type Tools struct {
	workspace ports.Workspace
	profiles  ports.ProfileReader
}

func NewTools(workspace ports.Workspace, profiles ports.ProfileReader) *Tools {
	return &Tools{workspace: workspace, profiles: profiles}
}

// NewServer builds a stdio-ready MCP server with every tool registered.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_clients",
		mcp.WithDescription("List the brokerage clients in the signed-in user's root folder."),
	), t.listClients)

	s.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List a client's documents with any stored analysis results."),
		mcp.WithString("client_id", mcp.Required(), mcp.Description("Client id returned by list_clients.")),
	), t.listDocuments)

	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Run document analysis and store the result in the client's ledger."),
		mcp.WithString("client_id", mcp.Required(), mcp.Description("Client id returned by list_clients.")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by list_documents.")),
	), t.analyzeDocument)

	s.AddTool(mcp.NewTool("get_customer_profile",
		mcp.WithDescription("Return the customer profile aggregated from analyzed documents."),
		mcp.WithString("customer_id", mcp.Required(), mcp.Description("Personal identifier of the customer.")),
	), t.getCustomerProfile)
}

func (t *Tools) listClients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clients, err := t.workspace.LoadClients(ctx)
	if err != nil {
		return toolError("list_clients", err), nil
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return jsonResult(clients)
}

func (t *Tools) listDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, err := request.RequireString("client_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var docs []domain.Document
	err = t.withClients(ctx, func() error {
		var selectErr error
		docs, selectErr = t.workspace.SelectClient(ctx, clientID)
		return selectErr
	})
	if err != nil {
		return toolError("list_documents", err), nil
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return jsonResult(docs)
}

func (t *Tools) analyzeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, err := request.RequireString("client_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var entry domain.LedgerEntry
	err = t.withClients(ctx, func() error {
		var analyzeErr error
		entry, analyzeErr = t.workspace.AnalyzeDocument(ctx, clientID, documentID)
		return analyzeErr
	})
	if err != nil {
		return toolError("analyze_document", err), nil
	}
	return jsonResult(entry)
}

func (t *Tools) getCustomerProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID, err := request.RequireString("customer_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile, err := t.profiles.Get(ctx, customerID)
	if err != nil {
		return toolError("get_customer_profile", err), nil
	}
	return jsonResult(profile)
}

// withClients runs fn and, when the client is not known yet, loads the
// client list once and retries.
func (t *Tools) withClients(ctx context.Context, fn func() error) error {
	err := fn()
	if !domain.IsKind(err, domain.ErrNotFound) {
		return err
	}
	if _, loadErr := t.workspace.LoadClients(ctx); loadErr != nil {
		return loadErr
	}
	return fn()
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", tool, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
