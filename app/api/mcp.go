package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (s *Service) newMCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"chatdigest",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	mcpServer.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List every conversation with its current rolling summary, most recently updated first"),
		),
		s.listConversationsTool,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_conversation",
			mcp.WithDescription("Get the messages and summary of a single conversation"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Conversation id as returned by list_conversations"),
			),
		),
		s.getConversationTool,
	)

	return mcpServer
}

func (s *Service) listConversationsTool(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.Summaries())
}

func (s *Service) getConversationTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	conv, ok := s.store.Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("conversation %q not found", id)), nil
	}

	return jsonResult(conv)
}

func jsonResult(value any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return mcp.NewToolResultText(string(data)), nil
}
