package service

import (
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerInspectionTools registers the read-only session tools.
func registerInspectionTools(mcpServer *mcp.Server, store Store) {
	mcp.AddTool(mcpServer, domain.SessionGetTool(), domain.SessionGetHandler(store))
	mcp.AddTool(mcpServer, domain.OwnerSessionsListTool(), domain.OwnerSessionsListHandler(store))
	mcp.AddTool(mcpServer, domain.SessionSearchTool(), domain.SessionSearchHandler(store))
	mcp.AddTool(mcpServer, domain.ActivityStatsTool(), domain.ActivityStatsHandler(store))
}

// registerPreviewTools registers the sandboxed transition preview tool.
func registerPreviewTools(mcpServer *mcp.Server, store Store, locale string, params session.Params) {
	mcp.AddTool(mcpServer, domain.TransitionPreviewTool(), domain.TransitionPreviewHandler(store, locale, params))
}

// registerActivityResources registers readable activity MCP resources.
func registerActivityResources(mcpServer *mcp.Server, store Store) {
	mcpServer.AddResource(domain.SessionsResource(), domain.SessionsResourceHandler(store))
	mcpServer.AddResource(domain.StatsResource(), domain.StatsResourceHandler(store))
}
