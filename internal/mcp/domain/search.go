package domain

import (
	"context"
	"fmt"

	"github.com/burrowworks/critterledger/internal/core/filter"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionSearchInput represents the MCP tool input for searching sessions.
type SessionSearchInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over id, owner, asset_id, kind, difficulty, status, start_height, end_height, finished_height, and score. Enum values are uppercase labels, e.g. kind = \"MINING\" AND status = \"COMPLETED\""`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum sessions per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"page token from a previous call"`
}

// SessionSearchResult represents the MCP tool output for searching sessions.
type SessionSearchResult struct {
	Sessions      []SessionSummary `json:"sessions" jsonschema:"matching sessions ordered by id ascending"`
	NextPageToken string           `json:"next_page_token,omitempty" jsonschema:"token resuming the search, empty on the last page"`
}

// SessionSearchTool defines the MCP tool schema for searching sessions.
func SessionSearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_search",
		Description: "Searches activity sessions with an AIP-160 filter expression. An empty filter matches every session. Paginated.",
	}
}

// SessionSearchHandler evaluates a session search against the node store.
func SessionSearchHandler(store storage.SessionSearcher) mcp.ToolHandlerFor[SessionSearchInput, SessionSearchResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionSearchInput) (*mcp.CallToolResult, SessionSearchResult, error) {
		cond, err := filter.ParseSessionFilter(input.Filter)
		if err != nil {
			return nil, SessionSearchResult{}, fmt.Errorf("invalid filter: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		page, err := store.SearchSessions(callCtx, storage.SearchSessionsRequest{
			FilterClause: cond.Clause,
			FilterParams: cond.Params,
			PageSize:     input.PageSize,
			PageToken:    input.PageToken,
		})
		if err != nil {
			return nil, SessionSearchResult{}, fmt.Errorf("search sessions: %w", err)
		}

		result := SessionSearchResult{NextPageToken: page.NextPageToken}
		for _, sess := range page.Sessions {
			result.Sessions = append(result.Sessions, NewSessionSummary(sess))
		}
		return nil, result, nil
	}
}
