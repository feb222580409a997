package domain

import (
	"context"
	"fmt"

	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsReader is the store surface the aggregate tools read.
type StatsReader interface {
	Statistics(ctx context.Context) (storage.ActivityStatistics, error)
}

// ActivityStatsInput represents the MCP tool input for aggregate statistics.
type ActivityStatsInput struct{}

// ActivityStatsResult represents the MCP tool output for aggregate statistics.
type ActivityStatsResult struct {
	Total     int64 `json:"total" jsonschema:"sessions ever created"`
	Active    int64 `json:"active" jsonschema:"currently active sessions"`
	Completed int64 `json:"completed" jsonschema:"completed sessions"`
	Abandoned int64 `json:"abandoned" jsonschema:"abandoned sessions"`
	Results   int64 `json:"results" jsonschema:"persisted mini-game results"`
}

func newActivityStatsResult(stats storage.ActivityStatistics) ActivityStatsResult {
	return ActivityStatsResult{
		Total:     stats.TotalCount,
		Active:    stats.ActiveCount,
		Completed: stats.CompletedCount,
		Abandoned: stats.AbandonedCount,
		Results:   stats.ResultCount,
	}
}

// ActivityStatsTool defines the MCP tool schema for aggregate statistics.
func ActivityStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "activity_stats",
		Description: "Reports aggregate session counts for the node: total, active, completed, abandoned, and mini-game results.",
	}
}

// ActivityStatsHandler reads aggregate statistics from the node store.
func ActivityStatsHandler(store StatsReader) mcp.ToolHandlerFor[ActivityStatsInput, ActivityStatsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ActivityStatsInput) (*mcp.CallToolResult, ActivityStatsResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		stats, err := store.Statistics(callCtx)
		if err != nil {
			return nil, ActivityStatsResult{}, fmt.Errorf("read statistics: %w", err)
		}
		return nil, newActivityStatsResult(stats), nil
	}
}
