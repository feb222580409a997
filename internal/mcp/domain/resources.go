package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// SessionsResourceURI addresses the full session listing resource.
	SessionsResourceURI = "activity://sessions"
	// StatsResourceURI addresses the aggregate statistics resource.
	StatsResourceURI = "activity://stats"
)

// SessionSnapshotter is the store surface full-state reads come from.
type SessionSnapshotter interface {
	SnapshotSessions(ctx context.Context) ([]session.Session, error)
}

// SessionListPayload is the JSON payload of the sessions resource.
type SessionListPayload struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionsResource defines the readable session listing resource.
func SessionsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "activity_sessions",
		Title:       "Activity Sessions",
		Description: "Every activity session known to the node, ordered by id ascending",
		MIMEType:    "application/json",
		URI:         SessionsResourceURI,
	}
}

// SessionsResourceHandler returns a readable session listing resource.
func SessionsResourceHandler(store SessionSnapshotter) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if store == nil {
			return nil, fmt.Errorf("session store is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI != SessionsResourceURI {
			return nil, fmt.Errorf("unsupported URI; use %s", SessionsResourceURI)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		sessions, err := store.SnapshotSessions(callCtx)
		if err != nil {
			return nil, fmt.Errorf("snapshot sessions: %w", err)
		}

		payload := SessionListPayload{}
		for _, sess := range sessions {
			payload.Sessions = append(payload.Sessions, NewSessionSummary(sess))
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal session list: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      SessionsResourceURI,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// StatsResource defines the readable aggregate statistics resource.
func StatsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "activity_stats",
		Title:       "Activity Statistics",
		Description: "Aggregate session counts for the node",
		MIMEType:    "application/json",
		URI:         StatsResourceURI,
	}
}

// StatsResourceHandler returns a readable aggregate statistics resource.
func StatsResourceHandler(store StatsReader) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if store == nil {
			return nil, fmt.Errorf("session store is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI != StatsResourceURI {
			return nil, fmt.Errorf("unsupported URI; use %s", StatsResourceURI)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		stats, err := store.Statistics(callCtx)
		if err != nil {
			return nil, fmt.Errorf("read statistics: %w", err)
		}

		data, err := json.MarshalIndent(newActivityStatsResult(stats), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal statistics: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      StatsResourceURI,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
