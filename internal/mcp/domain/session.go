package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/platform/timeouts"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// callTimeout bounds every store call made on behalf of an MCP client.
const callTimeout = timeouts.MCPCall

// SessionReader is the store surface the session inspection tools read.
type SessionReader interface {
	GetSession(ctx context.Context, id uint64) (session.Session, error)
	ListSessions(ctx context.Context, req storage.ListSessionsRequest) (storage.SessionPage, error)
	GetResult(ctx context.Context, sessionID uint64) (storage.ResultRecord, error)
	ListTransitions(ctx context.Context, sessionID uint64) ([]storage.TransitionRecord, error)
}

// SessionSummary represents a session in MCP tool output.
type SessionSummary struct {
	ID             uint64  `json:"id" jsonschema:"session identifier"`
	Owner          string  `json:"owner" jsonschema:"owner account"`
	AssetID        uint64  `json:"asset_id" jsonschema:"enrolled critter id"`
	Kind           string  `json:"kind" jsonschema:"activity kind (FORAGING, MINING, COURIER, DASH, RIDDLE)"`
	Difficulty     string  `json:"difficulty,omitempty" jsonschema:"mini-game difficulty (EASY, NORMAL, HARD)"`
	Status         string  `json:"status" jsonschema:"session status (ACTIVE, COMPLETED, ABANDONED)"`
	StartHeight    uint64  `json:"start_height" jsonschema:"block height the session started at"`
	EndHeight      uint64  `json:"end_height,omitempty" jsonschema:"deadline height for worker jobs"`
	FinishedHeight uint64  `json:"finished_height,omitempty" jsonschema:"block height the session finished at"`
	Score          *uint32 `json:"score,omitempty" jsonschema:"recorded mini-game score"`
}

// NewSessionSummary converts a stored session to its MCP representation.
func NewSessionSummary(s session.Session) SessionSummary {
	summary := SessionSummary{
		ID:             s.ID,
		Owner:          s.Owner,
		AssetID:        s.AssetID,
		Kind:           session.KindLabel(s.Kind),
		Status:         session.StatusLabel(s.Status),
		StartHeight:    s.StartHeight,
		EndHeight:      s.EndHeight,
		FinishedHeight: s.FinishedHeight,
	}
	if s.Difficulty != session.DifficultyUnspecified {
		summary.Difficulty = session.DifficultyLabel(s.Difficulty)
	}
	if s.Score != nil {
		score := *s.Score
		summary.Score = &score
	}
	return summary
}

// ResultSummary represents a persisted mini-game result in MCP tool output.
type ResultSummary struct {
	SessionID       uint64 `json:"session_id" jsonschema:"session identifier"`
	AssetID         uint64 `json:"asset_id" jsonschema:"enrolled critter id"`
	Owner           string `json:"owner" jsonschema:"owner account"`
	Kind            string `json:"kind" jsonschema:"activity kind"`
	Difficulty      string `json:"difficulty,omitempty" jsonschema:"mini-game difficulty"`
	Score           uint32 `json:"score" jsonschema:"submitted score"`
	Coins           uint64 `json:"coins" jsonschema:"coins paid out"`
	Experience      uint64 `json:"experience" jsonschema:"experience credited to the critter"`
	SeedHeight      uint64 `json:"seed_height" jsonschema:"beacon height the variance seed was drawn at"`
	CompletedHeight uint64 `json:"completed_height" jsonschema:"block height the session completed at"`
}

func newResultSummary(rec storage.ResultRecord) ResultSummary {
	summary := ResultSummary{
		SessionID:       rec.SessionID,
		AssetID:         rec.AssetID,
		Owner:           rec.Owner,
		Kind:            session.KindLabel(rec.Kind),
		Score:           rec.Score,
		Coins:           rec.Coins,
		Experience:      rec.Experience,
		SeedHeight:      rec.SeedHeight,
		CompletedHeight: rec.CompletedHeight,
	}
	if rec.Difficulty != session.DifficultyUnspecified {
		summary.Difficulty = session.DifficultyLabel(rec.Difficulty)
	}
	return summary
}

// TransitionSummary represents one audit transition in MCP tool output.
type TransitionSummary struct {
	Action     string `json:"action" jsonschema:"transition label (START, COMPLETE, ABANDON)"`
	ToStatus   string `json:"to_status" jsonschema:"session status after the transition"`
	Height     uint64 `json:"height" jsonschema:"block height the transition applied at"`
	Coins      uint64 `json:"coins,omitempty" jsonschema:"coins paid by the transition"`
	Experience uint64 `json:"experience,omitempty" jsonschema:"experience credited by the transition"`
}

func newTransitionSummary(rec storage.TransitionRecord) TransitionSummary {
	return TransitionSummary{
		Action:     rec.Action,
		ToStatus:   session.StatusLabel(rec.ToStatus),
		Height:     rec.Height,
		Coins:      rec.Coins,
		Experience: rec.Experience,
	}
}

// SessionGetInput represents the MCP tool input for fetching a session.
type SessionGetInput struct {
	SessionID uint64 `json:"session_id" jsonschema:"session identifier"`
}

// SessionGetResult represents the MCP tool output for fetching a session.
type SessionGetResult struct {
	Session     SessionSummary      `json:"session" jsonschema:"the session"`
	Result      *ResultSummary      `json:"result,omitempty" jsonschema:"mini-game result record, when the session completed with a score"`
	Transitions []TransitionSummary `json:"transitions,omitempty" jsonschema:"applied transitions, oldest first"`
}

// SessionGetTool defines the MCP tool schema for fetching a session.
func SessionGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_get",
		Description: "Fetches one activity session by id, with its mini-game result and transition history when present.",
	}
}

// SessionGetHandler executes a session fetch against the node store.
func SessionGetHandler(store SessionReader) mcp.ToolHandlerFor[SessionGetInput, SessionGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionGetInput) (*mcp.CallToolResult, SessionGetResult, error) {
		if input.SessionID == 0 {
			return nil, SessionGetResult{}, fmt.Errorf("session_id is required")
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		sess, err := store.GetSession(callCtx, input.SessionID)
		if err != nil {
			return nil, SessionGetResult{}, fmt.Errorf("get session %d: %w", input.SessionID, err)
		}

		result := SessionGetResult{Session: NewSessionSummary(sess)}

		rec, err := store.GetResult(callCtx, input.SessionID)
		switch {
		case err == nil:
			summary := newResultSummary(rec)
			result.Result = &summary
		case !errors.Is(err, storage.ErrNotFound):
			return nil, SessionGetResult{}, fmt.Errorf("get result for session %d: %w", input.SessionID, err)
		}

		transitions, err := store.ListTransitions(callCtx, input.SessionID)
		if err != nil {
			return nil, SessionGetResult{}, fmt.Errorf("list transitions for session %d: %w", input.SessionID, err)
		}
		for _, transition := range transitions {
			result.Transitions = append(result.Transitions, newTransitionSummary(transition))
		}

		return nil, result, nil
	}
}

// OwnerSessionsListInput represents the MCP tool input for listing an owner's sessions.
type OwnerSessionsListInput struct {
	Owner      string `json:"owner" jsonschema:"owner account"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"restrict the listing to active sessions"`
	PageSize   int    `json:"page_size,omitempty" jsonschema:"maximum sessions per page"`
	PageToken  string `json:"page_token,omitempty" jsonschema:"page token from a previous call"`
}

// OwnerSessionsListResult represents the MCP tool output for listing an owner's sessions.
type OwnerSessionsListResult struct {
	Sessions      []SessionSummary `json:"sessions" jsonschema:"sessions ordered by id ascending"`
	NextPageToken string           `json:"next_page_token,omitempty" jsonschema:"token resuming the listing, empty on the last page"`
}

// OwnerSessionsListTool defines the MCP tool schema for listing an owner's sessions.
func OwnerSessionsListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "owner_sessions_list",
		Description: "Lists an owner's activity sessions ordered by id, optionally restricted to active ones. Paginated.",
	}
}

// OwnerSessionsListHandler executes a session listing against the node store.
func OwnerSessionsListHandler(store SessionReader) mcp.ToolHandlerFor[OwnerSessionsListInput, OwnerSessionsListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input OwnerSessionsListInput) (*mcp.CallToolResult, OwnerSessionsListResult, error) {
		owner := strings.TrimSpace(input.Owner)
		if owner == "" {
			return nil, OwnerSessionsListResult{}, fmt.Errorf("owner is required")
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		req := storage.ListSessionsRequest{
			Owner:     owner,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		}
		if input.ActiveOnly {
			req.Status = session.StatusActive
		}

		page, err := store.ListSessions(callCtx, req)
		if err != nil {
			return nil, OwnerSessionsListResult{}, fmt.Errorf("list sessions for %s: %w", owner, err)
		}

		result := OwnerSessionsListResult{NextPageToken: page.NextPageToken}
		for _, sess := range page.Sessions {
			result.Sessions = append(result.Sessions, NewSessionSummary(sess))
		}
		return nil, result, nil
	}
}
