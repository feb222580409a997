package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/reward"
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
	"github.com/burrowworks/critterledger/internal/storage/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransitionPreviewInput represents the MCP tool input for previewing a transition.
type TransitionPreviewInput struct {
	Action     string  `json:"action" jsonschema:"transition to preview (START, COMPLETE, or ABANDON)"`
	Owner      string  `json:"owner" jsonschema:"acting owner account"`
	AssetID    uint64  `json:"asset_id,omitempty" jsonschema:"critter to enroll (START)"`
	Kind       string  `json:"kind,omitempty" jsonschema:"activity kind (START)"`
	Difficulty string  `json:"difficulty,omitempty" jsonschema:"mini-game difficulty (START of DASH or RIDDLE)"`
	Duration   uint64  `json:"duration,omitempty" jsonschema:"job duration in blocks (START of FORAGING, MINING, or COURIER)"`
	SessionID  uint64  `json:"session_id,omitempty" jsonschema:"target session (COMPLETE or ABANDON)"`
	Score      *uint32 `json:"score,omitempty" jsonschema:"mini-game score (COMPLETE of DASH or RIDDLE)"`
	Height     uint64  `json:"height,omitempty" jsonschema:"block height to evaluate at; defaults to the highest height the node has recorded"`
}

// TransitionPreviewResult represents the MCP tool output for previewing a transition.
type TransitionPreviewResult struct {
	Accepted   bool            `json:"accepted" jsonschema:"whether the transition would be accepted"`
	Code       string          `json:"code,omitempty" jsonschema:"rejection code when the transition would be rejected"`
	Message    string          `json:"message,omitempty" jsonschema:"localized rejection message"`
	Session    *SessionSummary `json:"session,omitempty" jsonschema:"the session as it would look after the transition"`
	Coins      uint64          `json:"coins,omitempty" jsonschema:"coins the transition would pay, excluding the beacon variance bonus"`
	Experience uint64          `json:"experience,omitempty" jsonschema:"experience the transition would credit"`
	Height     uint64          `json:"height" jsonschema:"block height the preview evaluated at"`
}

// TransitionPreviewTool defines the MCP tool schema for previewing a transition.
func TransitionPreviewTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "transition_preview",
		Description: "Replays a proposed START, COMPLETE, or ABANDON against a sandboxed copy of the node state and reports " +
			"whether it would be accepted, the rejection code and localized message when not, and the reward a completion " +
			"would pay. Previewed payouts exclude the beacon variance bonus, and assets the node has never seen are " +
			"attributed to the proposing owner. Node state is never modified.",
	}
}

// TransitionPreviewHandler replays a proposed transition against a sandboxed
// copy of the node state.
func TransitionPreviewHandler(store SessionSnapshotter, locale string, params session.Params) mcp.ToolHandlerFor[TransitionPreviewInput, TransitionPreviewResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TransitionPreviewInput) (*mcp.CallToolResult, TransitionPreviewResult, error) {
		owner := strings.TrimSpace(input.Owner)
		if owner == "" {
			return nil, TransitionPreviewResult{}, fmt.Errorf("owner is required")
		}
		action := strings.ToUpper(strings.TrimSpace(input.Action))

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		sandbox, chainState, err := buildSandbox(callCtx, store, owner)
		if err != nil {
			return nil, TransitionPreviewResult{}, err
		}
		if input.Height > 0 {
			chainState.height = input.Height
		}

		reject := func(cause error) (*mcp.CallToolResult, TransitionPreviewResult, error) {
			return nil, TransitionPreviewResult{
				Code:    string(apperrors.GetCode(cause)),
				Message: apperrors.Localize(cause, locale),
				Height:  chainState.height,
			}, nil
		}

		eng, err := engine.New(engine.Config{
			Store:   sandbox,
			Assets:  chainState,
			Coins:   chainState,
			Beacon:  chainState,
			Heights: chainState,
			Rewards: reward.DefaultTable(),
			Params:  params,
		})
		if err != nil {
			return nil, TransitionPreviewResult{}, fmt.Errorf("build preview engine: %w", err)
		}

		var sess session.Session
		switch action {
		case "START":
			var kind session.Kind
			if strings.TrimSpace(input.Kind) != "" {
				kind, err = session.KindFromLabel(input.Kind)
				if err != nil {
					return reject(session.ErrKindInvalid)
				}
			}
			var difficulty session.Difficulty
			if strings.TrimSpace(input.Difficulty) != "" {
				difficulty, err = session.DifficultyFromLabel(input.Difficulty)
				if err != nil {
					return reject(session.ErrDifficultyInvalid)
				}
			}
			sess, err = eng.Start(callCtx, session.CreateSessionInput{
				Owner:      owner,
				AssetID:    input.AssetID,
				Kind:       kind,
				Difficulty: difficulty,
				Duration:   input.Duration,
			})
		case "COMPLETE":
			if input.SessionID == 0 {
				return nil, TransitionPreviewResult{}, fmt.Errorf("session_id is required to preview COMPLETE")
			}
			sess, err = eng.Complete(callCtx, engine.CompleteInput{
				Caller:    owner,
				SessionID: input.SessionID,
				Score:     input.Score,
			})
		case "ABANDON":
			if input.SessionID == 0 {
				return nil, TransitionPreviewResult{}, fmt.Errorf("session_id is required to preview ABANDON")
			}
			sess, err = eng.Abandon(callCtx, engine.AbandonInput{
				Caller:    owner,
				SessionID: input.SessionID,
			})
		default:
			return nil, TransitionPreviewResult{}, fmt.Errorf("action %q is not supported; use START, COMPLETE, or ABANDON", input.Action)
		}
		if err != nil {
			if apperrors.GetCode(err) == apperrors.CodeUnknown {
				return nil, TransitionPreviewResult{}, fmt.Errorf("preview %s: %w", action, err)
			}
			return reject(err)
		}

		summary := NewSessionSummary(sess)
		return nil, TransitionPreviewResult{
			Accepted:   true,
			Session:    &summary,
			Coins:      chainState.coins,
			Experience: chainState.experience,
			Height:     chainState.height,
		}, nil
	}
}

// buildSandbox copies the node's sessions into a fresh in-memory store and
// reconstructs collaborator state from them. Ownership reflects the latest
// session enrolling each asset; the height starts at the highest height any
// session recorded.
func buildSandbox(ctx context.Context, store SessionSnapshotter, proposer string) (*memory.Store, *previewChain, error) {
	if store == nil {
		return nil, nil, fmt.Errorf("session store is not configured")
	}

	sessions, err := store.SnapshotSessions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot sessions: %w", err)
	}

	sandbox := memory.New()
	state := &previewChain{
		owners:   make(map[uint64]string, len(sessions)),
		proposer: proposer,
		height:   1,
	}
	for _, sess := range sessions {
		if err := sandbox.RestoreSession(ctx, sess); err != nil {
			return nil, nil, fmt.Errorf("copy session %d: %w", sess.ID, err)
		}
		state.owners[sess.AssetID] = sess.Owner
		if sess.StartHeight > state.height {
			state.height = sess.StartHeight
		}
		if sess.FinishedHeight > state.height {
			state.height = sess.FinishedHeight
		}
	}
	return sandbox, state, nil
}

// previewChain supplies deterministic collaborator state for sandboxed
// previews. Assets absent from the session history are attributed to the
// proposer, the beacon yields a zero seed so payouts carry no variance
// bonus, and credits accumulate instead of reaching a real ledger.
type previewChain struct {
	owners     map[uint64]string
	proposer   string
	height     uint64
	coins      uint64
	experience uint64
}

func (p *previewChain) OwnerOf(ctx context.Context, assetID uint64) (string, bool, error) {
	if owner, ok := p.owners[assetID]; ok {
		return owner, true, nil
	}
	return p.proposer, true, nil
}

func (p *previewChain) CreditExperience(ctx context.Context, assetID uint64, amount uint64) error {
	p.experience += amount
	return nil
}

func (p *previewChain) Credit(ctx context.Context, owner string, amount uint64) error {
	p.coins += amount
	return nil
}

func (p *previewChain) Random(ctx context.Context, subject []byte) (chain.Seed, uint64, error) {
	return chain.Seed{}, p.height, nil
}

func (p *previewChain) Height(ctx context.Context) (uint64, error) {
	return p.height, nil
}
