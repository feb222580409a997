package storage

import (
	"context"
	"fmt"

	"github.com/burrowworks/critterledger/internal/activity/session"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAssetBusy indicates a write tried to activate a second session for the
// same asset, which would violate the one-active-session-per-asset rule.
var ErrAssetBusy = apperrors.New(apperrors.CodeAssetBusy, "asset already has an active session")

// ErrSessionFinished indicates a write targeted a session that already
// reached a terminal status.
var ErrSessionFinished = apperrors.New(apperrors.CodeSessionFinished, "session already finished")

// ResultRecord is the audit record of a completed mini-game session. It is
// retained after the session leaves the active indices.
type ResultRecord struct {
	SessionID  uint64
	AssetID    uint64
	Owner      string
	Kind       session.Kind
	Difficulty session.Difficulty
	Score      uint32
	Coins      uint64
	Experience uint64
	// SeedHeight is the beacon height the variance seed was drawn at.
	SeedHeight uint64
	// CompletedHeight is the block at which the session completed.
	CompletedHeight uint64
}

// TransitionRecord captures one applied transition for audits and replay
// comparison tooling.
type TransitionRecord struct {
	// ID is a correlation id, unique per emitted record.
	ID        string
	SessionID uint64
	AssetID   uint64
	Owner     string
	// Action is a stable transition label (START, COMPLETE, ABANDON).
	Action   string
	ToStatus session.Status
	// Height is the block at which the transition applied.
	Height     uint64
	Coins      uint64
	Experience uint64
	TraceID    string
	SpanID     string
}

// ActivityStatistics contains aggregate counters used by introspection
// tooling and the state digest.
type ActivityStatistics struct {
	TotalCount     int64
	ActiveCount    int64
	CompletedCount int64
	AbandonedCount int64
	ResultCount    int64
}

// ListSessionsRequest describes filters for session history views.
type ListSessionsRequest struct {
	// Owner scopes the query to one owner account when non-empty.
	Owner string
	// AssetID scopes the query to one asset when non-zero.
	AssetID uint64
	// Status scopes the query to one status when specified.
	Status session.Status
	// PageSize is the maximum number of sessions to return.
	PageSize int
	// PageToken resumes listing after a previous page.
	PageToken string
}

// FilterKey canonicalizes the structured filters so page tokens can be
// rejected when the filter changes between pages.
func (r ListSessionsRequest) FilterKey() string {
	return fmt.Sprintf("owner=%s|asset=%d|status=%d", r.Owner, r.AssetID, r.Status)
}

// SessionPage describes a page of sessions.
type SessionPage struct {
	Sessions      []session.Session
	NextPageToken string
}

// SearchSessionsRequest carries a translated filter for backends that can
// push predicates into their query engine.
type SearchSessionsRequest struct {
	// FilterClause is an optional SQL WHERE clause fragment.
	FilterClause string
	// FilterParams are the positional parameters for the filter clause.
	FilterParams []any
	// PageSize is the maximum number of sessions to return.
	PageSize int
	// PageToken resumes listing after a previous page.
	PageToken string
}

// SessionStore owns session lifecycle state and the active indices derived
// from it. Writes are atomic: a failed call leaves no partial state behind.
type SessionStore interface {
	// CreateSession persists a new active session, allocating its id.
	// Returns ErrAssetBusy if the asset already has an active session.
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	// GetSession retrieves a session by id.
	GetSession(ctx context.Context, id uint64) (session.Session, error)
	// ActiveSessionForAsset retrieves the active session enrolling an asset.
	// Returns ErrNotFound when the asset is idle.
	ActiveSessionForAsset(ctx context.Context, assetID uint64) (session.Session, error)
	// CountActiveForOwner returns how many sessions the owner has active.
	CountActiveForOwner(ctx context.Context, owner string) (int, error)
	// ListActiveForOwner returns the owner's active sessions ordered by id.
	ListActiveForOwner(ctx context.Context, owner string) ([]session.Session, error)
	// CompleteSession atomically marks a session completed, records its
	// score, and persists the result record when one is supplied.
	// Returns ErrSessionFinished if the session is already terminal.
	CompleteSession(ctx context.Context, id uint64, finishedHeight uint64, result *ResultRecord) (session.Session, error)
	// AbandonSession atomically marks a session abandoned.
	// Returns ErrSessionFinished if the session is already terminal.
	AbandonSession(ctx context.Context, id uint64, finishedHeight uint64) (session.Session, error)
	// RestoreSession inserts a session under its caller-assigned id,
	// keeping the id sequence ahead of it. The snapshot is trusted as-is;
	// engine validation does not re-run, though backends may still
	// enforce their schema constraints. Fails when the id is zero or
	// already present.
	RestoreSession(ctx context.Context, s session.Session) error
	// ListSessions returns a page of sessions matching the request, ordered
	// by id ascending.
	ListSessions(ctx context.Context, req ListSessionsRequest) (SessionPage, error)
	// SnapshotSessions returns every session ordered by id ascending.
	SnapshotSessions(ctx context.Context) ([]session.Session, error)
	// GetResult retrieves the result record of a completed mini-game.
	GetResult(ctx context.Context, sessionID uint64) (ResultRecord, error)
	// SnapshotResults returns every result record ordered by session id.
	SnapshotResults(ctx context.Context) ([]ResultRecord, error)
	// Statistics returns aggregate session counts.
	Statistics(ctx context.Context) (ActivityStatistics, error)
}

// TelemetryStore persists transition records for audits and incident
// analysis.
type TelemetryStore interface {
	InsertTransition(ctx context.Context, rec TransitionRecord) error
	// ListTransitions returns transitions for a session ordered oldest
	// first. A zero session id returns all transitions.
	ListTransitions(ctx context.Context, sessionID uint64) ([]TransitionRecord, error)
}

// SessionSearcher is implemented by backends that can evaluate translated
// filter expressions natively.
type SessionSearcher interface {
	SearchSessions(ctx context.Context, req SearchSessionsRequest) (SessionPage, error)
}

// Store aggregates the persistence interfaces a deployment wires together.
type Store interface {
	SessionStore
	TelemetryStore
	Close() error
}
