// Package engine applies session transitions against the store and the host
// chain collaborators.
//
// The engine is the only writer of session state. Each transition validates
// its preconditions in a fixed order, performs collaborator effects, and
// commits through a single atomic store call; a rejected transition leaves
// every structure unchanged. Telemetry and notification run after the commit
// and are advisory: their failures are logged, never surfaced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/burrowworks/critterledger/internal/activity/guard"
	"github.com/burrowworks/critterledger/internal/activity/notify"
	"github.com/burrowworks/critterledger/internal/activity/reward"
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/telemetry"
)

const tracerName = "github.com/burrowworks/critterledger/internal/activity/engine"

var (
	// ErrStoreRequired indicates a missing session store.
	ErrStoreRequired = errors.New("session store is required")
	// ErrAssetRegistryRequired indicates a missing asset registry.
	ErrAssetRegistryRequired = errors.New("asset registry is required")
	// ErrCoinLedgerRequired indicates a missing coin ledger.
	ErrCoinLedgerRequired = errors.New("coin ledger is required")
	// ErrBeaconRequired indicates a missing randomness beacon.
	ErrBeaconRequired = errors.New("randomness beacon is required")
	// ErrHeightSourceRequired indicates a missing height source.
	ErrHeightSourceRequired = errors.New("height source is required")
	// ErrCalculatorRequired indicates a missing reward calculator.
	ErrCalculatorRequired = errors.New("reward calculator is required")
)

// Config wires the engine's collaborators.
type Config struct {
	Store    storage.SessionStore
	Assets   chain.AssetRegistry
	Coins    chain.CoinLedger
	Beacon   chain.RandomnessBeacon
	Heights  chain.HeightSource
	Rewards  reward.Calculator
	Hooks    *notify.Registry
	Audit    *telemetry.Emitter
	Params   session.Params
}

// Engine orchestrates session transitions.
type Engine struct {
	store   storage.SessionStore
	assets  chain.AssetRegistry
	coins   chain.CoinLedger
	beacon  chain.RandomnessBeacon
	heights chain.HeightSource
	rewards reward.Calculator
	hooks   *notify.Registry
	audit   *telemetry.Emitter
	params  session.Params
	tracer  trace.Tracer
}

// New creates an engine. Hooks and Audit are optional; a zero Params takes
// the defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Assets == nil {
		return nil, ErrAssetRegistryRequired
	}
	if cfg.Coins == nil {
		return nil, ErrCoinLedgerRequired
	}
	if cfg.Beacon == nil {
		return nil, ErrBeaconRequired
	}
	if cfg.Heights == nil {
		return nil, ErrHeightSourceRequired
	}
	if cfg.Rewards == nil {
		return nil, ErrCalculatorRequired
	}
	params := cfg.Params
	if params == (session.Params{}) {
		params = session.DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		store:   cfg.Store,
		assets:  cfg.Assets,
		coins:   cfg.Coins,
		beacon:  cfg.Beacon,
		heights: cfg.Heights,
		rewards: cfg.Rewards,
		hooks:   cfg.Hooks,
		audit:   cfg.Audit,
		params:  params,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Params returns the session parameters the engine enforces.
func (e *Engine) Params() session.Params {
	return e.params
}

// Start admits a new activity session for an owned asset.
func (e *Engine) Start(ctx context.Context, input session.CreateSessionInput) (session.Session, error) {
	input = session.NormalizeCreateSessionInput(input)

	ctx, span := e.tracer.Start(ctx, "activity.start", trace.WithAttributes(
		attribute.String("activity.owner", input.Owner),
		attribute.Int64("activity.asset_id", int64(input.AssetID)),
		attribute.String("activity.kind", session.KindLabel(input.Kind)),
	))
	defer span.End()

	created, err := e.start(ctx, input)
	if err != nil {
		span.RecordError(err)
		return session.Session{}, err
	}
	span.SetAttributes(attribute.Int64("activity.session_id", int64(created.ID)))

	e.announce(ctx, telemetry.ActionStart, created, reward.Plan{}, created.StartHeight)
	return created, nil
}

func (e *Engine) start(ctx context.Context, input session.CreateSessionInput) (session.Session, error) {
	if err := session.ValidateCreateSessionInput(input, e.params); err != nil {
		return session.Session{}, err
	}

	owner, ok, err := e.assets.OwnerOf(ctx, input.AssetID)
	if err != nil {
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "resolve asset owner", err)
	}
	if !ok {
		return session.Session{}, notAssetOwner(input.AssetID, "asset does not exist")
	}
	if owner != input.Owner {
		return session.Session{}, notAssetOwner(input.AssetID, "asset belongs to another account")
	}

	activeCount, err := e.store.CountActiveForOwner(ctx, input.Owner)
	if err != nil {
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "count active sessions", err)
	}
	assetBusy := true
	if _, err := e.store.ActiveSessionForAsset(ctx, input.AssetID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "check asset occupancy", err)
		}
		assetBusy = false
	}
	occupancy := guard.Occupancy{ActiveForOwner: activeCount, AssetBusy: assetBusy}
	if err := guard.Admit(occupancy, input.AssetID, e.params); err != nil {
		return session.Session{}, err
	}

	height, err := e.heights.Height(ctx)
	if err != nil {
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "read block height", err)
	}

	// The store assigns the session id during the atomic insert.
	pending, err := session.CreateSession(input, 0, height, e.params)
	if err != nil {
		return session.Session{}, err
	}

	created, err := e.store.CreateSession(ctx, pending)
	if err != nil {
		if errors.Is(err, storage.ErrAssetBusy) {
			return session.Session{}, err
		}
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "insert session", err)
	}
	return created, nil
}

// CompleteInput identifies a session to complete. Score is required for
// mini-game sessions and must be absent for worker jobs.
type CompleteInput struct {
	Caller    string
	SessionID uint64
	Score     *uint32
}

// Complete finishes a session and pays out its reward.
func (e *Engine) Complete(ctx context.Context, input CompleteInput) (session.Session, error) {
	ctx, span := e.tracer.Start(ctx, "activity.complete", trace.WithAttributes(
		attribute.String("activity.caller", input.Caller),
		attribute.Int64("activity.session_id", int64(input.SessionID)),
	))
	defer span.End()

	completed, plan, err := e.complete(ctx, input)
	if err != nil {
		span.RecordError(err)
		return session.Session{}, err
	}
	span.SetAttributes(
		attribute.Int64("activity.coins", int64(plan.Coins)),
		attribute.Int64("activity.experience", int64(plan.Experience)),
	)

	e.announce(ctx, telemetry.ActionComplete, completed, plan, completed.FinishedHeight)
	return completed, nil
}

func (e *Engine) complete(ctx context.Context, input CompleteInput) (session.Session, reward.Plan, error) {
	current, err := e.loadOwnedSession(ctx, input.Caller, input.SessionID)
	if err != nil {
		return session.Session{}, reward.Plan{}, err
	}

	height, err := e.heights.Height(ctx)
	if err != nil {
		return session.Session{}, reward.Plan{}, apperrors.Wrap(apperrors.CodeInternal, "read block height", err)
	}

	var score uint32
	switch current.Kind.Lifecycle() {
	case session.LifecycleDeadline:
		if height < current.EndHeight {
			return session.Session{}, reward.Plan{}, notYetComplete(current, height)
		}
		if input.Score != nil {
			return session.Session{}, reward.Plan{}, scoreError("a score is not accepted for deadline sessions", e.params)
		}
	case session.LifecycleScore:
		if input.Score == nil {
			return session.Session{}, reward.Plan{}, scoreError("a score is required to complete a mini-game session", e.params)
		}
		if *input.Score > e.params.MaxScore {
			return session.Session{}, reward.Plan{}, scoreError(
				fmt.Sprintf("score %d exceeds maximum %d", *input.Score, e.params.MaxScore), e.params)
		}
		score = *input.Score
	default:
		return session.Session{}, reward.Plan{}, apperrors.Newf(apperrors.CodeKindInvalid, "session %d has no lifecycle", current.ID)
	}

	seed, seedHeight, err := e.beacon.Random(ctx, chain.SessionSubject(current.ID))
	if err != nil {
		return session.Session{}, reward.Plan{}, apperrors.Wrap(apperrors.CodeBeaconUnavailable, "draw randomness", err)
	}

	duration := uint64(0)
	if current.EndHeight > current.StartHeight {
		duration = current.EndHeight - current.StartHeight
	}
	plan, err := e.rewards.Payout(reward.Request{
		Kind:       current.Kind,
		Difficulty: current.Difficulty,
		Duration:   duration,
		Score:      score,
		Seed:       seed,
	}, e.params)
	if err != nil {
		return session.Session{}, reward.Plan{}, err
	}

	// Collaborator credits precede the store commit; any failure aborts the
	// transition before the session flips to Completed.
	if err := e.assets.CreditExperience(ctx, current.AssetID, plan.Experience); err != nil {
		return session.Session{}, reward.Plan{}, apperrors.Wrap(apperrors.CodeCreditFailed, "credit experience", err)
	}
	if err := e.coins.Credit(ctx, current.Owner, plan.Coins); err != nil {
		return session.Session{}, reward.Plan{}, apperrors.Wrap(apperrors.CodeCreditFailed, "credit coins", err)
	}

	var result *storage.ResultRecord
	if current.Kind.Lifecycle() == session.LifecycleScore {
		result = &storage.ResultRecord{
			SessionID:       current.ID,
			AssetID:         current.AssetID,
			Owner:           current.Owner,
			Kind:            current.Kind,
			Difficulty:      current.Difficulty,
			Score:           score,
			Coins:           plan.Coins,
			Experience:      plan.Experience,
			SeedHeight:      seedHeight,
			CompletedHeight: height,
		}
	}

	completed, err := e.store.CompleteSession(ctx, current.ID, height, result)
	if err != nil {
		return session.Session{}, reward.Plan{}, e.mapFinishError(current.ID, err)
	}
	return completed, plan, nil
}

// AbandonInput identifies a session to abandon.
type AbandonInput struct {
	Caller    string
	SessionID uint64
}

// Abandon cancels an active session without a reward.
func (e *Engine) Abandon(ctx context.Context, input AbandonInput) (session.Session, error) {
	ctx, span := e.tracer.Start(ctx, "activity.abandon", trace.WithAttributes(
		attribute.String("activity.caller", input.Caller),
		attribute.Int64("activity.session_id", int64(input.SessionID)),
	))
	defer span.End()

	abandoned, err := e.abandon(ctx, input)
	if err != nil {
		span.RecordError(err)
		return session.Session{}, err
	}

	e.announce(ctx, telemetry.ActionAbandon, abandoned, reward.Plan{}, abandoned.FinishedHeight)
	return abandoned, nil
}

func (e *Engine) abandon(ctx context.Context, input AbandonInput) (session.Session, error) {
	current, err := e.loadOwnedSession(ctx, input.Caller, input.SessionID)
	if err != nil {
		return session.Session{}, err
	}

	height, err := e.heights.Height(ctx)
	if err != nil {
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "read block height", err)
	}

	abandoned, err := e.store.AbandonSession(ctx, current.ID, height)
	if err != nil {
		return session.Session{}, e.mapFinishError(current.ID, err)
	}
	return abandoned, nil
}

// loadOwnedSession loads a session and checks caller identity and liveness,
// in that order.
func (e *Engine) loadOwnedSession(ctx context.Context, caller string, sessionID uint64) (session.Session, error) {
	if caller == "" {
		return session.Session{}, session.ErrOwnerEmpty
	}

	current, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, sessionNotFound(sessionID)
		}
		return session.Session{}, apperrors.Wrap(apperrors.CodeInternal, "load session", err)
	}
	if current.Owner != caller {
		return session.Session{}, apperrors.WithMetadata(
			apperrors.CodeNotSessionOwner,
			fmt.Sprintf("session %d belongs to another account", sessionID),
			map[string]string{"SessionID": strconv.FormatUint(sessionID, 10)},
		)
	}
	if current.Status.Terminal() {
		return session.Session{}, apperrors.WithMetadata(
			apperrors.CodeSessionFinished,
			fmt.Sprintf("session %d already finished as %s", sessionID, session.StatusLabel(current.Status)),
			map[string]string{"Status": session.StatusLabel(current.Status)},
		)
	}
	return current, nil
}

// mapFinishError translates store errors from the terminal verbs.
func (e *Engine) mapFinishError(sessionID uint64, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return sessionNotFound(sessionID)
	case errors.Is(err, storage.ErrSessionFinished):
		return err
	default:
		return apperrors.Wrap(apperrors.CodeInternal, "finish session", err)
	}
}

// announce emits the post-commit telemetry record and notification event.
// Both are advisory: failures are logged and do not affect the transition.
func (e *Engine) announce(ctx context.Context, action string, s session.Session, plan reward.Plan, height uint64) {
	if err := e.audit.Emit(ctx, telemetry.Transition{
		Action:     action,
		SessionID:  s.ID,
		AssetID:    s.AssetID,
		Owner:      s.Owner,
		ToStatus:   s.Status,
		Height:     height,
		Coins:      plan.Coins,
		Experience: plan.Experience,
	}); err != nil {
		log.Printf("telemetry %s session %d: %v", action, s.ID, err)
	}

	if err := e.hooks.Emit(ctx, notify.Event{
		Type:       eventTypeForAction(action),
		SessionID:  s.ID,
		AssetID:    s.AssetID,
		Owner:      s.Owner,
		Status:     s.Status,
		Coins:      plan.Coins,
		Experience: plan.Experience,
		Height:     height,
	}); err != nil {
		log.Printf("notify %s session %d: %v", action, s.ID, err)
	}
}

func eventTypeForAction(action string) string {
	switch action {
	case telemetry.ActionComplete:
		return notify.EventSessionCompleted
	case telemetry.ActionAbandon:
		return notify.EventSessionAbandoned
	default:
		return notify.EventSessionStarted
	}
}

func notAssetOwner(assetID uint64, reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotAssetOwner,
		fmt.Sprintf("asset %d: %s", assetID, reason),
		map[string]string{"AssetID": strconv.FormatUint(assetID, 10)},
	)
}

func sessionNotFound(sessionID uint64) error {
	return apperrors.WithMetadata(
		apperrors.CodeSessionNotFound,
		fmt.Sprintf("session %d not found", sessionID),
		map[string]string{"SessionID": strconv.FormatUint(sessionID, 10)},
	)
}

func notYetComplete(s session.Session, height uint64) error {
	remaining := s.RemainingBlocks(height)
	return apperrors.WithMetadata(
		apperrors.CodeSessionNotYetComplete,
		fmt.Sprintf("session %d completes at height %d", s.ID, s.EndHeight),
		map[string]string{"Remaining": strconv.FormatUint(remaining, 10)},
	)
}

func scoreError(message string, params session.Params) error {
	return apperrors.WithMetadata(
		apperrors.CodeScoreOutOfRange,
		message,
		map[string]string{"MaxScore": strconv.FormatUint(uint64(params.MaxScore), 10)},
	)
}
