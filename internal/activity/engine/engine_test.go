package engine_test

import (
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/notify"
	"github.com/burrowworks/critterledger/internal/activity/reward"
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/memory"
	"github.com/burrowworks/critterledger/internal/telemetry"
	"github.com/burrowworks/critterledger/internal/testkit/chainfakes"
)

func seedWithLow(value uint64) chain.Seed {
	var seed chain.Seed
	binary.BigEndian.PutUint64(seed[:8], value)
	return seed
}

type fixture struct {
	engine  *engine.Engine
	store   *memory.Store
	assets  *chainfakes.Registry
	coins   *chainfakes.Ledger
	beacon  *chainfakes.Beacon
	heights *chainfakes.Heights
	hooks   *notify.Registry
}

// newFixture wires an engine against fakes: alice owns assets 7-10, bob owns
// asset 21, the chain sits at height 100, and the beacon seed folds to 5.
// rapid.TB admits both *testing.T and *rapid.T callers.
func newFixture(t rapid.TB) *fixture {
	t.Helper()

	assets := chainfakes.NewRegistry()
	assets.Owners[7] = "alice"
	assets.Owners[8] = "alice"
	assets.Owners[9] = "alice"
	assets.Owners[10] = "alice"
	assets.Owners[21] = "bob"

	f := &fixture{
		store:   memory.New(),
		assets:  assets,
		coins:   chainfakes.NewLedger(),
		beacon:  chainfakes.NewBeacon(seedWithLow(5), 99),
		heights: chainfakes.NewHeights(100),
		hooks:   notify.NewRegistry(),
	}

	eng, err := engine.New(engine.Config{
		Store:   f.store,
		Assets:  f.assets,
		Coins:   f.coins,
		Beacon:  f.beacon,
		Heights: f.heights,
		Rewards: reward.DefaultTable(),
		Hooks:   f.hooks,
		Audit:   telemetry.NewEmitter(f.store),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = eng
	return f
}

func (f *fixture) startJob(t *testing.T, owner string, assetID uint64, duration uint64) session.Session {
	t.Helper()
	created, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner:    owner,
		AssetID:  assetID,
		Kind:     session.KindMining,
		Duration: duration,
	})
	if err != nil {
		t.Fatalf("start job: %v", err)
	}
	return created
}

func (f *fixture) startGame(t *testing.T, owner string, assetID uint64, difficulty session.Difficulty) session.Session {
	t.Helper()
	created, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner:      owner,
		AssetID:    assetID,
		Kind:       session.KindDash,
		Difficulty: difficulty,
	})
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return created
}

func scoreOf(v uint32) *uint32 { return &v }

func TestStartJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []notify.Event
	if err := f.hooks.Register("capture", 0, func(ctx context.Context, evt notify.Event) error {
		events = append(events, evt)
		return nil
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}

	created := f.startJob(t, "alice", 7, 200)

	if created.ID != 1 {
		t.Fatalf("expected session id 1, got %d", created.ID)
	}
	if created.Status != session.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", session.StatusLabel(created.Status))
	}
	if created.StartHeight != 100 || created.EndHeight != 300 {
		t.Fatalf("expected heights 100/300, got %d/%d", created.StartHeight, created.EndHeight)
	}

	count, err := f.store.CountActiveForOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 active session, got %d", count)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(events))
	}
	evt := events[0]
	if evt.Type != notify.EventSessionStarted || evt.SessionID != created.ID || evt.Owner != "alice" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Coins != 0 || evt.Experience != 0 {
		t.Fatalf("expected no amounts on start event, got %+v", evt)
	}

	transitions, err := f.store.ListTransitions(ctx, created.ID)
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	if len(transitions) != 1 || transitions[0].Action != telemetry.ActionStart {
		t.Fatalf("expected one START transition, got %+v", transitions)
	}
}

func TestStartGameHasNoDeadline(t *testing.T) {
	f := newFixture(t)

	created := f.startGame(t, "alice", 8, session.DifficultyNormal)
	if created.EndHeight != 0 {
		t.Fatalf("expected no deadline, got %d", created.EndHeight)
	}
	if created.Difficulty != session.DifficultyNormal {
		t.Fatalf("expected NORMAL difficulty, got %s", session.DifficultyLabel(created.Difficulty))
	}
}

func TestStartRejections(t *testing.T) {
	tests := []struct {
		name     string
		input    session.CreateSessionInput
		wantCode apperrors.Code
	}{
		{
			name:     "empty owner",
			input:    session.CreateSessionInput{AssetID: 7, Kind: session.KindMining, Duration: 100},
			wantCode: apperrors.CodeOwnerEmpty,
		},
		{
			name:     "zero asset",
			input:    session.CreateSessionInput{Owner: "alice", Kind: session.KindMining, Duration: 100},
			wantCode: apperrors.CodeAssetInvalid,
		},
		{
			name:     "invalid kind",
			input:    session.CreateSessionInput{Owner: "alice", AssetID: 7, Kind: session.Kind(42), Duration: 100},
			wantCode: apperrors.CodeKindInvalid,
		},
		{
			name: "job with difficulty",
			input: session.CreateSessionInput{
				Owner: "alice", AssetID: 7, Kind: session.KindMining,
				Difficulty: session.DifficultyHard, Duration: 100,
			},
			wantCode: apperrors.CodeDifficultyInvalid,
		},
		{
			name: "game with duration",
			input: session.CreateSessionInput{
				Owner: "alice", AssetID: 7, Kind: session.KindDash,
				Difficulty: session.DifficultyEasy, Duration: 100,
			},
			wantCode: apperrors.CodeDurationOutOfRange,
		},
		{
			name:     "duration below minimum",
			input:    session.CreateSessionInput{Owner: "alice", AssetID: 7, Kind: session.KindMining, Duration: 5},
			wantCode: apperrors.CodeDurationOutOfRange,
		},
		{
			name:     "unknown asset",
			input:    session.CreateSessionInput{Owner: "alice", AssetID: 404, Kind: session.KindMining, Duration: 100},
			wantCode: apperrors.CodeNotAssetOwner,
		},
		{
			name:     "asset owned by someone else",
			input:    session.CreateSessionInput{Owner: "alice", AssetID: 21, Kind: session.KindMining, Duration: 100},
			wantCode: apperrors.CodeNotAssetOwner,
		},
		{
			name:     "input validation precedes ownership",
			input:    session.CreateSessionInput{Owner: "", AssetID: 404, Kind: session.KindMining, Duration: 100},
			wantCode: apperrors.CodeOwnerEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.Start(context.Background(), tt.input)
			if got := apperrors.GetCode(err); got != tt.wantCode {
				t.Fatalf("expected code %s, got %s (%v)", tt.wantCode, got, err)
			}

			sessions, snapErr := f.store.SnapshotSessions(context.Background())
			if snapErr != nil {
				t.Fatalf("snapshot: %v", snapErr)
			}
			if len(sessions) != 0 {
				t.Fatalf("expected no sessions after rejection, got %d", len(sessions))
			}
		})
	}
}

func TestStartCapacityLimit(t *testing.T) {
	f := newFixture(t)

	f.startJob(t, "alice", 7, 200)
	f.startGame(t, "alice", 8, session.DifficultyEasy)
	f.startJob(t, "alice", 9, 200)

	_, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "alice", AssetID: 10, Kind: session.KindMining, Duration: 200,
	})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionLimitReached {
		t.Fatalf("expected SESSION_LIMIT_REACHED, got %s (%v)", got, err)
	}
	if meta := apperrors.GetMetadata(err); meta["MaxActive"] != "3" {
		t.Fatalf("expected MaxActive metadata 3, got %v", meta)
	}

	// Owner without sessions is unaffected by alice's limit.
	if _, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "bob", AssetID: 21, Kind: session.KindMining, Duration: 200,
	}); err != nil {
		t.Fatalf("bob start: %v", err)
	}

	// Releasing a slot admits the fourth session.
	if _, err := f.engine.Abandon(context.Background(), engine.AbandonInput{Caller: "alice", SessionID: 1}); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "alice", AssetID: 10, Kind: session.KindMining, Duration: 200,
	}); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestStartAssetBusy(t *testing.T) {
	f := newFixture(t)

	f.startJob(t, "alice", 7, 200)

	// Same owner, same asset, different kind: still busy.
	_, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "alice", AssetID: 7, Kind: session.KindDash, Difficulty: session.DifficultyEasy,
	})
	if got := apperrors.GetCode(err); got != apperrors.CodeAssetBusy {
		t.Fatalf("expected ASSET_BUSY, got %s (%v)", got, err)
	}

	// Another account cannot claim the busy asset either; ownership is
	// checked first, so the rejection is NOT_ASSET_OWNER.
	_, err = f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "bob", AssetID: 7, Kind: session.KindMining, Duration: 200,
	})
	if got := apperrors.GetCode(err); got != apperrors.CodeNotAssetOwner {
		t.Fatalf("expected NOT_ASSET_OWNER, got %s (%v)", got, err)
	}
}

func TestLimitReportedBeforeBusyAsset(t *testing.T) {
	f := newFixture(t)

	f.startJob(t, "alice", 7, 200)
	f.startJob(t, "alice", 8, 200)
	f.startJob(t, "alice", 9, 200)

	// At the limit and the asset is busy: the limit wins.
	_, err := f.engine.Start(context.Background(), session.CreateSessionInput{
		Owner: "alice", AssetID: 7, Kind: session.KindMining, Duration: 200,
	})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionLimitReached {
		t.Fatalf("expected SESSION_LIMIT_REACHED, got %s (%v)", got, err)
	}
}

func TestCompleteJobLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []notify.Event
	if err := f.hooks.Register("capture", 0, func(ctx context.Context, evt notify.Event) error {
		events = append(events, evt)
		return nil
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}

	created := f.startJob(t, "alice", 7, 200)

	// Height 250 is short of the 300 deadline.
	f.heights.Current = 250
	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionNotYetComplete {
		t.Fatalf("expected SESSION_NOT_YET_COMPLETE, got %s (%v)", got, err)
	}
	if meta := apperrors.GetMetadata(err); meta["Remaining"] != "50" {
		t.Fatalf("expected Remaining metadata 50, got %v", meta)
	}

	// At the deadline the completion succeeds and pays out. Mining base is
	// 20 coins / 10 experience; duration 200 is tier 1; the seed folds to 5,
	// so the variance bonus is 5 % 8 = 5 coins.
	f.heights.Current = 300
	completed, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != session.StatusCompleted || completed.FinishedHeight != 300 {
		t.Fatalf("unexpected completed session %+v", completed)
	}

	if got := f.coins.Balances["alice"]; got != 25 {
		t.Fatalf("expected 25 coins, got %d", got)
	}
	if got := f.assets.Experience[7]; got != 10 {
		t.Fatalf("expected 10 experience, got %d", got)
	}

	if _, err := f.store.ActiveSessionForAsset(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected asset 7 freed, got %v", err)
	}
	count, err := f.store.CountActiveForOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 active sessions, got %d", count)
	}

	// Jobs do not persist result records.
	if _, err := f.store.GetResult(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no result record, got %v", err)
	}

	last := events[len(events)-1]
	if last.Type != notify.EventSessionCompleted || last.Coins != 25 || last.Experience != 10 {
		t.Fatalf("unexpected completion event %+v", last)
	}

	transitions, err := f.store.ListTransitions(ctx, created.ID)
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	if len(transitions) != 2 || transitions[1].Action != telemetry.ActionComplete {
		t.Fatalf("expected START then COMPLETE, got %+v", transitions)
	}
	if transitions[1].Coins != 25 || transitions[1].Experience != 10 {
		t.Fatalf("expected amounts on COMPLETE transition, got %+v", transitions[1])
	}
}

func TestCompleteGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.startGame(t, "alice", 8, session.DifficultyHard)

	f.heights.Current = 140
	completed, err := f.engine.Complete(ctx, engine.CompleteInput{
		Caller: "alice", SessionID: created.ID, Score: scoreOf(500),
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Score == nil || *completed.Score != 500 {
		t.Fatalf("expected recorded score 500, got %+v", completed.Score)
	}

	// Dash base 30/15, hard doubles to 60/30, score 500/1000 halves to
	// 30/15, and the seed folds to 5, so 5 % 10 = 5 bonus coins.
	if got := f.coins.Balances["alice"]; got != 35 {
		t.Fatalf("expected 35 coins, got %d", got)
	}
	if got := f.assets.Experience[8]; got != 15 {
		t.Fatalf("expected 15 experience, got %d", got)
	}

	result, err := f.store.GetResult(ctx, created.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	want := storage.ResultRecord{
		SessionID:       created.ID,
		AssetID:         8,
		Owner:           "alice",
		Kind:            session.KindDash,
		Difficulty:      session.DifficultyHard,
		Score:           500,
		Coins:           35,
		Experience:      15,
		SeedHeight:      99,
		CompletedHeight: 140,
	}
	if result != want {
		t.Fatalf("expected result %+v, got %+v", want, result)
	}
}

func TestCompleteScoreValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	game := f.startGame(t, "alice", 8, session.DifficultyEasy)
	job := f.startJob(t, "alice", 7, 200)
	f.heights.Current = 400

	// Games require a score.
	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: game.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeScoreOutOfRange {
		t.Fatalf("expected SCORE_OUT_OF_RANGE for missing score, got %s (%v)", got, err)
	}

	// Scores above the maximum are rejected, not clamped.
	_, err = f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: game.ID, Score: scoreOf(1001)})
	if got := apperrors.GetCode(err); got != apperrors.CodeScoreOutOfRange {
		t.Fatalf("expected SCORE_OUT_OF_RANGE for 1001, got %s (%v)", got, err)
	}
	if got := f.coins.Balances["alice"]; got != 0 {
		t.Fatalf("expected no payout after rejection, got %d coins", got)
	}
	reloaded, err := f.store.GetSession(ctx, game.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if reloaded.Status != session.StatusActive {
		t.Fatalf("expected session still ACTIVE, got %s", session.StatusLabel(reloaded.Status))
	}

	// Jobs do not take a score.
	_, err = f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: job.ID, Score: scoreOf(10)})
	if got := apperrors.GetCode(err); got != apperrors.CodeScoreOutOfRange {
		t.Fatalf("expected SCORE_OUT_OF_RANGE for job score, got %s (%v)", got, err)
	}

	// The maximum score itself is accepted.
	if _, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: game.ID, Score: scoreOf(1000)}); err != nil {
		t.Fatalf("complete with max score: %v", err)
	}
}

func TestCompleteAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.startGame(t, "alice", 8, session.DifficultyEasy)

	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "bob", SessionID: created.ID, Score: scoreOf(100)})
	if got := apperrors.GetCode(err); got != apperrors.CodeNotSessionOwner {
		t.Fatalf("expected NOT_SESSION_OWNER, got %s (%v)", got, err)
	}
	_, err = f.engine.Abandon(ctx, engine.AbandonInput{Caller: "bob", SessionID: created.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeNotSessionOwner {
		t.Fatalf("expected NOT_SESSION_OWNER, got %s (%v)", got, err)
	}

	// The rejected calls left the session untouched.
	reloaded, err := f.store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if reloaded.Status != session.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", session.StatusLabel(reloaded.Status))
	}
	if got := f.coins.Balances["alice"]; got != 0 {
		t.Fatalf("expected no payout, got %d", got)
	}

	_, err = f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: 404, Score: scoreOf(100)})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %s (%v)", got, err)
	}

	_, err = f.engine.Abandon(ctx, engine.AbandonInput{Caller: "", SessionID: created.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeOwnerEmpty {
		t.Fatalf("expected OWNER_EMPTY, got %s (%v)", got, err)
	}
}

func TestFinishTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.startGame(t, "alice", 8, session.DifficultyEasy)
	if _, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: first.ID, Score: scoreOf(100)}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: first.ID, Score: scoreOf(100)})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionFinished {
		t.Fatalf("expected SESSION_FINISHED on double complete, got %s (%v)", got, err)
	}
	_, err = f.engine.Abandon(ctx, engine.AbandonInput{Caller: "alice", SessionID: first.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionFinished {
		t.Fatalf("expected SESSION_FINISHED on abandon after complete, got %s (%v)", got, err)
	}

	second := f.startJob(t, "alice", 7, 200)
	if _, err := f.engine.Abandon(ctx, engine.AbandonInput{Caller: "alice", SessionID: second.ID}); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	f.heights.Current = 400
	_, err = f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: second.ID})
	if got := apperrors.GetCode(err); got != apperrors.CodeSessionFinished {
		t.Fatalf("expected SESSION_FINISHED on complete after abandon, got %s (%v)", got, err)
	}
}

func TestAbandonPaysNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []notify.Event
	if err := f.hooks.Register("capture", 0, func(ctx context.Context, evt notify.Event) error {
		events = append(events, evt)
		return nil
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}

	created := f.startJob(t, "alice", 7, 200)
	f.heights.Current = 150

	abandoned, err := f.engine.Abandon(ctx, engine.AbandonInput{Caller: "alice", SessionID: created.ID})
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if abandoned.Status != session.StatusAbandoned || abandoned.FinishedHeight != 150 {
		t.Fatalf("unexpected abandoned session %+v", abandoned)
	}

	if got := f.coins.Balances["alice"]; got != 0 {
		t.Fatalf("expected no payout, got %d", got)
	}
	if got := f.assets.Experience[7]; got != 0 {
		t.Fatalf("expected no experience, got %d", got)
	}
	if _, err := f.store.ActiveSessionForAsset(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected asset freed, got %v", err)
	}

	last := events[len(events)-1]
	if last.Type != notify.EventSessionAbandoned || last.Height != 150 {
		t.Fatalf("unexpected abandon event %+v", last)
	}
}

func TestCreditFailureAbortsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.startGame(t, "alice", 8, session.DifficultyEasy)

	f.coins.CreditErr = errors.New("ledger offline")
	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID, Score: scoreOf(500)})
	if got := apperrors.GetCode(err); got != apperrors.CodeCreditFailed {
		t.Fatalf("expected CREDIT_FAILED, got %s (%v)", got, err)
	}

	// The session did not flip and no result was recorded.
	reloaded, err := f.store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if reloaded.Status != session.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", session.StatusLabel(reloaded.Status))
	}
	if _, err := f.store.GetResult(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no result record, got %v", err)
	}

	// Experience failure aborts before any coin credit.
	f.coins.CreditErr = nil
	f.assets.CreditExperienceErr = errors.New("registry offline")
	_, err = f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID, Score: scoreOf(500)})
	if got := apperrors.GetCode(err); got != apperrors.CodeCreditFailed {
		t.Fatalf("expected CREDIT_FAILED, got %s (%v)", got, err)
	}
	if got := f.coins.Balances["alice"]; got != 0 {
		t.Fatalf("expected no coins after experience failure, got %d", got)
	}
}

func TestBeaconFailureAbortsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.startGame(t, "alice", 8, session.DifficultyEasy)

	f.beacon.RandomErr = errors.New("beacon lagging")
	_, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID, Score: scoreOf(500)})
	if got := apperrors.GetCode(err); got != apperrors.CodeBeaconUnavailable {
		t.Fatalf("expected BEACON_UNAVAILABLE, got %s (%v)", got, err)
	}

	reloaded, err := f.store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if reloaded.Status != session.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", session.StatusLabel(reloaded.Status))
	}
	if got := f.coins.Balances["alice"]; got != 0 {
		t.Fatalf("expected no payout, got %d", got)
	}
}

func TestBeaconSubjectIsNamespacedBySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.startGame(t, "alice", 8, session.DifficultyEasy)
	if _, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID, Score: scoreOf(100)}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if len(f.beacon.Subjects) != 1 {
		t.Fatalf("expected 1 beacon draw, got %d", len(f.beacon.Subjects))
	}
	if !reflect.DeepEqual(f.beacon.Subjects[0], chain.SessionSubject(created.ID)) {
		t.Fatalf("unexpected beacon subject %q", f.beacon.Subjects[0])
	}
}

func TestHookFailureDoesNotBlockTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.hooks.Register("broken", 0, func(ctx context.Context, evt notify.Event) error {
		return errors.New("downstream offline")
	}); err != nil {
		t.Fatalf("register hook: %v", err)
	}

	created := f.startGame(t, "alice", 8, session.DifficultyEasy)
	completed, err := f.engine.Complete(ctx, engine.CompleteInput{Caller: "alice", SessionID: created.ID, Score: scoreOf(100)})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != session.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", session.StatusLabel(completed.Status))
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	base := func() engine.Config {
		return engine.Config{
			Store:   memory.New(),
			Assets:  chainfakes.NewRegistry(),
			Coins:   chainfakes.NewLedger(),
			Beacon:  chainfakes.NewBeacon(chain.Seed{}, 0),
			Heights: chainfakes.NewHeights(1),
			Rewards: reward.DefaultTable(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*engine.Config)
		wantErr error
	}{
		{"missing store", func(c *engine.Config) { c.Store = nil }, engine.ErrStoreRequired},
		{"missing assets", func(c *engine.Config) { c.Assets = nil }, engine.ErrAssetRegistryRequired},
		{"missing coins", func(c *engine.Config) { c.Coins = nil }, engine.ErrCoinLedgerRequired},
		{"missing beacon", func(c *engine.Config) { c.Beacon = nil }, engine.ErrBeaconRequired},
		{"missing heights", func(c *engine.Config) { c.Heights = nil }, engine.ErrHeightSourceRequired},
		{"missing rewards", func(c *engine.Config) { c.Rewards = nil }, engine.ErrCalculatorRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if _, err := engine.New(cfg); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := engine.New(base()); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

// TestOccupancyInvariants drives random transition sequences and checks that
// no owner ever exceeds the session limit and no asset ever carries two
// active sessions.
func TestOccupancyInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		ctx := context.Background()
		owners := map[uint64]string{7: "alice", 8: "alice", 9: "alice", 10: "alice", 21: "bob"}
		assetIDs := []uint64{7, 8, 9, 10, 21}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				assetID := rapid.SampledFrom(assetIDs).Draw(t, "asset")
				input := session.CreateSessionInput{Owner: owners[assetID], AssetID: assetID}
				if rapid.Bool().Draw(t, "job") {
					input.Kind = session.KindMining
					input.Duration = 100
				} else {
					input.Kind = session.KindRiddle
					input.Difficulty = session.DifficultyNormal
				}
				_, _ = f.engine.Start(ctx, input)
			case 1:
				sessionID := rapid.Uint64Range(1, 12).Draw(t, "complete_id")
				current, err := f.store.GetSession(ctx, sessionID)
				if err != nil {
					continue
				}
				in := engine.CompleteInput{Caller: current.Owner, SessionID: sessionID}
				if current.Kind.Lifecycle() == session.LifecycleScore {
					in.Score = scoreOf(rapid.Uint32Range(0, 1000).Draw(t, "score"))
				} else {
					f.heights.Current = current.EndHeight
				}
				_, _ = f.engine.Complete(ctx, in)
			case 2:
				sessionID := rapid.Uint64Range(1, 12).Draw(t, "abandon_id")
				current, err := f.store.GetSession(ctx, sessionID)
				if err != nil {
					continue
				}
				_, _ = f.engine.Abandon(ctx, engine.AbandonInput{Caller: current.Owner, SessionID: sessionID})
			}

			sessions, err := f.store.SnapshotSessions(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			activePerOwner := map[string]int{}
			activePerAsset := map[uint64]int{}
			for _, s := range sessions {
				if s.Status != session.StatusActive {
					continue
				}
				activePerOwner[s.Owner]++
				activePerAsset[s.AssetID]++
			}
			for owner, n := range activePerOwner {
				if n > 3 {
					t.Fatalf("owner %s has %d active sessions", owner, n)
				}
			}
			for assetID, n := range activePerAsset {
				if n > 1 {
					t.Fatalf("asset %d has %d active sessions", assetID, n)
				}
			}
		}
	})
}
