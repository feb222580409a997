package digest

import (
	"context"
	"testing"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/memory"
)

func seedStore(t *testing.T, store *memory.Store, score uint32, coins uint64) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, session.Session{
		Owner:       "alice",
		AssetID:     1,
		Kind:        session.KindMining,
		Status:      session.StatusActive,
		StartHeight: 10,
		EndHeight:   110,
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	game, err := store.CreateSession(ctx, session.Session{
		Owner:       "bob",
		AssetID:     2,
		Kind:        session.KindDash,
		Difficulty:  session.DifficultyHard,
		Status:      session.StatusActive,
		StartHeight: 12,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	stray, err := store.CreateSession(ctx, session.Session{
		Owner:       "alice",
		AssetID:     3,
		Kind:        session.KindForaging,
		Status:      session.StatusActive,
		StartHeight: 14,
		EndHeight:   44,
	})
	if err != nil {
		t.Fatalf("create stray: %v", err)
	}

	if _, err := store.CompleteSession(ctx, game.ID, 40, &storage.ResultRecord{
		SessionID:       game.ID,
		AssetID:         game.AssetID,
		Owner:           game.Owner,
		Kind:            game.Kind,
		Difficulty:      game.Difficulty,
		Score:           score,
		Coins:           coins,
		Experience:      15,
		SeedHeight:      39,
		CompletedHeight: 40,
	}); err != nil {
		t.Fatalf("complete game: %v", err)
	}
	if _, err := store.AbandonSession(ctx, stray.ID, 20); err != nil {
		t.Fatalf("abandon stray: %v", err)
	}
}

func TestStateDeterministic(t *testing.T) {
	ctx := context.Background()

	first := memory.New()
	second := memory.New()
	seedStore(t, first, 800, 36)
	seedStore(t, second, 800, 36)

	a, err := State(ctx, first)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, err := State(ctx, second)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a != b {
		t.Fatalf("expected equal digests, got %s and %s", a, b)
	}
}

func TestStateTracksTransitions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	created, err := store.CreateSession(ctx, session.Session{
		Owner:       "alice",
		AssetID:     1,
		Kind:        session.KindCourier,
		Status:      session.StatusActive,
		StartHeight: 5,
		EndHeight:   65,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	before, err := State(ctx, store)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	if _, err := store.CompleteSession(ctx, created.ID, 70, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	after, err := State(ctx, store)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if before == after {
		t.Fatal("expected digest to change after completion")
	}
}

func TestStateCoversRewardAmounts(t *testing.T) {
	ctx := context.Background()

	first := memory.New()
	second := memory.New()
	seedStore(t, first, 800, 36)
	seedStore(t, second, 800, 37)

	a, err := State(ctx, first)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, err := State(ctx, second)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if a == b {
		t.Fatal("expected differing coin amounts to change the digest")
	}
}

func TestStateEmptyStores(t *testing.T) {
	ctx := context.Background()

	a, err := State(ctx, memory.New())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, err := State(ctx, memory.New())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal digests for empty stores, got %s and %s", a, b)
	}
}
