// Package storetest provides a reusable conformance suite for validating
// storage.Store implementations. Run exercises the lifecycle, index, and
// pagination contract so that every backend enforces the same rules.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/storage"
)

// Factory builds a fresh empty store for one subtest.
type Factory func(t *testing.T) storage.Store

// Run executes the conformance suite against the given store factory.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAssignsSequentialIDs", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.CreateSession(ctx, activeJob("owner-a", 1))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		second, err := store.CreateSession(ctx, activeJob("owner-a", 2))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if first.ID == 0 {
			t.Fatalf("expected non-zero id")
		}
		if second.ID <= first.ID {
			t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
		}
	})

	t.Run("CreateEnforcesAssetExclusivity", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.CreateSession(ctx, activeJob("owner-a", 7)); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := store.CreateSession(ctx, activeJob("owner-b", 7))
		if !errors.Is(err, storage.ErrAssetBusy) {
			t.Fatalf("expected ErrAssetBusy, got %v", err)
		}
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetSession(context.Background(), 999)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ActiveSessionForAsset", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		found, err := store.ActiveSessionForAsset(ctx, 7)
		if err != nil {
			t.Fatalf("active for asset: %v", err)
		}
		if found.ID != created.ID {
			t.Fatalf("expected session %d, got %d", created.ID, found.ID)
		}

		_, err = store.ActiveSessionForAsset(ctx, 8)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for idle asset, got %v", err)
		}
	})

	t.Run("OwnerCounts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for assetID := uint64(1); assetID <= 3; assetID++ {
			if _, err := store.CreateSession(ctx, activeJob("owner-a", assetID)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		if _, err := store.CreateSession(ctx, activeJob("owner-b", 4)); err != nil {
			t.Fatalf("create: %v", err)
		}

		count, err := store.CountActiveForOwner(ctx, "owner-a")
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 3 {
			t.Fatalf("expected 3 active, got %d", count)
		}

		active, err := store.ListActiveForOwner(ctx, "owner-a")
		if err != nil {
			t.Fatalf("list active: %v", err)
		}
		if len(active) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(active))
		}
		for i := 1; i < len(active); i++ {
			if active[i].ID <= active[i-1].ID {
				t.Fatalf("expected ascending ids, got %d after %d", active[i].ID, active[i-1].ID)
			}
		}
	})

	t.Run("CompleteLifecycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.CreateSession(ctx, activeGame("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		result := storage.ResultRecord{
			SessionID:       created.ID,
			AssetID:         created.AssetID,
			Owner:           created.Owner,
			Kind:            created.Kind,
			Difficulty:      created.Difficulty,
			Score:           850,
			Coins:           51,
			Experience:      25,
			SeedHeight:      42,
			CompletedHeight: 42,
		}
		completed, err := store.CompleteSession(ctx, created.ID, 42, &result)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if completed.Status != session.StatusCompleted {
			t.Fatalf("expected COMPLETED, got %v", completed.Status)
		}
		if completed.FinishedHeight != 42 {
			t.Fatalf("expected finished height 42, got %d", completed.FinishedHeight)
		}
		if completed.Score == nil || *completed.Score != 850 {
			t.Fatalf("expected score 850, got %v", completed.Score)
		}

		stored, err := store.GetResult(ctx, created.ID)
		if err != nil {
			t.Fatalf("get result: %v", err)
		}
		if stored != result {
			t.Fatalf("expected result %+v, got %+v", result, stored)
		}

		loaded, err := store.GetSession(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if loaded.Status != session.StatusCompleted {
			t.Fatalf("expected terminal session to stay queryable, got %v", loaded.Status)
		}
	})

	t.Run("CompleteWithoutResult", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		completed, err := store.CompleteSession(ctx, created.ID, 200, nil)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if completed.Score != nil {
			t.Fatalf("expected no score for a job, got %v", *completed.Score)
		}
		_, err = store.GetResult(ctx, created.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for job result, got %v", err)
		}
	})

	t.Run("CompleteTerminalSession", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.CompleteSession(ctx, created.ID, 200, nil); err != nil {
			t.Fatalf("complete: %v", err)
		}

		_, err = store.CompleteSession(ctx, created.ID, 201, nil)
		if !errors.Is(err, storage.ErrSessionFinished) {
			t.Fatalf("expected ErrSessionFinished, got %v", err)
		}
		_, err = store.AbandonSession(ctx, created.ID, 201)
		if !errors.Is(err, storage.ErrSessionFinished) {
			t.Fatalf("expected ErrSessionFinished, got %v", err)
		}
	})

	t.Run("AbandonLifecycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		abandoned, err := store.AbandonSession(ctx, created.ID, 55)
		if err != nil {
			t.Fatalf("abandon: %v", err)
		}
		if abandoned.Status != session.StatusAbandoned {
			t.Fatalf("expected ABANDONED, got %v", abandoned.Status)
		}
		if abandoned.FinishedHeight != 55 {
			t.Fatalf("expected finished height 55, got %d", abandoned.FinishedHeight)
		}

		_, err = store.AbandonSession(ctx, 999, 55)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TerminalSessionFreesAsset", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.AbandonSession(ctx, first.ID, 20); err != nil {
			t.Fatalf("abandon: %v", err)
		}

		second, err := store.CreateSession(ctx, activeJob("owner-a", 7))
		if err != nil {
			t.Fatalf("expected asset to be free after abandon: %v", err)
		}
		if second.ID <= first.ID {
			t.Fatalf("expected a fresh id, got %d after %d", second.ID, first.ID)
		}

		count, err := store.CountActiveForOwner(ctx, "owner-a")
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 active, got %d", count)
		}
	})

	t.Run("ListSessionsFilters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a, err := store.CreateSession(ctx, activeJob("owner-a", 1))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.CreateSession(ctx, activeJob("owner-b", 2)); err != nil {
			t.Fatalf("create: %v", err)
		}
		c, err := store.CreateSession(ctx, activeJob("owner-a", 3))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.AbandonSession(ctx, c.ID, 30); err != nil {
			t.Fatalf("abandon: %v", err)
		}

		page, err := store.ListSessions(ctx, storage.ListSessionsRequest{Owner: "owner-a"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Sessions) != 2 {
			t.Fatalf("expected 2 sessions for owner-a, got %d", len(page.Sessions))
		}

		page, err = store.ListSessions(ctx, storage.ListSessionsRequest{Owner: "owner-a", Status: session.StatusActive})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Sessions) != 1 || page.Sessions[0].ID != a.ID {
			t.Fatalf("expected only session %d, got %+v", a.ID, page.Sessions)
		}

		page, err = store.ListSessions(ctx, storage.ListSessionsRequest{AssetID: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Sessions) != 1 || page.Sessions[0].AssetID != 2 {
			t.Fatalf("expected only asset 2, got %+v", page.Sessions)
		}
	})

	t.Run("ListSessionsPagination", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for assetID := uint64(1); assetID <= 5; assetID++ {
			if _, err := store.CreateSession(ctx, activeJob("owner-a", assetID)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}

		var collected []session.Session
		token := ""
		pages := 0
		for {
			page, err := store.ListSessions(ctx, storage.ListSessionsRequest{PageSize: 2, PageToken: token})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			collected = append(collected, page.Sessions...)
			pages++
			if page.NextPageToken == "" {
				break
			}
			token = page.NextPageToken
		}
		if len(collected) != 5 {
			t.Fatalf("expected 5 sessions across pages, got %d", len(collected))
		}
		if pages < 3 {
			t.Fatalf("expected at least 3 pages, got %d", pages)
		}
		for i := 1; i < len(collected); i++ {
			if collected[i].ID <= collected[i-1].ID {
				t.Fatalf("expected ascending ids across pages")
			}
		}
	})

	t.Run("ListSessionsRejectsForeignToken", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for assetID := uint64(1); assetID <= 3; assetID++ {
			if _, err := store.CreateSession(ctx, activeJob("owner-a", assetID)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		page, err := store.ListSessions(ctx, storage.ListSessionsRequest{Owner: "owner-a", PageSize: 1})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.NextPageToken == "" {
			t.Fatalf("expected a next page token")
		}

		_, err = store.ListSessions(ctx, storage.ListSessionsRequest{Owner: "owner-b", PageSize: 1, PageToken: page.NextPageToken})
		if err == nil {
			t.Fatalf("expected error for token reused with a different filter")
		}
	})

	t.Run("Snapshots", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		game, err := store.CreateSession(ctx, activeGame("owner-a", 1))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.CreateSession(ctx, activeJob("owner-a", 2)); err != nil {
			t.Fatalf("create: %v", err)
		}
		result := storage.ResultRecord{SessionID: game.ID, AssetID: 1, Owner: "owner-a", Kind: game.Kind, Difficulty: game.Difficulty, Score: 500, Coins: 30, Experience: 15, SeedHeight: 40, CompletedHeight: 40}
		if _, err := store.CompleteSession(ctx, game.ID, 40, &result); err != nil {
			t.Fatalf("complete: %v", err)
		}

		sessions, err := store.SnapshotSessions(ctx)
		if err != nil {
			t.Fatalf("snapshot sessions: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}
		for i := 1; i < len(sessions); i++ {
			if sessions[i].ID <= sessions[i-1].ID {
				t.Fatalf("expected ascending snapshot order")
			}
		}

		results, err := store.SnapshotResults(ctx)
		if err != nil {
			t.Fatalf("snapshot results: %v", err)
		}
		if len(results) != 1 || results[0].SessionID != game.ID {
			t.Fatalf("expected one result for session %d, got %+v", game.ID, results)
		}
	})

	t.Run("RestoreKeepsIdentity", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		snapshot := activeJob("owner-a", 5)
		snapshot.ID = 7
		if err := store.RestoreSession(ctx, snapshot); err != nil {
			t.Fatalf("restore: %v", err)
		}

		restored, err := store.GetSession(ctx, 7)
		if err != nil {
			t.Fatalf("get restored: %v", err)
		}
		if restored.Owner != snapshot.Owner || restored.AssetID != snapshot.AssetID {
			t.Fatalf("restored session lost identity: %+v", restored)
		}

		if err := store.RestoreSession(ctx, snapshot); err == nil {
			t.Fatal("expected duplicate id to be rejected")
		}
		missingID := activeJob("owner-a", 6)
		if err := store.RestoreSession(ctx, missingID); err == nil {
			t.Fatal("expected zero id to be rejected")
		}

		created, err := store.CreateSession(ctx, activeJob("owner-b", 9))
		if err != nil {
			t.Fatalf("create after restore: %v", err)
		}
		if created.ID <= 7 {
			t.Fatalf("expected id sequence past restored id, got %d", created.ID)
		}
	})

	t.Run("Statistics", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		game, err := store.CreateSession(ctx, activeGame("owner-a", 1))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		job, err := store.CreateSession(ctx, activeJob("owner-a", 2))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.CreateSession(ctx, activeJob("owner-b", 3)); err != nil {
			t.Fatalf("create: %v", err)
		}
		result := storage.ResultRecord{SessionID: game.ID, AssetID: 1, Owner: "owner-a", Kind: game.Kind, Difficulty: game.Difficulty, Score: 100, Coins: 3, Experience: 1, SeedHeight: 40, CompletedHeight: 40}
		if _, err := store.CompleteSession(ctx, game.ID, 40, &result); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if _, err := store.AbandonSession(ctx, job.ID, 41); err != nil {
			t.Fatalf("abandon: %v", err)
		}

		stats, err := store.Statistics(ctx)
		if err != nil {
			t.Fatalf("statistics: %v", err)
		}
		want := storage.ActivityStatistics{TotalCount: 3, ActiveCount: 1, CompletedCount: 1, AbandonedCount: 1, ResultCount: 1}
		if stats != want {
			t.Fatalf("expected %+v, got %+v", want, stats)
		}
	})

	t.Run("Transitions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		records := []storage.TransitionRecord{
			{ID: "t-1", SessionID: 1, AssetID: 7, Owner: "owner-a", Action: "START", ToStatus: session.StatusActive, Height: 10},
			{ID: "t-2", SessionID: 2, AssetID: 8, Owner: "owner-b", Action: "START", ToStatus: session.StatusActive, Height: 11},
			{ID: "t-3", SessionID: 1, AssetID: 7, Owner: "owner-a", Action: "COMPLETE", ToStatus: session.StatusCompleted, Height: 120, Coins: 20, Experience: 10},
		}
		for _, rec := range records {
			if err := store.InsertTransition(ctx, rec); err != nil {
				t.Fatalf("insert transition: %v", err)
			}
		}

		all, err := store.ListTransitions(ctx, 0)
		if err != nil {
			t.Fatalf("list transitions: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 transitions, got %d", len(all))
		}

		forSession, err := store.ListTransitions(ctx, 1)
		if err != nil {
			t.Fatalf("list transitions: %v", err)
		}
		if len(forSession) != 2 {
			t.Fatalf("expected 2 transitions for session 1, got %d", len(forSession))
		}
		if forSession[0].Action != "START" || forSession[1].Action != "COMPLETE" {
			t.Fatalf("expected oldest-first order, got %+v", forSession)
		}
	})
}

// activeJob builds a deadline-lifecycle session ready for CreateSession.
func activeJob(owner string, assetID uint64) session.Session {
	return session.Session{
		Owner:       owner,
		AssetID:     assetID,
		Kind:        session.KindMining,
		Status:      session.StatusActive,
		StartHeight: 10,
		EndHeight:   110,
	}
}

// activeGame builds a score-lifecycle session ready for CreateSession.
func activeGame(owner string, assetID uint64) session.Session {
	return session.Session{
		Owner:       owner,
		AssetID:     assetID,
		Kind:        session.KindDash,
		Difficulty:  session.DifficultyNormal,
		Status:      session.StatusActive,
		StartHeight: 10,
	}
}
