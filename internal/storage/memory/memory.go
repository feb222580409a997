// Package memory provides an in-memory store for tests and the in-process
// scenario runner.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/cursor"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store keeps all records in process memory. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	nextID      uint64
	sessions    map[uint64]session.Session
	results     map[uint64]storage.ResultRecord
	transitions []storage.TransitionRecord
}

// New returns an empty store. Session ids start at 1.
func New() *Store {
	return &Store{
		nextID:   1,
		sessions: make(map[uint64]session.Session),
		results:  make(map[uint64]storage.ResultRecord),
	}
}

// CreateSession persists a new active session, allocating its id.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.AssetID == sess.AssetID && existing.Status == session.StatusActive {
			return session.Session{}, storage.ErrAssetBusy
		}
	}

	sess.ID = s.nextID
	s.nextID++
	s.sessions[sess.ID] = cloneSession(sess)
	return cloneSession(sess), nil
}

// RestoreSession inserts a session preserving its id, for rebuilding a
// store from a snapshot. The id allocator advances past restored ids.
func (s *Store) RestoreSession(ctx context.Context, sess session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.ID == 0 {
		return fmt.Errorf("restore session: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("restore session: id %d already present", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	if sess.ID >= s.nextID {
		s.nextID = sess.ID + 1
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id uint64) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return cloneSession(sess), nil
}

// ActiveSessionForAsset retrieves the active session enrolling an asset.
func (s *Store) ActiveSessionForAsset(ctx context.Context, assetID uint64) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.AssetID == assetID && sess.Status == session.StatusActive {
			return cloneSession(sess), nil
		}
	}
	return session.Session{}, storage.ErrNotFound
}

// CountActiveForOwner returns how many sessions the owner has active.
func (s *Store) CountActiveForOwner(ctx context.Context, owner string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sess := range s.sessions {
		if sess.Owner == owner && sess.Status == session.StatusActive {
			count++
		}
	}
	return count, nil
}

// ListActiveForOwner returns the owner's active sessions ordered by id.
func (s *Store) ListActiveForOwner(ctx context.Context, owner string) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []session.Session
	for _, sess := range s.sessions {
		if sess.Owner == owner && sess.Status == session.StatusActive {
			active = append(active, cloneSession(sess))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

// CompleteSession atomically marks a session completed and persists its
// result record when one is supplied.
func (s *Store) CompleteSession(ctx context.Context, id uint64, finishedHeight uint64, result *storage.ResultRecord) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	if sess.Status.Terminal() {
		return session.Session{}, storage.ErrSessionFinished
	}

	sess.Status = session.StatusCompleted
	sess.FinishedHeight = finishedHeight
	if result != nil {
		score := result.Score
		sess.Score = &score
		s.results[id] = *result
	}
	s.sessions[id] = cloneSession(sess)
	return cloneSession(sess), nil
}

// AbandonSession atomically marks a session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id uint64, finishedHeight uint64) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	if sess.Status.Terminal() {
		return session.Session{}, storage.ErrSessionFinished
	}

	sess.Status = session.StatusAbandoned
	sess.FinishedHeight = finishedHeight
	s.sessions[id] = cloneSession(sess)
	return cloneSession(sess), nil
}

// ListSessions returns a page of sessions matching the request.
func (s *Store) ListSessions(ctx context.Context, req storage.ListSessionsRequest) (storage.SessionPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionPage{}, err
	}
	pageSize := normalizePageSize(req.PageSize)
	filterKey := req.FilterKey()

	lastID := uint64(0)
	if req.PageToken != "" {
		c, err := cursor.Decode(req.PageToken)
		if err != nil {
			return storage.SessionPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.ValidateFilterHash(c, filterKey); err != nil {
			return storage.SessionPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		lastID = c.LastID
	}

	s.mu.RLock()
	var matched []session.Session
	for _, sess := range s.sessions {
		if sess.ID <= lastID {
			continue
		}
		if !matchesList(sess, req) {
			continue
		}
		matched = append(matched, cloneSession(sess))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page := storage.SessionPage{}
	if len(matched) > pageSize {
		page.Sessions = matched[:pageSize]
		token, err := cursor.Encode(cursor.NewNextPageCursor(page.Sessions[pageSize-1].ID, filterKey))
		if err != nil {
			return storage.SessionPage{}, err
		}
		page.NextPageToken = token
	} else {
		page.Sessions = matched
	}
	return page, nil
}

// SnapshotSessions returns every session ordered by id ascending.
func (s *Store) SnapshotSessions(ctx context.Context) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, cloneSession(sess))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// GetResult retrieves the result record of a completed mini-game.
func (s *Store) GetResult(ctx context.Context, sessionID uint64) (storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ResultRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[sessionID]
	if !ok {
		return storage.ResultRecord{}, storage.ErrNotFound
	}
	return result, nil
}

// SnapshotResults returns every result record ordered by session id.
func (s *Store) SnapshotResults(ctx context.Context) ([]storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]storage.ResultRecord, 0, len(s.results))
	for _, result := range s.results {
		all = append(all, result)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SessionID < all[j].SessionID })
	return all, nil
}

// Statistics returns aggregate session counts.
func (s *Store) Statistics(ctx context.Context) (storage.ActivityStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityStatistics{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := storage.ActivityStatistics{
		TotalCount:  int64(len(s.sessions)),
		ResultCount: int64(len(s.results)),
	}
	for _, sess := range s.sessions {
		switch sess.Status {
		case session.StatusActive:
			stats.ActiveCount++
		case session.StatusCompleted:
			stats.CompletedCount++
		case session.StatusAbandoned:
			stats.AbandonedCount++
		}
	}
	return stats, nil
}

// InsertTransition appends a transition record to the audit trail.
func (s *Store) InsertTransition(ctx context.Context, rec storage.TransitionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions = append(s.transitions, rec)
	return nil
}

// ListTransitions returns transitions for a session ordered oldest first.
func (s *Store) ListTransitions(ctx context.Context, sessionID uint64) ([]storage.TransitionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []storage.TransitionRecord
	for _, rec := range s.transitions {
		if sessionID != 0 && rec.SessionID != sessionID {
			continue
		}
		matched = append(matched, rec)
	}
	return matched, nil
}

// Close releases nothing; it exists to satisfy storage.Store.
func (s *Store) Close() error {
	return nil
}

func matchesList(sess session.Session, req storage.ListSessionsRequest) bool {
	if req.Owner != "" && sess.Owner != req.Owner {
		return false
	}
	if req.AssetID != 0 && sess.AssetID != req.AssetID {
		return false
	}
	if req.Status != session.StatusUnspecified && sess.Status != req.Status {
		return false
	}
	return true
}

func normalizePageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

func cloneSession(s session.Session) session.Session {
	if s.Score != nil {
		score := *s.Score
		s.Score = &score
	}
	return s
}
