// Package sqlite provides the SQLite-backed store for activity ledger
// state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/session"
	sqlitemigrate "github.com/burrowworks/critterledger/internal/platform/storage/sqlitemigrate"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/cursor"
	"github.com/burrowworks/critterledger/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	sessionColumns = "id, owner, asset_id, kind, difficulty, status, start_height, end_height, finished_height, score"
	resultColumns  = "session_id, asset_id, owner, kind, difficulty, score, coins, experience, seed_height, completed_height"
)

// Store provides SQLite-backed persistence for activity ledger state.
type Store struct {
	sqlDB *sql.DB
}

// Open opens an activity ledger SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// CreateSession persists a new active session, allocating its id from the
// session sequence in the same transaction.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Session{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("begin session create: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session create: %v", cause, rollbackErr)
		}
		return cause
	}

	var busy int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE asset_id = ? AND status = 'ACTIVE'`,
		int64(sess.AssetID),
	).Scan(&busy); err != nil {
		return session.Session{}, rollbackWith(fmt.Errorf("check active asset: %w", err))
	}
	if busy > 0 {
		return session.Session{}, rollbackWith(storage.ErrAssetBusy)
	}

	var nextID int64
	if err := tx.QueryRowContext(ctx, `SELECT next_id FROM session_seq WHERE id = 1`).Scan(&nextID); err != nil {
		return session.Session{}, rollbackWith(fmt.Errorf("read session sequence: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE session_seq SET next_id = next_id + 1 WHERE id = 1`); err != nil {
		return session.Session{}, rollbackWith(fmt.Errorf("advance session sequence: %w", err))
	}
	sess.ID = uint64(nextID)

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		int64(sess.ID),
		sess.Owner,
		int64(sess.AssetID),
		session.KindLabel(sess.Kind),
		difficultyParam(sess.Difficulty),
		session.StatusLabel(sess.Status),
		int64(sess.StartHeight),
		int64(sess.EndHeight),
		int64(sess.FinishedHeight),
		scoreParam(sess.Score),
	); err != nil {
		if isUniqueConstraintError(err) {
			return session.Session{}, rollbackWith(storage.ErrAssetBusy)
		}
		return session.Session{}, rollbackWith(fmt.Errorf("insert session: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("commit session create: %w", err)
	}
	return sess, nil
}

// RestoreSession inserts a session under its original id and advances the
// session sequence past it. Used to rebuild a store from exported state.
func (s *Store) RestoreSession(ctx context.Context, sess session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if sess.ID == 0 {
		return fmt.Errorf("restore session: id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session restore: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session restore: %v", cause, rollbackErr)
		}
		return cause
	}

	var present int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE id = ?`, int64(sess.ID),
	).Scan(&present); err != nil {
		return rollbackWith(fmt.Errorf("check session id: %w", err))
	}
	if present > 0 {
		return rollbackWith(fmt.Errorf("restore session: id %d already present", sess.ID))
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		int64(sess.ID),
		sess.Owner,
		int64(sess.AssetID),
		session.KindLabel(sess.Kind),
		difficultyParam(sess.Difficulty),
		session.StatusLabel(sess.Status),
		int64(sess.StartHeight),
		int64(sess.EndHeight),
		int64(sess.FinishedHeight),
		scoreParam(sess.Score),
	); err != nil {
		if isUniqueConstraintError(err) {
			return rollbackWith(storage.ErrAssetBusy)
		}
		return rollbackWith(fmt.Errorf("insert session: %w", err))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE session_seq SET next_id = ? WHERE id = 1 AND next_id <= ?`,
		int64(sess.ID+1), int64(sess.ID),
	); err != nil {
		return rollbackWith(fmt.Errorf("advance session sequence: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session restore: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id uint64) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Session{}, fmt.Errorf("storage is not configured")
	}
	return getSessionRow(ctx, s.sqlDB, `
SELECT `+sessionColumns+` FROM sessions WHERE id = ?
`, int64(id))
}

// ActiveSessionForAsset retrieves the active session enrolling an asset.
func (s *Store) ActiveSessionForAsset(ctx context.Context, assetID uint64) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Session{}, fmt.Errorf("storage is not configured")
	}
	return getSessionRow(ctx, s.sqlDB, `
SELECT `+sessionColumns+` FROM sessions WHERE asset_id = ? AND status = 'ACTIVE'
`, int64(assetID))
}

// CountActiveForOwner returns how many sessions the owner has active.
func (s *Store) CountActiveForOwner(ctx context.Context, owner string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM sessions WHERE owner = ? AND status = 'ACTIVE'
`, owner).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// ListActiveForOwner returns the owner's active sessions ordered by id.
func (s *Store) ListActiveForOwner(ctx context.Context, owner string) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM sessions WHERE owner = ? AND status = 'ACTIVE' ORDER BY id ASC
`, owner)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// CompleteSession atomically marks a session completed and persists the
// result record when one is supplied.
func (s *Store) CompleteSession(ctx context.Context, id uint64, finishedHeight uint64, result *storage.ResultRecord) (session.Session, error) {
	return s.finishSession(ctx, id, session.StatusCompleted, finishedHeight, result)
}

// AbandonSession atomically marks a session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id uint64, finishedHeight uint64) (session.Session, error) {
	return s.finishSession(ctx, id, session.StatusAbandoned, finishedHeight, nil)
}

func (s *Store) finishSession(ctx context.Context, id uint64, target session.Status, finishedHeight uint64, result *storage.ResultRecord) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Session{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("begin session finish: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session finish: %v", cause, rollbackErr)
		}
		return cause
	}

	current, err := getSessionRow(ctx, tx, `
SELECT `+sessionColumns+` FROM sessions WHERE id = ?
`, int64(id))
	if err != nil {
		return session.Session{}, rollbackWith(err)
	}
	if current.Status.Terminal() {
		return session.Session{}, rollbackWith(storage.ErrSessionFinished)
	}

	updated := current
	updated.Status = target
	updated.FinishedHeight = finishedHeight
	if result != nil {
		score := result.Score
		updated.Score = &score
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET status = ?, finished_height = ?, score = ? WHERE id = ?
`,
		session.StatusLabel(updated.Status),
		int64(updated.FinishedHeight),
		scoreParam(updated.Score),
		int64(id),
	); err != nil {
		return session.Session{}, rollbackWith(fmt.Errorf("update session: %w", err))
	}

	if result != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO results (`+resultColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			int64(result.SessionID),
			int64(result.AssetID),
			result.Owner,
			session.KindLabel(result.Kind),
			difficultyParam(result.Difficulty),
			int64(result.Score),
			int64(result.Coins),
			int64(result.Experience),
			int64(result.SeedHeight),
			int64(result.CompletedHeight),
		); err != nil {
			return session.Session{}, rollbackWith(fmt.Errorf("insert result: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("commit session finish: %w", err)
	}
	return updated, nil
}

// ListSessions returns a page of sessions matching the request.
func (s *Store) ListSessions(ctx context.Context, req storage.ListSessionsRequest) (storage.SessionPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionPage{}, fmt.Errorf("storage is not configured")
	}

	pageSize := normalizePageSize(req.PageSize)
	filterKey := req.FilterKey()
	lastID, err := decodePageToken(req.PageToken, filterKey)
	if err != nil {
		return storage.SessionPage{}, err
	}

	var conds []string
	var args []any
	if req.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, req.Owner)
	}
	if req.AssetID != 0 {
		conds = append(conds, "asset_id = ?")
		args = append(args, int64(req.AssetID))
	}
	if req.Status != session.StatusUnspecified {
		conds = append(conds, "status = ?")
		args = append(args, session.StatusLabel(req.Status))
	}
	if lastID > 0 {
		conds = append(conds, "id > ?")
		args = append(args, int64(lastID))
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.SessionPage{}, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := collectSessions(rows)
	if err != nil {
		return storage.SessionPage{}, err
	}
	return buildSessionPage(sessions, pageSize, filterKey)
}

// SearchSessions evaluates a translated filter clause against the sessions
// table.
func (s *Store) SearchSessions(ctx context.Context, req storage.SearchSessionsRequest) (storage.SessionPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionPage{}, fmt.Errorf("storage is not configured")
	}

	pageSize := normalizePageSize(req.PageSize)
	filterKey := req.FilterClause + "|" + fmt.Sprint(req.FilterParams...)
	lastID, err := decodePageToken(req.PageToken, filterKey)
	if err != nil {
		return storage.SessionPage{}, err
	}

	var conds []string
	var args []any
	if strings.TrimSpace(req.FilterClause) != "" {
		conds = append(conds, "("+req.FilterClause+")")
		args = append(args, req.FilterParams...)
	}
	if lastID > 0 {
		conds = append(conds, "id > ?")
		args = append(args, int64(lastID))
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.SessionPage{}, fmt.Errorf("search sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := collectSessions(rows)
	if err != nil {
		return storage.SessionPage{}, err
	}
	return buildSessionPage(sessions, pageSize, filterKey)
}

// SnapshotSessions returns every session ordered by id ascending.
func (s *Store) SnapshotSessions(ctx context.Context) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM sessions ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("snapshot sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// GetResult retrieves the result record of a completed mini-game.
func (s *Store) GetResult(ctx context.Context, sessionID uint64) (storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ResultRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ResultRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+resultColumns+` FROM results WHERE session_id = ?
`, int64(sessionID))
	result, err := scanResult(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ResultRecord{}, storage.ErrNotFound
		}
		return storage.ResultRecord{}, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// SnapshotResults returns every result record ordered by session id.
func (s *Store) SnapshotResults(ctx context.Context) ([]storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+resultColumns+` FROM results ORDER BY session_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("snapshot results: %w", err)
	}
	defer rows.Close()

	var results []storage.ResultRecord
	for rows.Next() {
		result, err := scanResult(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return results, nil
}

// Statistics returns aggregate session counts.
func (s *Store) Statistics(ctx context.Context) (storage.ActivityStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityStatistics{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ActivityStatistics{}, fmt.Errorf("storage is not configured")
	}

	var stats storage.ActivityStatistics
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1),
       COALESCE(SUM(CASE WHEN status = 'ACTIVE' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'ABANDONED' THEN 1 ELSE 0 END), 0)
FROM sessions
`).Scan(&stats.TotalCount, &stats.ActiveCount, &stats.CompletedCount, &stats.AbandonedCount); err != nil {
		return storage.ActivityStatistics{}, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM results`).Scan(&stats.ResultCount); err != nil {
		return storage.ActivityStatistics{}, fmt.Errorf("count results: %w", err)
	}
	return stats, nil
}

// InsertTransition appends a transition record to the audit trail.
func (s *Store) InsertTransition(ctx context.Context, rec storage.TransitionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO transitions (id, session_id, asset_id, owner, action, to_status, height, coins, experience, trace_id, span_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.ID,
		int64(rec.SessionID),
		int64(rec.AssetID),
		rec.Owner,
		rec.Action,
		session.StatusLabel(rec.ToStatus),
		int64(rec.Height),
		int64(rec.Coins),
		int64(rec.Experience),
		rec.TraceID,
		rec.SpanID,
	); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns transitions for a session ordered oldest first.
func (s *Store) ListTransitions(ctx context.Context, sessionID uint64) ([]storage.TransitionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, asset_id, owner, action, to_status, height, coins, experience, trace_id, span_id
FROM transitions
WHERE ? = 0 OR session_id = ?
ORDER BY seq ASC
`, int64(sessionID), int64(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []storage.TransitionRecord
	for rows.Next() {
		var rec storage.TransitionRecord
		var recSessionID, assetID, height, coins, experience int64
		var toStatus string
		if err := rows.Scan(
			&rec.ID,
			&recSessionID,
			&assetID,
			&rec.Owner,
			&rec.Action,
			&toStatus,
			&height,
			&coins,
			&experience,
			&rec.TraceID,
			&rec.SpanID,
		); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		rec.SessionID = uint64(recSessionID)
		rec.AssetID = uint64(assetID)
		rec.Height = uint64(height)
		rec.Coins = uint64(coins)
		rec.Experience = uint64(experience)
		status, err := session.StatusFromLabel(toStatus)
		if err != nil {
			return nil, fmt.Errorf("parse transition status: %w", err)
		}
		rec.ToStatus = status
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition rows: %w", err)
	}
	return records, nil
}

type scanner func(dest ...any) error

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSessionRow(ctx context.Context, q rowQuerier, query string, args ...any) (session.Session, error) {
	row := q.QueryRowContext(ctx, query, args...)
	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, storage.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func scanSession(scan scanner) (session.Session, error) {
	var sess session.Session
	var id, assetID, startHeight, endHeight, finishedHeight int64
	var kind, status string
	var difficulty sql.NullString
	var score sql.NullInt64
	if err := scan(
		&id,
		&sess.Owner,
		&assetID,
		&kind,
		&difficulty,
		&status,
		&startHeight,
		&endHeight,
		&finishedHeight,
		&score,
	); err != nil {
		return session.Session{}, err
	}
	sess.ID = uint64(id)
	sess.AssetID = uint64(assetID)
	sess.StartHeight = uint64(startHeight)
	sess.EndHeight = uint64(endHeight)
	sess.FinishedHeight = uint64(finishedHeight)

	parsedKind, err := session.KindFromLabel(kind)
	if err != nil {
		return session.Session{}, fmt.Errorf("parse session kind: %w", err)
	}
	sess.Kind = parsedKind

	if difficulty.Valid {
		parsed, err := session.DifficultyFromLabel(difficulty.String)
		if err != nil {
			return session.Session{}, fmt.Errorf("parse session difficulty: %w", err)
		}
		sess.Difficulty = parsed
	}

	parsedStatus, err := session.StatusFromLabel(status)
	if err != nil {
		return session.Session{}, fmt.Errorf("parse session status: %w", err)
	}
	sess.Status = parsedStatus

	if score.Valid {
		value := uint32(score.Int64)
		sess.Score = &value
	}
	return sess, nil
}

func scanResult(scan scanner) (storage.ResultRecord, error) {
	var result storage.ResultRecord
	var sessionID, assetID, score, coins, experience, seedHeight, completedHeight int64
	var kind string
	var difficulty sql.NullString
	if err := scan(
		&sessionID,
		&assetID,
		&result.Owner,
		&kind,
		&difficulty,
		&score,
		&coins,
		&experience,
		&seedHeight,
		&completedHeight,
	); err != nil {
		return storage.ResultRecord{}, err
	}
	result.SessionID = uint64(sessionID)
	result.AssetID = uint64(assetID)
	result.Score = uint32(score)
	result.Coins = uint64(coins)
	result.Experience = uint64(experience)
	result.SeedHeight = uint64(seedHeight)
	result.CompletedHeight = uint64(completedHeight)

	parsedKind, err := session.KindFromLabel(kind)
	if err != nil {
		return storage.ResultRecord{}, fmt.Errorf("parse result kind: %w", err)
	}
	result.Kind = parsedKind
	if difficulty.Valid {
		parsed, err := session.DifficultyFromLabel(difficulty.String)
		if err != nil {
			return storage.ResultRecord{}, fmt.Errorf("parse result difficulty: %w", err)
		}
		result.Difficulty = parsed
	}
	return result, nil
}

func collectSessions(rows *sql.Rows) ([]session.Session, error) {
	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

func buildSessionPage(sessions []session.Session, pageSize int, filterKey string) (storage.SessionPage, error) {
	page := storage.SessionPage{}
	if len(sessions) > pageSize {
		page.Sessions = sessions[:pageSize]
		token, err := cursor.Encode(cursor.NewNextPageCursor(page.Sessions[pageSize-1].ID, filterKey))
		if err != nil {
			return storage.SessionPage{}, err
		}
		page.NextPageToken = token
	} else {
		page.Sessions = sessions
	}
	return page, nil
}

func decodePageToken(token, filterKey string) (uint64, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}
	c, err := cursor.Decode(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page token: %w", err)
	}
	if err := cursor.ValidateFilterHash(c, filterKey); err != nil {
		return 0, fmt.Errorf("invalid page token: %w", err)
	}
	return c.LastID, nil
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

func difficultyParam(d session.Difficulty) any {
	if d == session.DifficultyUnspecified {
		return nil
	}
	return session.DifficultyLabel(d)
}

func scoreParam(score *uint32) any {
	if score == nil {
		return nil
	}
	return int64(*score)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
