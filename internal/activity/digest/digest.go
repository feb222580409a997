// Package digest computes a canonical hash of session engine state.
//
// Two replicas that applied the same transitions produce the same digest.
// The encoding is deliberately simple: sections in a fixed order, each
// prefixed with its record count, every string length-prefixed, every
// integer big-endian. Enum fields hash as their labels so the digest
// survives internal renumbering.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/storage"
)

// Source provides the state snapshots the digest covers.
type Source interface {
	SnapshotSessions(ctx context.Context) ([]session.Session, error)
	SnapshotResults(ctx context.Context) ([]storage.ResultRecord, error)
	Statistics(ctx context.Context) (storage.ActivityStatistics, error)
}

// State hashes the full session state reachable through source and returns
// it as lowercase hex.
func State(ctx context.Context, source Source) (string, error) {
	sessions, err := source.SnapshotSessions(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot sessions: %w", err)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	results, err := source.SnapshotResults(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot results: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SessionID < results[j].SessionID })

	stats, err := source.Statistics(ctx)
	if err != nil {
		return "", fmt.Errorf("statistics: %w", err)
	}

	h := sha256.New()

	writeUint64(h, uint64(len(sessions)))
	for _, s := range sessions {
		writeSession(h, s)
	}

	writeUint64(h, uint64(len(results)))
	for _, r := range results {
		writeResult(h, r)
	}

	writeUint64(h, uint64(stats.TotalCount))
	writeUint64(h, uint64(stats.ActiveCount))
	writeUint64(h, uint64(stats.CompletedCount))
	writeUint64(h, uint64(stats.AbandonedCount))
	writeUint64(h, uint64(stats.ResultCount))

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeSession(h hash.Hash, s session.Session) {
	writeUint64(h, s.ID)
	writeString(h, s.Owner)
	writeUint64(h, s.AssetID)
	writeString(h, session.KindLabel(s.Kind))
	writeString(h, session.DifficultyLabel(s.Difficulty))
	writeString(h, session.StatusLabel(s.Status))
	writeUint64(h, s.StartHeight)
	writeUint64(h, s.EndHeight)
	writeUint64(h, s.FinishedHeight)
	if s.Score != nil {
		writeUint32(h, 1)
		writeUint32(h, *s.Score)
	} else {
		writeUint32(h, 0)
	}
}

func writeResult(h hash.Hash, r storage.ResultRecord) {
	writeUint64(h, r.SessionID)
	writeUint64(h, r.AssetID)
	writeString(h, r.Owner)
	writeString(h, session.KindLabel(r.Kind))
	writeString(h, session.DifficultyLabel(r.Difficulty))
	writeUint32(h, r.Score)
	writeUint64(h, r.Coins)
	writeUint64(h, r.Experience)
	writeUint64(h, r.SeedHeight)
	writeUint64(h, r.CompletedHeight)
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeUint32(h hash.Hash, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}
