// Package chain defines the capability interfaces the activity engine
// consumes from its host ledger runtime.
//
// The engine never reaches into host state directly: ownership lookups,
// reward payouts, verifiable randomness, and block height all arrive through
// these narrow interfaces, so deployments wire the real runtime and tests
// wire fakes. Each mutate operation is expected to be atomic and safe under
// transition retry; the host discards module state when a transition fails.
package chain

import (
	"context"
	"encoding/binary"
)

// Seed is a verifiable randomness seed derived from committed chain state.
type Seed [32]byte

// Uint64 folds the first eight bytes of the seed into an unsigned integer,
// the form reward variance terms consume.
func (s Seed) Uint64() uint64 {
	return binary.BigEndian.Uint64(s[:8])
}

// AssetRegistry resolves critter ownership and accumulates experience.
type AssetRegistry interface {
	// OwnerOf returns the owning account of an asset. ok is false when the
	// asset does not exist.
	OwnerOf(ctx context.Context, assetID uint64) (owner string, ok bool, err error)

	// CreditExperience adds experience to an asset.
	CreditExperience(ctx context.Context, assetID uint64, amount uint64) error
}

// CoinLedger pays out activity rewards. Whether a credit mints or transfers
// from a reserve is host policy.
type CoinLedger interface {
	Credit(ctx context.Context, owner string, amount uint64) error
}

// RandomnessBeacon derives seeds from entropy already committed on chain, so
// every replica replaying the same transition observes the same seed.
type RandomnessBeacon interface {
	// Random returns the seed for a subject and the height of the block
	// whose entropy produced it.
	Random(ctx context.Context, subject []byte) (Seed, uint64, error)
}

// HeightSource reports the current block height: monotonically increasing,
// read-only to the engine.
type HeightSource interface {
	Height(ctx context.Context) (uint64, error)
}

// SessionSubject builds the beacon subject bytes for a session, namespaced
// so other modules drawing from the same beacon cannot collide.
func SessionSubject(sessionID uint64) []byte {
	subject := make([]byte, 0, len(sessionSubjectPrefix)+8)
	subject = append(subject, sessionSubjectPrefix...)
	subject = binary.BigEndian.AppendUint64(subject, sessionID)
	return subject
}

const sessionSubjectPrefix = "activity/session/"
