// Package storage defines the persistence interfaces for the activity
// ledger.
//
// It provides a high-level abstraction for storing session lifecycle state,
// the active indices derived from it, mini-game result records, and the
// transition audit trail. Implementations of these interfaces (in-memory,
// SQLite) live in subpackages.
//
// # Error Types
//
// The package defines common error types used across storage
// implementations:
//   - ErrNotFound: Indicates a requested record is missing.
//   - ErrAssetBusy: Indicates a conflict with the one-active-session-per-asset rule.
//   - ErrSessionFinished: Indicates a write targeted a terminal session.
package storage
