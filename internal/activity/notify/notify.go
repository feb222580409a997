// Package notify dispatches session transition events to registered hooks.
//
// The registry is an explicit table owned by the engine: hooks are added and
// removed only through Register and Deregister, iteration order is
// deterministic (priority ascending, then registration order), and every
// mutation bumps a version counter so observers can detect table changes.
// Hook failures are reported to the emitter and never veto a transition.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/burrowworks/critterledger/internal/activity/session"
)

var (
	// ErrRegistryRequired indicates a missing registry.
	ErrRegistryRequired = errors.New("notify registry is required")
	// ErrHookNameRequired indicates a missing hook name.
	ErrHookNameRequired = errors.New("hook name is required")
	// ErrHookRequired indicates a missing hook function.
	ErrHookRequired = errors.New("hook is required")
	// ErrHookAlreadyRegistered indicates a duplicate hook registration.
	ErrHookAlreadyRegistered = errors.New("hook already registered")
	// ErrHookNotRegistered indicates a deregistration of an unknown hook.
	ErrHookNotRegistered = errors.New("hook is not registered")
)

// Event types emitted after each successful transition.
const (
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
	EventSessionAbandoned = "session.abandoned"
)

// Event describes one committed session transition.
// Coins and Experience are zero except for completions that paid out.
type Event struct {
	Type       string
	SessionID  uint64
	AssetID    uint64
	Owner      string
	Status     session.Status
	Coins      uint64
	Experience uint64
	Height     uint64
}

// Hook consumes one transition event. Returned errors are collected by Emit
// and surfaced to the caller; they do not affect the transition outcome.
type Hook func(ctx context.Context, evt Event) error

type hookEntry struct {
	name     string
	priority int
	seq      uint64
	hook     Hook
}

// Registry manages registered transition hooks.
type Registry struct {
	mu      sync.Mutex
	entries []hookEntry
	nextSeq uint64
	version uint64
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named hook at the given priority. Lower priorities run
// first; hooks sharing a priority run in registration order.
func (r *Registry) Register(name string, priority int, hook Hook) error {
	if r == nil {
		return ErrRegistryRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrHookNameRequired
	}
	if hook == nil {
		return ErrHookRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.name == name {
			return fmt.Errorf("%w: %s", ErrHookAlreadyRegistered, name)
		}
	}
	r.entries = append(r.entries, hookEntry{
		name:     name,
		priority: priority,
		seq:      r.nextSeq,
		hook:     hook,
	})
	r.nextSeq++
	r.version++
	return nil
}

// Deregister removes the named hook.
func (r *Registry) Deregister(name string) error {
	if r == nil {
		return ErrRegistryRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrHookNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.entries {
		if entry.name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.version++
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHookNotRegistered, name)
}

// Version returns the table version. It increments on every successful
// Register and Deregister.
func (r *Registry) Version() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Names returns registered hook names in dispatch order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	names := make([]string, len(snapshot))
	for i, entry := range snapshot {
		names[i] = entry.name
	}
	return names
}

// Emit invokes every registered hook with the event, in dispatch order.
// The hook table is snapshotted first, so hooks may mutate the registry.
// Errors from hooks are joined and returned; the caller decides how to
// report them.
func (r *Registry) Emit(ctx context.Context, evt Event) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	var errs []error
	for _, entry := range snapshot {
		if err := entry.hook(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", entry.name, err))
		}
	}
	return errors.Join(errs...)
}

// snapshotLocked returns entries sorted by (priority asc, seq asc).
// Callers must hold r.mu.
func (r *Registry) snapshotLocked() []hookEntry {
	snapshot := make([]hookEntry, len(r.entries))
	copy(snapshot, r.entries)
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].priority != snapshot[j].priority {
			return snapshot[i].priority < snapshot[j].priority
		}
		return snapshot[i].seq < snapshot[j].seq
	})
	return snapshot
}
