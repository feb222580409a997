package notify

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/burrowworks/critterledger/internal/activity/session"
)

func recordHook(order *[]string, name string) Hook {
	return func(ctx context.Context, evt Event) error {
		*order = append(*order, name)
		return nil
	}
}

func TestEmitDispatchOrder(t *testing.T) {
	registry := NewRegistry()
	var order []string

	if err := registry.Register("indexer", 10, recordHook(&order, "indexer")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("scoreboard", 5, recordHook(&order, "scoreboard")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("audit", 10, recordHook(&order, "audit")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Emit(context.Background(), Event{Type: EventSessionStarted}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	want := []string{"scoreboard", "indexer", "audit"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected dispatch order %v, got %v", want, order)
	}
	if names := registry.Names(); !reflect.DeepEqual(names, want) {
		t.Fatalf("expected names %v, got %v", want, names)
	}
}

func TestRegisterValidation(t *testing.T) {
	registry := NewRegistry()
	noop := func(ctx context.Context, evt Event) error { return nil }

	if err := registry.Register("  ", 0, noop); !errors.Is(err, ErrHookNameRequired) {
		t.Fatalf("expected ErrHookNameRequired, got %v", err)
	}
	if err := registry.Register("indexer", 0, nil); !errors.Is(err, ErrHookRequired) {
		t.Fatalf("expected ErrHookRequired, got %v", err)
	}
	if err := registry.Register("indexer", 0, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("indexer", 3, noop); !errors.Is(err, ErrHookAlreadyRegistered) {
		t.Fatalf("expected ErrHookAlreadyRegistered, got %v", err)
	}
}

func TestDeregister(t *testing.T) {
	registry := NewRegistry()
	var order []string

	if err := registry.Register("indexer", 0, recordHook(&order, "indexer")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Deregister("indexer"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if err := registry.Deregister("indexer"); !errors.Is(err, ErrHookNotRegistered) {
		t.Fatalf("expected ErrHookNotRegistered, got %v", err)
	}

	if err := registry.Emit(context.Background(), Event{Type: EventSessionAbandoned}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected no dispatches, got %v", order)
	}
}

func TestVersionBumpsOnMutation(t *testing.T) {
	registry := NewRegistry()
	noop := func(ctx context.Context, evt Event) error { return nil }

	if got := registry.Version(); got != 0 {
		t.Fatalf("expected version 0, got %d", got)
	}
	if err := registry.Register("indexer", 0, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := registry.Version(); got != 1 {
		t.Fatalf("expected version 1, got %d", got)
	}

	// Failed mutations leave the version untouched.
	if err := registry.Register("indexer", 0, noop); err == nil {
		t.Fatal("expected duplicate error")
	}
	if got := registry.Version(); got != 1 {
		t.Fatalf("expected version 1 after failed register, got %d", got)
	}

	if err := registry.Deregister("indexer"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if got := registry.Version(); got != 2 {
		t.Fatalf("expected version 2, got %d", got)
	}
}

func TestEmitCollectsHookErrors(t *testing.T) {
	registry := NewRegistry()
	var order []string

	if err := registry.Register("broken", 0, func(ctx context.Context, evt Event) error {
		order = append(order, "broken")
		return errors.New("downstream offline")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("indexer", 1, recordHook(&order, "indexer")); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := registry.Emit(context.Background(), Event{
		Type:      EventSessionCompleted,
		SessionID: 7,
		Status:    session.StatusCompleted,
	})
	if err == nil {
		t.Fatal("expected joined hook error")
	}
	if !strings.Contains(err.Error(), "hook broken: downstream offline") {
		t.Fatalf("expected hook name in error, got %v", err)
	}

	want := []string{"broken", "indexer"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected both hooks to run, got %v", order)
	}
}

func TestEmitSnapshotAllowsMutation(t *testing.T) {
	registry := NewRegistry()
	var order []string

	if err := registry.Register("bootstrap", 0, func(ctx context.Context, evt Event) error {
		order = append(order, "bootstrap")
		return registry.Register("late", 1, recordHook(&order, "late"))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Emit(context.Background(), Event{Type: EventSessionStarted}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"bootstrap"}) {
		t.Fatalf("expected only bootstrap this round, got %v", order)
	}

	if err := registry.Emit(context.Background(), Event{Type: EventSessionStarted}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"bootstrap", "bootstrap", "late"}) {
		t.Fatalf("expected late hook on second emit, got %v", order)
	}
}

func TestNilRegistry(t *testing.T) {
	var registry *Registry

	if err := registry.Register("indexer", 0, func(ctx context.Context, evt Event) error { return nil }); !errors.Is(err, ErrRegistryRequired) {
		t.Fatalf("expected ErrRegistryRequired, got %v", err)
	}
	if err := registry.Deregister("indexer"); !errors.Is(err, ErrRegistryRequired) {
		t.Fatalf("expected ErrRegistryRequired, got %v", err)
	}
	if err := registry.Emit(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil emit, got %v", err)
	}
	if got := registry.Version(); got != 0 {
		t.Fatalf("expected version 0, got %d", got)
	}
	if names := registry.Names(); names != nil {
		t.Fatalf("expected nil names, got %v", names)
	}
}
