// Package telemetry records transition audit events for incident analysis.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/platform/id"
	"github.com/burrowworks/critterledger/internal/storage"
)

// Transition action names recorded with each audit event.
const (
	ActionStart    = "START"
	ActionComplete = "COMPLETE"
	ActionAbandon  = "ABANDON"
)

// Transition describes one committed session transition.
type Transition struct {
	Action     string
	SessionID  uint64
	AssetID    uint64
	Owner      string
	ToStatus   session.Status
	Height     uint64
	Coins      uint64
	Experience uint64
}

// Emitter records transition audit events.
type Emitter struct {
	store storage.TelemetryStore
	newID func() (string, error)
}

// NewEmitter creates a new transition audit emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, newID: id.NewID}
}

// Emit records a transition audit event. It is a no-op when the store is nil.
// The otel span on ctx, when valid, contributes trace correlation ids.
func (e *Emitter) Emit(ctx context.Context, t Transition) error {
	if e == nil || e.store == nil {
		return nil
	}
	newID := e.newID
	if newID == nil {
		newID = id.NewID
	}
	recordID, err := newID()
	if err != nil {
		return err
	}

	var traceID, spanID string
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
		spanID = sc.SpanID().String()
	}

	return e.store.InsertTransition(ctx, storage.TransitionRecord{
		ID:         recordID,
		SessionID:  t.SessionID,
		AssetID:    t.AssetID,
		Owner:      t.Owner,
		Action:     t.Action,
		ToStatus:   t.ToStatus,
		Height:     t.Height,
		Coins:      t.Coins,
		Experience: t.Experience,
		TraceID:    traceID,
		SpanID:     spanID,
	})
}
