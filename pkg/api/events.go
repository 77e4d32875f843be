package api

import "time"

// BufferUpdate is the deferred notification emitted when a mutable buffer
// guard is released after a modification.
type BufferUpdate struct {
	Buffer  Entity
	Session Entity

	// ExcludedAccessor is the node that must not be woken by this update.
	// It is the zero Entity when closed loops were allowed.
	ExcludedAccessor Entity
}

// Excludes reports whether listener must be skipped for this update.
func (u BufferUpdate) Excludes(listener Entity) bool {
	return !u.ExcludedAccessor.IsZero() && u.ExcludedAccessor == listener
}

// EventType identifies a buffer history event.
type EventType string

const (
	EventBufferUpdated      EventType = "buffer.updated"
	EventListenerWoken      EventType = "listener.woken"
	EventListenerSuppressed EventType = "listener.suppressed"
	EventGateOpened         EventType = "gate.opened"
	EventGateClosed         EventType = "gate.closed"
	EventSessionCleared     EventType = "session.cleared"
	EventKeyReleased        EventType = "key.released"
)

// BufferEvent is a minimal append-only history record for audit/debugging.
// It never carries buffer contents.
//
// Entities are only unique within one World, so history is scoped by Run,
// the id of the World that recorded the event.
type BufferEvent struct {
	ID   string
	Run  string
	At   time.Time
	Type EventType

	Buffer   Entity
	Session  Entity
	Accessor Entity

	// Small, human-oriented details (e.g. number of values released).
	Detail string
}
