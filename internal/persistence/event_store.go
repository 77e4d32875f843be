// Package persistence holds the append-only history of buffer events.
//
// History is advisory: the buffer core never reads it back, so a failing
// store degrades observability but never buffer semantics.
package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown event store backend")

// EventStore is an append-only history store for buffer events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.BufferEvent) error
	// ListEvents returns the events recorded for session by the World with
	// the given run id, in append order.
	ListEvents(ctx context.Context, run string, session api.Entity) ([]api.BufferEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.BufferEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, run string, session api.Entity) ([]api.BufferEvent, error) {
	return nil, nil
}
