package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/fluxbuf/pkg/api"
)

type runSession struct {
	run     string
	session api.Entity
}

// InMemoryEventStore is a goroutine-safe EventStore backed by a map of
// per-session slices, scoped by run.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[runSession][]api.BufferEvent
}

// NewInMemoryEventStore creates an empty InMemoryEventStore.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[runSession][]api.BufferEvent),
	}
}

var _ EventStore = (*InMemoryEventStore)(nil)

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.BufferEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := runSession{run: ev.Run, session: ev.Session}
	s.events[k] = append(s.events[k], ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, run string, session api.Entity) ([]api.BufferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events[runSession{run: run, session: session}]), nil
}

// Len returns the total number of stored events across all sessions.
func (s *InMemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, evs := range s.events {
		n += len(evs)
	}
	return n
}
