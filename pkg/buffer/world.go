package buffer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/fluxbuf/internal/persistence"
	"github.com/petrijr/fluxbuf/internal/storage"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// Listener is woken by World.Flush when a buffer it listens on was updated.
// It runs on the flush goroutine and may access buffers through w; the
// effects it produces are applied at the following flush.
type Listener func(ctx context.Context, w *World, u api.BufferUpdate) error

type listenerEntry struct {
	node api.Entity
	fn   Listener
}

type bufferRecord struct {
	location  api.BufferLocation
	settings  api.BufferSettings
	storage   storage.Partitioned
	gate      *storage.GateState
	listeners []listenerEntry
}

// Config describes how to construct a World.
type Config struct {
	// Observer receives flush callbacks. Defaults to api.NoopObserver.
	Observer api.Observer
	// Events records buffer history. Nil disables history.
	Events persistence.EventStore
	// Clock stamps history events. Defaults to time.Now.
	Clock func() time.Time
	// RunID scopes recorded history to this World. Defaults to a random
	// UUID.
	RunID string
}

// World is the arena that owns every buffer, its per-session storage and
// gates, and the queue of deferred effects.
//
// A World is not safe for concurrent use. The only exception is key
// release, which may happen on any goroutine.
type World struct {
	generations []uint32
	alive       []bool
	free        []uint32

	buffers map[api.Entity]*bufferRecord

	queue    []Effect
	releases *releaseSink

	observer api.Observer
	events   persistence.EventStore
	clock    func() time.Time
	runID    string
}

// NewWorld returns an empty World with no observer and no history.
func NewWorld() *World {
	return NewWorldWithConfig(Config{})
}

// NewWorldWithConfig returns an empty World using cfg.
func NewWorldWithConfig(cfg Config) *World {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &World{
		buffers:  make(map[api.Entity]*bufferRecord),
		releases: &releaseSink{},
		observer: obs,
		events:   cfg.Events,
		clock:    clock,
		runID:    runID,
	}
}

// RunID returns the id stamped on every history event this World records.
// Pass it with a session to EventStore.ListEvents.
func (w *World) RunID() string {
	return w.runID
}

// Spawn allocates a new entity. Slots of despawned entities are reused with
// a bumped generation.
func (w *World) Spawn() api.Entity {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		w.alive[idx] = true
		return api.Entity{Index: idx, Generation: w.generations[idx]}
	}
	idx := uint32(len(w.generations))
	w.generations = append(w.generations, 1)
	w.alive = append(w.alive, true)
	return api.Entity{Index: idx, Generation: 1}
}

// Alive reports whether e refers to a live entity.
func (w *World) Alive(e api.Entity) bool {
	if e.IsZero() || int(e.Index) >= len(w.generations) {
		return false
	}
	return w.alive[e.Index] && w.generations[e.Index] == e.Generation
}

// Despawn frees e. If e is a buffer its storage, gates and listeners are
// dropped, and keys for it resolve to api.ErrBufferMissing from then on.
func (w *World) Despawn(e api.Entity) bool {
	if !w.Alive(e) {
		return false
	}
	delete(w.buffers, e)
	w.alive[e.Index] = false
	w.generations[e.Index]++
	w.free = append(w.free, e.Index)
	return true
}

// KeyBuilder returns a builder for keys minted by accessor within session.
// Releasing the last reference of such a key is reported at the next flush.
func (w *World) KeyBuilder(session, accessor api.Entity) KeyBuilder {
	return KeyBuilder{session: session, accessor: accessor, sink: w.releases}
}

// Settings returns the settings buffer was created with.
func (w *World) Settings(buffer api.Entity) (api.BufferSettings, error) {
	rec, err := w.record(buffer)
	if err != nil {
		return api.BufferSettings{}, err
	}
	return rec.settings, nil
}

// Location returns the identity of buffer.
func (w *World) Location(buffer api.Entity) (api.BufferLocation, error) {
	rec, err := w.record(buffer)
	if err != nil {
		return api.BufferLocation{}, err
	}
	return rec.location, nil
}

// Buffers lists the live buffer entities in allocation order.
func (w *World) Buffers() []api.Entity {
	out := make([]api.Entity, 0, len(w.buffers))
	for e := range w.buffers {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b api.Entity) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// Count returns how many values buffer holds for session, whatever their
// type.
func (w *World) Count(buffer, session api.Entity) (int, error) {
	rec, err := w.record(buffer)
	if err != nil {
		return 0, err
	}
	return rec.storage.Count(session), nil
}

// Listen registers fn to be woken whenever buffer is updated. node is the
// listener's identity for closed-loop suppression. Registering the same node
// twice replaces its callback.
func (w *World) Listen(buffer, node api.Entity, fn Listener) error {
	rec, err := w.record(buffer)
	if err != nil {
		return err
	}
	for i := range rec.listeners {
		if rec.listeners[i].node == node {
			rec.listeners[i].fn = fn
			return nil
		}
	}
	rec.listeners = append(rec.listeners, listenerEntry{node: node, fn: fn})
	return nil
}

// Unlisten removes the listener node from buffer.
func (w *World) Unlisten(buffer, node api.Entity) bool {
	rec, err := w.record(buffer)
	if err != nil {
		return false
	}
	n := len(rec.listeners)
	rec.listeners = slices.DeleteFunc(rec.listeners, func(l listenerEntry) bool { return l.node == node })
	return len(rec.listeners) != n
}

// Defer queues e for the next flush.
func (w *World) Defer(e Effect) {
	w.queue = append(w.queue, e)
}

var _ EffectSink = (*World)(nil)

// Pending returns the number of effects waiting for the next flush.
func (w *World) Pending() int {
	return len(w.queue) + w.releases.len()
}

// ClearSession drops every buffer partition and gate state owned by session
// and returns the number of values released. Keys for session stay valid
// and read as empty afterwards.
func (w *World) ClearSession(ctx context.Context, session api.Entity) (int, error) {
	released := 0
	for _, rec := range w.buffers {
		released += rec.storage.ClearSession(session)
		rec.gate.ClearSession(session)
	}
	w.observer.OnSessionCleared(ctx, session, released)
	err := w.recordEvent(ctx, api.BufferEvent{
		Type:    api.EventSessionCleared,
		Session: session,
		Detail:  "released=" + strconv.Itoa(released),
	})
	return released, err
}

// Flush applies every effect queued so far and returns the number of
// listeners woken. Effects produced by listeners during the flush are kept
// for the next one. Listener and history errors are joined; delivery goes on
// past them. If ctx is cancelled the undelivered effects stay queued.
func (w *World) Flush(ctx context.Context) (int, error) {
	batch := append(w.queue, w.releases.take()...)
	w.queue = nil

	var errs []error
	woken := 0
	for i, e := range batch {
		if err := ctx.Err(); err != nil {
			w.queue = append(slices.Clone(batch[i:]), w.queue...)
			return woken, errors.Join(append(errs, err)...)
		}
		switch e.Kind {
		case EffectBufferUpdated:
			n, err := w.deliver(ctx, e.Update())
			woken += n
			if err != nil {
				errs = append(errs, err)
			}
		case EffectGateChanged:
			w.observer.OnGateChanged(ctx, e.Buffer, e.Session, e.Gate)
			typ := api.EventGateOpened
			if e.Gate == api.GateClosed {
				typ = api.EventGateClosed
			}
			if err := w.recordEvent(ctx, api.BufferEvent{Type: typ, Buffer: e.Buffer, Session: e.Session, Accessor: e.Accessor}); err != nil {
				errs = append(errs, err)
			}
		case EffectKeyReleased:
			w.observer.OnKeyReleased(ctx, e.Buffer, e.Session, e.Accessor)
			if err := w.recordEvent(ctx, api.BufferEvent{Type: api.EventKeyReleased, Buffer: e.Buffer, Session: e.Session, Accessor: e.Accessor}); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return woken, errors.Join(errs...)
}

func (w *World) deliver(ctx context.Context, u api.BufferUpdate) (int, error) {
	w.observer.OnBufferUpdated(ctx, u)
	var errs []error
	if err := w.recordEvent(ctx, api.BufferEvent{Type: api.EventBufferUpdated, Buffer: u.Buffer, Session: u.Session, Accessor: u.ExcludedAccessor}); err != nil {
		errs = append(errs, err)
	}

	rec, ok := w.buffers[u.Buffer]
	if !ok {
		// Despawned since the update was queued.
		return 0, errors.Join(errs...)
	}

	woken := 0
	for _, l := range slices.Clone(rec.listeners) {
		if u.Excludes(l.node) {
			w.observer.OnListenerSuppressed(ctx, u, l.node)
			if err := w.recordEvent(ctx, api.BufferEvent{Type: api.EventListenerSuppressed, Buffer: u.Buffer, Session: u.Session, Accessor: l.node}); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		w.observer.OnListenerWoken(ctx, u, l.node)
		if err := w.recordEvent(ctx, api.BufferEvent{Type: api.EventListenerWoken, Buffer: u.Buffer, Session: u.Session, Accessor: l.node}); err != nil {
			errs = append(errs, err)
		}
		woken++
		if err := l.fn(ctx, w, u); err != nil {
			errs = append(errs, fmt.Errorf("listener %s on buffer %s: %w", l.node, u.Buffer, err))
		}
	}
	return woken, errors.Join(errs...)
}

func (w *World) recordEvent(ctx context.Context, ev api.BufferEvent) error {
	if w.events == nil {
		return nil
	}
	ev.ID = uuid.NewString()
	ev.Run = w.runID
	ev.At = w.clock()
	if err := w.events.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s event: %w", ev.Type, err)
	}
	return nil
}

func (w *World) record(buffer api.Entity) (*bufferRecord, error) {
	rec, ok := w.buffers[buffer]
	if !ok || !w.Alive(buffer) {
		return nil, fmt.Errorf("buffer %s: %w", buffer, api.ErrBufferMissing)
	}
	return rec, nil
}

// lookup resolves buffer to its typed storage.
func lookup[T any](w *World, buffer api.Entity) (*bufferRecord, *storage.BufferStorage[T], error) {
	rec, err := w.record(buffer)
	if err != nil {
		return nil, nil, err
	}
	s, ok := rec.storage.(*storage.BufferStorage[T])
	if !ok {
		return nil, nil, fmt.Errorf("buffer %s does not hold %s values: %w", buffer, typeName[T](), api.ErrBufferMissing)
	}
	return rec, s, nil
}
