package api

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

//
// Helpers
//

// testObserver is a simple Observer implementation used to verify fan-out behavior.
type testObserver struct {
	mu sync.Mutex

	updates    int
	woken      int
	suppressed int
	gates      int
	cleared    int
	released   int

	lastUpdate   BufferUpdate
	lastListener Entity
	lastGate     Gate
	lastSession  Entity
	lastCount    int
}

func (o *testObserver) OnBufferUpdated(ctx context.Context, u BufferUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates++
	o.lastUpdate = u
}

func (o *testObserver) OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.woken++
	o.lastListener = listener
}

func (o *testObserver) OnListenerSuppressed(ctx context.Context, u BufferUpdate, listener Entity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suppressed++
	o.lastListener = listener
}

func (o *testObserver) OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gates++
	o.lastGate = gate
}

func (o *testObserver) OnSessionCleared(ctx context.Context, session Entity, released int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
	o.lastSession = session
	o.lastCount = released
}

func (o *testObserver) OnKeyReleased(ctx context.Context, buffer, session, accessor Entity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released++
}

// recordingHandler is a minimal slog.Handler that just records log records.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Copy to avoid reuse issues.
	cpy := slog.Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		cpy.AddAttrs(a)
		return true
	})
	h.records = append(h.records, cpy)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return h
}

func attrsToMap(r slog.Record) map[string]any {
	m := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value.Any()
		return true
	})
	return m
}

func newTestUpdate() BufferUpdate {
	return BufferUpdate{
		Buffer:           Entity{Index: 1, Generation: 1},
		Session:          Entity{Index: 2, Generation: 1},
		ExcludedAccessor: Entity{Index: 3, Generation: 1},
	}
}

//
// NoopObserver
//

func TestNoopObserver_DoesNotPanic(t *testing.T) {
	ctx := context.Background()
	u := newTestUpdate()
	var o Observer = NoopObserver{}

	// These calls should simply not panic.
	o.OnBufferUpdated(ctx, u)
	o.OnListenerWoken(ctx, u, u.ExcludedAccessor)
	o.OnListenerSuppressed(ctx, u, u.ExcludedAccessor)
	o.OnGateChanged(ctx, u.Buffer, u.Session, GateClosed)
	o.OnSessionCleared(ctx, u.Session, 3)
	o.OnKeyReleased(ctx, u.Buffer, u.Session, u.ExcludedAccessor)
}

//
// CompositeObserver
//

func TestNewCompositeObserver_EmptyReturnsNoop(t *testing.T) {
	o := NewCompositeObserver()
	if _, ok := o.(NoopObserver); !ok {
		t.Fatalf("expected NewCompositeObserver() to return NoopObserver, got %T", o)
	}
}

func TestNewCompositeObserver_SingleReturnsThatObserver(t *testing.T) {
	single := &testObserver{}
	o := NewCompositeObserver(single, nil) // include a nil to ensure it is filtered

	if got, ok := o.(*testObserver); !ok || got != single {
		t.Fatalf("expected the single non-nil observer to be returned, got %T (%p)", o, o)
	}
}

func TestCompositeObserver_ForwardsAllEvents(t *testing.T) {
	ctx := context.Background()
	u := newTestUpdate()
	listener := Entity{Index: 9, Generation: 2}

	o1 := &testObserver{}
	o2 := &testObserver{}
	co, ok := NewCompositeObserver(o1, o2).(*CompositeObserver)
	if !ok {
		t.Fatalf("expected *CompositeObserver")
	}

	co.OnBufferUpdated(ctx, u)
	co.OnListenerWoken(ctx, u, listener)
	co.OnListenerSuppressed(ctx, u, listener)
	co.OnGateChanged(ctx, u.Buffer, u.Session, GateClosed)
	co.OnSessionCleared(ctx, u.Session, 4)
	co.OnKeyReleased(ctx, u.Buffer, u.Session, listener)

	for i, o := range []*testObserver{o1, o2} {
		if o.updates != 1 || o.woken != 1 || o.suppressed != 1 || o.gates != 1 || o.cleared != 1 || o.released != 1 {
			t.Fatalf("observer %d did not receive all calls: %+v", i+1, o)
		}
		if o.lastUpdate != u {
			t.Fatalf("observer %d update mismatch: %+v", i+1, o.lastUpdate)
		}
		if o.lastListener != listener || o.lastGate != GateClosed {
			t.Fatalf("observer %d listener/gate mismatch", i+1)
		}
		if o.lastSession != u.Session || o.lastCount != 4 {
			t.Fatalf("observer %d session clear mismatch", i+1)
		}
	}
}

//
// LoggingObserver
//

func TestNewLoggingObserver_NilLoggerUsesDefault(t *testing.T) {
	o := NewLoggingObserver(nil)
	lo, ok := o.(*LoggingObserver)
	if !ok {
		t.Fatalf("expected *LoggingObserver, got %T", o)
	}
	if lo.Logger == nil {
		t.Fatalf("expected non-nil Logger when created with nil")
	}
}

func TestLoggingObserver_OnSessionCleared_EmitsInfoLog(t *testing.T) {
	ctx := context.Background()
	session := Entity{Index: 5, Generation: 3}

	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnSessionCleared(ctx, session, 7)

	if len(h.records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(h.records))
	}

	rec := h.records[0]
	if rec.Level != slog.LevelInfo {
		t.Fatalf("expected LevelInfo, got %v", rec.Level)
	}
	if rec.Message != "session_cleared" {
		t.Fatalf("expected message session_cleared, got %q", rec.Message)
	}

	attrs := attrsToMap(rec)
	if attrs["session"] != "5v3" {
		t.Fatalf("expected session=5v3, got %v", attrs["session"])
	}
	if attrs["released"] != int64(7) {
		t.Fatalf("expected released=7, got %v", attrs["released"])
	}
}

func TestLoggingObserver_UpdatesLogAtDebug(t *testing.T) {
	ctx := context.Background()
	u := newTestUpdate()

	h := &recordingHandler{}
	o := NewLoggingObserver(slog.New(h))

	o.OnBufferUpdated(ctx, u)
	o.OnListenerSuppressed(ctx, u, u.ExcludedAccessor)

	if len(h.records) != 2 {
		t.Fatalf("expected 2 log records, got %d", len(h.records))
	}
	for _, rec := range h.records {
		if rec.Level != slog.LevelDebug {
			t.Fatalf("expected LevelDebug for %q, got %v", rec.Message, rec.Level)
		}
	}

	attrs := attrsToMap(h.records[1])
	if attrs["listener"] != u.ExcludedAccessor.String() {
		t.Fatalf("expected listener=%s, got %v", u.ExcludedAccessor, attrs["listener"])
	}
}

//
// BasicMetrics
//

func TestBasicMetrics_CountersAndSnapshot(t *testing.T) {
	var m BasicMetrics

	ctx := context.Background()
	u := newTestUpdate()

	m.OnBufferUpdated(ctx, u)
	m.OnBufferUpdated(ctx, u)
	m.OnListenerWoken(ctx, u, Entity{Index: 4, Generation: 1})
	m.OnListenerSuppressed(ctx, u, u.ExcludedAccessor)
	m.OnGateChanged(ctx, u.Buffer, u.Session, GateClosed)
	m.OnSessionCleared(ctx, u.Session, 3)
	m.OnSessionCleared(ctx, u.Session, 2)
	m.OnKeyReleased(ctx, u.Buffer, u.Session, u.ExcludedAccessor)

	snap := m.Snapshot()

	if snap.BufferUpdates != 2 {
		t.Fatalf("BufferUpdates=%d, want 2", snap.BufferUpdates)
	}
	if snap.ListenersWoken != 1 || snap.ListenersSuppressed != 1 {
		t.Fatalf("woken/suppressed=%d/%d, want 1/1", snap.ListenersWoken, snap.ListenersSuppressed)
	}
	if snap.GateTransitions != 1 {
		t.Fatalf("GateTransitions=%d, want 1", snap.GateTransitions)
	}
	if snap.SessionsCleared != 2 || snap.ValuesReleased != 5 {
		t.Fatalf("SessionsCleared/ValuesReleased=%d/%d, want 2/5", snap.SessionsCleared, snap.ValuesReleased)
	}
	if snap.KeysReleased != 1 {
		t.Fatalf("KeysReleased=%d, want 1", snap.KeysReleased)
	}
}

func TestBasicMetrics_ZeroSnapshot(t *testing.T) {
	var m BasicMetrics
	if snap := m.Snapshot(); snap != (BasicMetricsSnapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
