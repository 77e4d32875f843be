package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives callbacks from the world flush for logging and metrics.
//
// Implementations should be fast and non-blocking; callbacks run on the
// scheduler goroutine between access windows.
type Observer interface {
	// OnBufferUpdated is called once per applied BufferUpdate, before any
	// listener is woken.
	OnBufferUpdated(ctx context.Context, u BufferUpdate)

	// OnListenerWoken is called for each listener that receives u.
	OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity)

	// OnListenerSuppressed is called when a listener is skipped because it
	// produced u itself.
	OnListenerSuppressed(ctx context.Context, u BufferUpdate, listener Entity)

	// OnGateChanged is called when a gate actually transitions.
	OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate)

	// OnSessionCleared is called after every buffer partition of session has
	// been released. released is the number of values dropped.
	OnSessionCleared(ctx context.Context, session Entity, released int)

	// OnKeyReleased is called when the last live reference of a key
	// lifecycle is given back.
	OnKeyReleased(ctx context.Context, buffer, session, accessor Entity)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnBufferUpdated(ctx context.Context, u BufferUpdate)                  {}
func (NoopObserver) OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity) {}
func (NoopObserver) OnListenerSuppressed(ctx context.Context, u BufferUpdate, l Entity)   {}
func (NoopObserver) OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate) {}
func (NoopObserver) OnSessionCleared(ctx context.Context, session Entity, released int)   {}
func (NoopObserver) OnKeyReleased(ctx context.Context, buffer, session, accessor Entity)  {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnBufferUpdated(ctx context.Context, u BufferUpdate) {
	for _, o := range c.observers {
		o.OnBufferUpdated(ctx, u)
	}
}

func (c *CompositeObserver) OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity) {
	for _, o := range c.observers {
		o.OnListenerWoken(ctx, u, listener)
	}
}

func (c *CompositeObserver) OnListenerSuppressed(ctx context.Context, u BufferUpdate, listener Entity) {
	for _, o := range c.observers {
		o.OnListenerSuppressed(ctx, u, listener)
	}
}

func (c *CompositeObserver) OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate) {
	for _, o := range c.observers {
		o.OnGateChanged(ctx, buffer, session, gate)
	}
}

func (c *CompositeObserver) OnSessionCleared(ctx context.Context, session Entity, released int) {
	for _, o := range c.observers {
		o.OnSessionCleared(ctx, session, released)
	}
}

func (c *CompositeObserver) OnKeyReleased(ctx context.Context, buffer, session, accessor Entity) {
	for _, o := range c.observers {
		o.OnKeyReleased(ctx, buffer, session, accessor)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs buffer lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnBufferUpdated(ctx context.Context, u BufferUpdate) {
	o.Logger.DebugContext(ctx, "buffer_updated",
		slog.String("buffer", u.Buffer.String()),
		slog.String("session", u.Session.String()),
		slog.String("excluded_accessor", u.ExcludedAccessor.String()),
	)
}

func (o *LoggingObserver) OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity) {
	o.Logger.DebugContext(ctx, "listener_woken",
		slog.String("buffer", u.Buffer.String()),
		slog.String("session", u.Session.String()),
		slog.String("listener", listener.String()),
	)
}

func (o *LoggingObserver) OnListenerSuppressed(ctx context.Context, u BufferUpdate, listener Entity) {
	o.Logger.DebugContext(ctx, "listener_suppressed",
		slog.String("buffer", u.Buffer.String()),
		slog.String("session", u.Session.String()),
		slog.String("listener", listener.String()),
	)
}

func (o *LoggingObserver) OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate) {
	o.Logger.DebugContext(ctx, "gate_changed",
		slog.String("buffer", buffer.String()),
		slog.String("session", session.String()),
		slog.String("gate", gate.String()),
	)
}

func (o *LoggingObserver) OnSessionCleared(ctx context.Context, session Entity, released int) {
	o.Logger.InfoContext(ctx, "session_cleared",
		slog.String("session", session.String()),
		slog.Int("released", released),
	)
}

func (o *LoggingObserver) OnKeyReleased(ctx context.Context, buffer, session, accessor Entity) {
	o.Logger.DebugContext(ctx, "key_released",
		slog.String("buffer", buffer.String()),
		slog.String("session", session.String()),
		slog.String("accessor", accessor.String()),
	)
}

// BasicMetrics collects simple counters. It implements Observer, and can be
// combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	updates         atomic.Int64
	woken           atomic.Int64
	suppressed      atomic.Int64
	gateTransitions atomic.Int64
	sessionsCleared atomic.Int64
	valuesReleased  atomic.Int64
	keysReleased    atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	BufferUpdates       int64
	ListenersWoken      int64
	ListenersSuppressed int64
	GateTransitions     int64

	SessionsCleared int64
	ValuesReleased  int64
	KeysReleased    int64
}

func (m *BasicMetrics) OnBufferUpdated(ctx context.Context, u BufferUpdate) {
	m.updates.Add(1)
}

func (m *BasicMetrics) OnListenerWoken(ctx context.Context, u BufferUpdate, listener Entity) {
	m.woken.Add(1)
}

func (m *BasicMetrics) OnListenerSuppressed(ctx context.Context, u BufferUpdate, listener Entity) {
	m.suppressed.Add(1)
}

func (m *BasicMetrics) OnGateChanged(ctx context.Context, buffer, session Entity, gate Gate) {
	m.gateTransitions.Add(1)
}

func (m *BasicMetrics) OnSessionCleared(ctx context.Context, session Entity, released int) {
	m.sessionsCleared.Add(1)
	m.valuesReleased.Add(int64(released))
}

func (m *BasicMetrics) OnKeyReleased(ctx context.Context, buffer, session, accessor Entity) {
	m.keysReleased.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		BufferUpdates:       m.updates.Load(),
		ListenersWoken:      m.woken.Load(),
		ListenersSuppressed: m.suppressed.Load(),
		GateTransitions:     m.gateTransitions.Load(),
		SessionsCleared:     m.sessionsCleared.Load(),
		ValuesReleased:      m.valuesReleased.Load(),
		KeysReleased:        m.keysReleased.Load(),
	}
}
