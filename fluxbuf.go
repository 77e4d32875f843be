package fluxbuf

import (
	"github.com/petrijr/fluxbuf/internal/persistence"
	"github.com/petrijr/fluxbuf/internal/taskqueue"
	"github.com/petrijr/fluxbuf/pkg/api"
	"github.com/petrijr/fluxbuf/pkg/buffer"
	"github.com/petrijr/fluxbuf/pkg/worker"
)

// Re-export key types so users don't need to dig into pkg/api and pkg/buffer.

type (
	Entity               = api.Entity
	BufferLocation       = api.BufferLocation
	BufferSettings       = api.BufferSettings
	RetentionPolicy      = api.RetentionPolicy
	Gate                 = api.Gate
	BufferUpdate         = api.BufferUpdate
	BufferEvent          = api.BufferEvent
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	World               = buffer.World
	WorldConfig         = buffer.Config
	Listener            = buffer.Listener
	KeyBuilder          = buffer.KeyBuilder
	BufferKeyTag        = buffer.BufferKeyTag
	AnyBufferKey        = buffer.AnyBufferKey
	AccessLifecycle     = buffer.AccessLifecycle
	Effect              = buffer.Effect
	EffectSink          = buffer.EffectSink
	Commands            = buffer.Commands
	BufferGateAccess    = buffer.BufferGateAccess
	BufferGateAccessMut = buffer.BufferGateAccessMut
	BufferGateView      = buffer.BufferGateView
	BufferGateMut       = buffer.BufferGateMut

	Completion = worker.Completion

	EventStore         = persistence.EventStore
	InMemoryEventStore = persistence.InMemoryEventStore
	SQLiteEventStore   = persistence.SQLiteEventStore
	RedisEventStore    = persistence.RedisEventStore
)

// Typed buffer handles and guards.

type (
	Buffer[T any]          = buffer.Buffer[T]
	CloneFromBuffer[T any] = buffer.CloneFromBuffer[T]
	BufferKey[T any]       = buffer.BufferKey[T]
	BufferView[T any]      = buffer.BufferView[T]
	BufferMut[T any]       = buffer.BufferMut[T]
	BufferAccess[T any]    = buffer.BufferAccess[T]
	BufferAccessMut[T any] = buffer.BufferAccessMut[T]
)

// Re-export common constructors and helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	KeepLast          = api.KeepLast
	KeepFirst         = api.KeepFirst
	KeepAll           = api.KeepAll
	KeepLastSettings  = api.KeepLastSettings
	KeepFirstSettings = api.KeepFirstSettings
	KeepAllSettings   = api.KeepAllSettings

	NewWorld           = buffer.NewWorld
	NewWorldWithConfig = buffer.NewWorldWithConfig
	NewKeyBuilder      = buffer.NewKeyBuilder
	CreateAnyKey       = buffer.CreateAnyKey

	NewBufferGateAccess    = buffer.NewBufferGateAccess
	NewBufferGateAccessMut = buffer.NewBufferGateAccessMut

	NewInMemoryEventStore = persistence.NewInMemoryEventStore
	NewSQLiteEventStore   = persistence.NewSQLiteEventStore
	NewRedisEventStore    = persistence.NewRedisEventStore
)

// Re-export gate values and the missing-buffer sentinel.

const (
	GateOpen   = api.GateOpen
	GateClosed = api.GateClosed
)

var ErrBufferMissing = api.ErrBufferMissing

// Generic helpers cannot be re-exported as variables; these forward to
// pkg/buffer.

// CreateBuffer registers a new buffer of T in w.
func CreateBuffer[T any](w *World, scope Entity, settings BufferSettings) Buffer[T] {
	return buffer.CreateBuffer[T](w, scope, settings)
}

// CreateKey mints a key for buf.
func CreateKey[T any](buf Buffer[T], b KeyBuilder) BufferKey[T] {
	return buffer.CreateKey(buf, b)
}

// NewBufferAccess returns read-only access to buffers of T in w.
func NewBufferAccess[T any](w *World) BufferAccess[T] {
	return buffer.NewBufferAccess[T](w)
}

// NewBufferAccessMut returns mutable access to buffers of T in w. Effects go
// to sink, or to w when sink is nil.
func NewBufferAccessMut[T any](w *World, sink EffectSink) BufferAccessMut[T] {
	return buffer.NewBufferAccessMut[T](w, sink)
}

// ViewBuffer reads a buffer straight from the world.
func ViewBuffer[T any](w *World, key BufferKey[T]) (*BufferView[T], error) {
	return buffer.ViewBuffer(w, key)
}

// MutateBuffer runs fn against a buffer straight from the world. The update
// it causes is queued after fn returns.
func MutateBuffer[T, U any](w *World, key BufferKey[T], fn func(*BufferMut[T]) (U, error)) (U, error) {
	return buffer.MutateBuffer(w, key, fn)
}

// NewInMemoryQueue returns the channel-backed completion queue used by
// LocalRunner.
func NewInMemoryQueue(capacity int) *taskqueue.InMemoryQueue {
	return taskqueue.NewInMemoryQueue(capacity)
}

// ViewGate reads a gate straight from the world.
func ViewGate(w *World, key AnyBufferKey) (*BufferGateView, error) {
	return buffer.ViewGate(w, key)
}

// MutateGate runs fn against a gate straight from the world.
func MutateGate[U any](w *World, key AnyBufferKey, fn func(*BufferGateMut) (U, error)) (U, error) {
	return buffer.MutateGate(w, key, fn)
}
