package buffer

import (
	"fmt"
	"reflect"

	"github.com/petrijr/fluxbuf/internal/storage"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// Buffer is the handle of a buffer holding values of type T. It is a plain
// value: copying it copies the identity, not the contents.
type Buffer[T any] struct {
	location api.BufferLocation
}

// CreateBuffer spawns a buffer entity inside scope with the given settings.
func CreateBuffer[T any](w *World, scope api.Entity, settings api.BufferSettings) Buffer[T] {
	source := w.Spawn()
	w.buffers[source] = &bufferRecord{
		location: api.BufferLocation{Scope: scope, Source: source},
		settings: settings,
		storage:  storage.NewBufferStorage[T](settings),
		gate:     storage.NewGateState(),
	}
	return Buffer[T]{location: api.BufferLocation{Scope: scope, Source: source}}
}

// ID returns the buffer entity.
func (b Buffer[T]) ID() api.Entity { return b.location.Source }

// Scope returns the workflow the buffer belongs to.
func (b Buffer[T]) Scope() api.Entity { return b.location.Scope }

// Location returns the full identity of the buffer.
func (b Buffer[T]) Location() api.BufferLocation { return b.location }

// ByCloning marks the buffer as one whose values are read by cloning rather
// than pulling.
func (b Buffer[T]) ByCloning() CloneFromBuffer[T] {
	return CloneFromBuffer[T]{location: b.location}
}

func (b Buffer[T]) String() string {
	return fmt.Sprintf("Buffer[%s]{scope: %s, source: %s}", typeName[T](), b.location.Scope, b.location.Source)
}

// CloneFromBuffer is a Buffer whose consumers copy values out instead of
// taking them.
type CloneFromBuffer[T any] struct {
	location api.BufferLocation
}

func (b CloneFromBuffer[T]) ID() api.Entity               { return b.location.Source }
func (b CloneFromBuffer[T]) Scope() api.Entity            { return b.location.Scope }
func (b CloneFromBuffer[T]) Location() api.BufferLocation { return b.location }

// Buffer converts b back into a plain Buffer handle.
func (b CloneFromBuffer[T]) Buffer() Buffer[T] { return Buffer[T]{location: b.location} }

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
