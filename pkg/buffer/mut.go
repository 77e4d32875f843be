package buffer

import (
	"iter"

	"github.com/petrijr/fluxbuf/internal/storage"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// BufferMut is a mutable window onto one session of a buffer.
//
// Every mutating call marks the guard as modified. Release must be called
// exactly once when the access window ends; if the guard was modified it
// queues a single buffer update, however many mutations happened. Prefer
// BufferAccessMut.With or MutateBuffer, which release on every exit path.
//
// A released guard no longer writes: mutating calls leave the storage alone
// and return zero values, nil pointers or an empty sequence. Reads keep
// working.
type BufferMut[T any] struct {
	buffer   api.Entity
	session  api.Entity
	accessor api.Entity
	storage  *storage.BufferStorage[T]
	sink     EffectSink

	modified    bool
	closedLoops bool
	released    bool
}

// AllowClosedLoops lets the update emitted by this guard wake the accessor
// that produced it.
func (m *BufferMut[T]) AllowClosedLoops() *BufferMut[T] {
	m.closedLoops = true
	return m
}

// Modified reports whether a mutating call has been made.
func (m *BufferMut[T]) Modified() bool {
	return m.modified
}

// Release ends the access window. Only the first call has an effect.
func (m *BufferMut[T]) Release() {
	if m.released {
		return
	}
	m.released = true
	if !m.modified {
		return
	}

	excluded := m.accessor
	if m.closedLoops {
		excluded = api.Entity{}
	}
	m.sink.Defer(Effect{
		Kind:     EffectBufferUpdated,
		Buffer:   m.buffer,
		Session:  m.session,
		Accessor: excluded,
	})
}

// All iterates over the values from oldest to newest.
func (m *BufferMut[T]) All() iter.Seq[T] {
	return m.storage.All(m.session)
}

// Oldest returns the oldest value, or false when the buffer is empty.
func (m *BufferMut[T]) Oldest() (T, bool) {
	return m.storage.Oldest(m.session)
}

// Newest returns the newest value, or false when the buffer is empty.
func (m *BufferMut[T]) Newest() (T, bool) {
	return m.storage.Newest(m.session)
}

// Get returns the value at index, counting from the oldest.
func (m *BufferMut[T]) Get(index int) (T, bool) {
	return m.storage.Get(m.session, index)
}

// Len returns the number of values held for the session.
func (m *BufferMut[T]) Len() int {
	return m.storage.Count(m.session)
}

// IsEmpty reports whether the session holds no values.
func (m *BufferMut[T]) IsEmpty() bool {
	return m.Len() == 0
}

// mutable marks the guard modified and reports whether a mutation may go
// ahead. Nothing may change once the guard is released.
func (m *BufferMut[T]) mutable() bool {
	if m.released {
		return false
	}
	m.modified = true
	return true
}

// Push stores value as the newest element and returns whatever the
// retention policy pushed out: the evicted oldest value under KeepLast, or
// value itself when KeepFirst is full.
func (m *BufferMut[T]) Push(value T) (T, bool) {
	if !m.mutable() {
		var zero T
		return zero, false
	}
	return m.storage.Push(m.session, value)
}

// PushAsOldest stores value as the oldest element and returns whatever the
// retention policy pushed out.
func (m *BufferMut[T]) PushAsOldest(value T) (T, bool) {
	if !m.mutable() {
		var zero T
		return zero, false
	}
	return m.storage.PushAsOldest(m.session, value)
}

// Pull removes and returns the oldest value. The guard counts as modified
// even when the buffer was empty and nothing came out, so its release still
// emits an update.
func (m *BufferMut[T]) Pull() (T, bool) {
	if !m.mutable() {
		var zero T
		return zero, false
	}
	return m.storage.Pull(m.session)
}

// PullNewest removes and returns the newest value. Like Pull it marks the
// guard modified even when the buffer was empty.
func (m *BufferMut[T]) PullNewest() (T, bool) {
	if !m.mutable() {
		var zero T
		return zero, false
	}
	return m.storage.PullNewest(m.session)
}

// GetMut returns a pointer to the value at index, or nil when index is out
// of range. The guard is marked modified either way.
func (m *BufferMut[T]) GetMut(index int) *T {
	if !m.mutable() {
		return nil
	}
	return m.storage.GetMut(m.session, index)
}

// OldestMut returns a pointer to the oldest value, or nil when empty.
func (m *BufferMut[T]) OldestMut() *T {
	if !m.mutable() {
		return nil
	}
	return m.storage.OldestMut(m.session)
}

// NewestMut returns a pointer to the newest value, or nil when empty.
func (m *BufferMut[T]) NewestMut() *T {
	if !m.mutable() {
		return nil
	}
	return m.storage.NewestMut(m.session)
}

// NewestMutOrElse returns the newest element, inserting f() first when the
// buffer is empty. It returns nil when the retention policy keeps nothing.
func (m *BufferMut[T]) NewestMutOrElse(f func() T) *T {
	if !m.mutable() {
		return nil
	}
	return m.storage.NewestMutOrElse(m.session, f)
}

// NewestMutOrDefault is NewestMutOrElse with the zero value of T.
func (m *BufferMut[T]) NewestMutOrDefault() *T {
	return m.NewestMutOrElse(func() T {
		var zero T
		return zero
	})
}

// AllMut iterates over pointers to the values from oldest to newest.
func (m *BufferMut[T]) AllMut() iter.Seq[*T] {
	if !m.mutable() {
		return func(func(*T) bool) {}
	}
	return m.storage.AllMut(m.session)
}

// Drain removes and returns the values in [start, end). Out-of-range bounds
// are clamped.
func (m *BufferMut[T]) Drain(start, end int) []T {
	if !m.mutable() {
		return nil
	}
	return m.storage.Drain(m.session, start, end)
}

// DrainAll removes and returns every value.
func (m *BufferMut[T]) DrainAll() []T {
	return m.Drain(0, m.Len())
}

// Pulse forces an update notification without changing the contents.
func (m *BufferMut[T]) Pulse() {
	m.mutable()
}
