package buffer

import (
	"iter"

	"github.com/petrijr/fluxbuf/internal/storage"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// BufferView is a read-only window onto one session of a buffer.
type BufferView[T any] struct {
	session api.Entity
	storage *storage.BufferStorage[T]
}

// All iterates over the values from oldest to newest.
func (v *BufferView[T]) All() iter.Seq[T] {
	return v.storage.All(v.session)
}

// Oldest returns the oldest value, or false when the buffer is empty.
func (v *BufferView[T]) Oldest() (T, bool) {
	return v.storage.Oldest(v.session)
}

// Newest returns the newest value, or false when the buffer is empty.
func (v *BufferView[T]) Newest() (T, bool) {
	return v.storage.Newest(v.session)
}

// Get returns the value at index, counting from the oldest.
func (v *BufferView[T]) Get(index int) (T, bool) {
	return v.storage.Get(v.session, index)
}

// Len returns the number of values held for the session.
func (v *BufferView[T]) Len() int {
	return v.storage.Count(v.session)
}

// IsEmpty reports whether the session holds no values.
func (v *BufferView[T]) IsEmpty() bool {
	return v.Len() == 0
}
