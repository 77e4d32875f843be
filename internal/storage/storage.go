// Package storage holds the session-partitioned containers behind every
// buffer: an ordered value store that enforces a retention policy, and the
// per-session gate flags.
//
// Neither type is safe for concurrent use. The world that owns them hands out
// at most one mutable guard per buffer at a time.
package storage

import (
	"iter"
	"maps"
	"slices"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// Partitioned is the type-erased view of a BufferStorage used by session
// teardown, which does not know the element type.
type Partitioned interface {
	Count(session api.Entity) int
	ClearSession(session api.Entity) int
}

var _ Partitioned = (*BufferStorage[int])(nil)

// BufferStorage maps each session to an ordered sequence of values. Index 0
// is the oldest value, the highest index the newest.
type BufferStorage[T any] struct {
	settings api.BufferSettings
	sessions map[api.Entity][]T
}

// NewBufferStorage creates an empty storage governed by settings.
func NewBufferStorage[T any](settings api.BufferSettings) *BufferStorage[T] {
	return &BufferStorage[T]{
		settings: settings,
		sessions: make(map[api.Entity][]T),
	}
}

// Settings returns the settings the storage was created with.
func (s *BufferStorage[T]) Settings() api.BufferSettings {
	return s.settings
}

// Push inserts value as the newest element of session. It returns the value
// that had to leave the buffer, if any: the evicted oldest element under
// KeepLast, or value itself when KeepFirst is full.
func (s *BufferStorage[T]) Push(session api.Entity, value T) (T, bool) {
	var zero T
	limit, bounded := s.settings.Retention().Limit()
	queue := s.sessions[session]

	if !bounded {
		s.sessions[session] = append(queue, value)
		return zero, false
	}

	switch s.settings.Retention().Kind() {
	case api.RetentionKeepFirst:
		if len(queue) >= limit {
			return value, true
		}
		s.sessions[session] = append(queue, value)
		return zero, false

	default:
		if limit == 0 {
			return value, true
		}
		queue = append(queue, value)
		if len(queue) > limit {
			evicted := queue[0]
			queue[0] = zero
			queue = queue[1:]
			s.sessions[session] = queue
			return evicted, true
		}
		s.sessions[session] = queue
		return zero, false
	}
}

// PushAsOldest inserts value as if it had arrived before everything already
// stored. When the buffer is full the element that would not have survived
// is returned: value itself under KeepLast, the newest element under
// KeepFirst.
func (s *BufferStorage[T]) PushAsOldest(session api.Entity, value T) (T, bool) {
	var zero T
	limit, bounded := s.settings.Retention().Limit()
	queue := s.sessions[session]

	var replaced T
	var evicted bool
	if bounded {
		if limit == 0 {
			return value, true
		}
		if len(queue) >= limit {
			if s.settings.Retention().Kind() != api.RetentionKeepFirst {
				return value, true
			}
			last := len(queue) - 1
			replaced, evicted = queue[last], true
			queue[last] = zero
			queue = queue[:last]
		}
	}

	s.sessions[session] = slices.Insert(queue, 0, value)
	return replaced, evicted
}

// Pull removes and returns the oldest element.
func (s *BufferStorage[T]) Pull(session api.Entity) (T, bool) {
	var zero T
	queue := s.sessions[session]
	if len(queue) == 0 {
		return zero, false
	}
	v := queue[0]
	queue[0] = zero
	s.sessions[session] = queue[1:]
	return v, true
}

// PullNewest removes and returns the newest element.
func (s *BufferStorage[T]) PullNewest(session api.Entity) (T, bool) {
	var zero T
	queue := s.sessions[session]
	if len(queue) == 0 {
		return zero, false
	}
	last := len(queue) - 1
	v := queue[last]
	queue[last] = zero
	s.sessions[session] = queue[:last]
	return v, true
}

// Get returns the element at index, counting from the oldest.
func (s *BufferStorage[T]) Get(session api.Entity, index int) (T, bool) {
	var zero T
	queue := s.sessions[session]
	if index < 0 || index >= len(queue) {
		return zero, false
	}
	return queue[index], true
}

// GetMut returns a pointer to the element at index, or nil when out of range.
// The pointer is only valid until the next structural change of the session.
func (s *BufferStorage[T]) GetMut(session api.Entity, index int) *T {
	queue := s.sessions[session]
	if index < 0 || index >= len(queue) {
		return nil
	}
	return &queue[index]
}

// Oldest returns the element at index 0.
func (s *BufferStorage[T]) Oldest(session api.Entity) (T, bool) {
	return s.Get(session, 0)
}

// Newest returns the element at the highest index.
func (s *BufferStorage[T]) Newest(session api.Entity) (T, bool) {
	return s.Get(session, s.Count(session)-1)
}

// OldestMut returns a pointer to the oldest element, or nil.
func (s *BufferStorage[T]) OldestMut(session api.Entity) *T {
	return s.GetMut(session, 0)
}

// NewestMut returns a pointer to the newest element, or nil.
func (s *BufferStorage[T]) NewestMut(session api.Entity) *T {
	return s.GetMut(session, s.Count(session)-1)
}

// NewestMutOrElse returns the newest element, inserting f() first when the
// session is empty. It returns nil when the policy cannot retain anything.
func (s *BufferStorage[T]) NewestMutOrElse(session api.Entity, f func() T) *T {
	if p := s.NewestMut(session); p != nil {
		return p
	}
	// Nothing can be evicted from an empty session, so a returned value
	// means the policy rejected it.
	if _, rejected := s.Push(session, f()); rejected {
		return nil
	}
	return s.NewestMut(session)
}

// All iterates over the values of session from oldest to newest. The
// sequence may be ranged over any number of times.
func (s *BufferStorage[T]) All(session api.Entity) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range s.sessions[session] {
			if !yield(v) {
				return
			}
		}
	}
}

// AllMut iterates over pointers to the values of session, oldest first.
func (s *BufferStorage[T]) AllMut(session api.Entity) iter.Seq[*T] {
	return func(yield func(*T) bool) {
		queue := s.sessions[session]
		for i := range queue {
			if !yield(&queue[i]) {
				return
			}
		}
	}
}

// Drain removes and returns the elements in [start, end), oldest first. The
// bounds are clamped to the stored range; an empty range removes nothing.
func (s *BufferStorage[T]) Drain(session api.Entity, start, end int) []T {
	queue := s.sessions[session]
	start = max(start, 0)
	end = min(end, len(queue))
	if start >= end {
		return nil
	}
	out := slices.Clone(queue[start:end])
	s.sessions[session] = slices.Delete(queue, start, end)
	return out
}

// Count returns the number of values stored for session.
func (s *BufferStorage[T]) Count(session api.Entity) int {
	return len(s.sessions[session])
}

// ClearSession releases the partition of session and returns how many values
// were dropped. Afterwards the session reads as if it never wrote anything.
func (s *BufferStorage[T]) ClearSession(session api.Entity) int {
	n := len(s.sessions[session])
	delete(s.sessions, session)
	return n
}

// Sessions lists the sessions that currently own a partition.
func (s *BufferStorage[T]) Sessions() []api.Entity {
	return slices.Collect(maps.Keys(s.sessions))
}
