// Package buffer implements typed buffers on top of a World arena.
//
// A World owns every buffer. Each buffer keeps one ordered partition of
// values per session, trimmed by its retention policy, and one gate per
// session. Values are reached through keys:
//
//	w := buffer.NewWorld()
//	scope, session, node := w.Spawn(), w.Spawn(), w.Spawn()
//	buf := buffer.CreateBuffer[int](w, scope, api.KeepLastSettings(3))
//	key := buffer.CreateKey(buf, w.KeyBuilder(session, node))
//	defer key.Release()
//
//	err := buffer.NewBufferAccessMut[int](w, nil).With(key, func(m *buffer.BufferMut[int]) error {
//		m.Push(42)
//		return nil
//	})
//
// # Notifications
//
// Releasing a modified BufferMut queues exactly one update effect. Nothing
// is delivered until World.Flush, which wakes the listeners registered with
// World.Listen. The node that minted the key is not woken by its own write
// unless the guard called AllowClosedLoops.
//
// # Keys
//
// Plain clones of a key share one reference-counted lifecycle; DeepClone
// starts a new one. Once every reference of a lifecycle minted through
// World.KeyBuilder is released, the next flush reports it to the observer.
package buffer
