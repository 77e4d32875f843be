// Package api contains the shared, non-generic building blocks of the fluxbuf
// buffer core: entity handles, buffer identities, retention settings, gate
// states, update notifications, history events and the Observer family.
//
// Most users interact with the higher-level fluxbuf package, which re-exports
// selected types and helpers from this package, and with pkg/buffer for the
// typed buffer accessors. The api package is useful when writing custom
// observers, event stores or schedulers.
//
// # Entities
//
// Every addressable thing in a World (buffers, sessions, nodes, workflow
// scopes) is identified by an Entity: an arena index plus a generation.
// A despawned entity's slot may be reused, but the generation changes, so a
// stale handle never resolves to the new occupant. The zero Entity is never
// allocated and stands for "none".
//
// # Retention
//
// A buffer is created with BufferSettings holding one RetentionPolicy:
//
//   - KeepLast(n): keep the n newest values, evicting the oldest.
//   - KeepFirst(n): keep the first n values, rejecting newcomers.
//   - KeepAll(): never limit.
//
// The zero BufferSettings is KeepLast(1).
//
// # Notifications
//
// A BufferUpdate announces that one buffer changed within one session. It
// carries the accessor that produced the change so listeners that caused it
// are not woken by their own write (closed-loop suppression).
//
// # Observability
//
// Observer receives lifecycle callbacks from the world flush: updates,
// listener wake-ups and suppressions, gate transitions, session clears and
// key releases. LoggingObserver, BasicMetrics and CompositeObserver are
// ready-made implementations.
package api
