// Package fluxbuf provides the buffering and flow-control core of a reactive
// workflow engine.
//
// Nodes of a dataflow graph exchange typed values through buffers. A buffer
// retains values per session according to its retention policy, carries a
// gate per session, and wakes the nodes listening on it when a guard that
// modified it is released.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. World
//  2. Buffer and BufferSettings
//  3. Keys
//  4. Guards
//  5. LocalRunner
//
// # World
//
// The World is the arena that owns every buffer. Entities (buffers, nodes,
// sessions) are generation-checked handles, so a key for a despawned buffer
// resolves to ErrBufferMissing instead of reaching a reused slot.
//
// A World is single-owner. It queues the effects of every access and applies
// them only when World.Flush runs.
//
// # Buffer and BufferSettings
//
// CreateBuffer registers a buffer of T with one of three retention policies:
//
//   - KeepLast(n): keep the newest n values, evicting the oldest
//   - KeepFirst(n): keep the first n values, rejecting later ones
//   - KeepAll(): keep everything
//
// The zero BufferSettings means KeepLast(1).
//
// # Keys
//
// A BufferKey is the capability to reach one buffer within one session on
// behalf of one accessor node. Clones share a reference-counted lifecycle;
// DeepClone starts an independent one. A key minted through World.KeyBuilder
// reports its release to the observer once every clone has been released.
//
// # Guards
//
// BufferAccess hands out read-only BufferView guards. BufferAccessMut hands
// out BufferMut guards; releasing a guard that changed anything queues one
// BufferUpdate. The accessor that wrote is not woken by its own update unless
// the guard called AllowClosedLoops.
//
// Gates are reached through BufferGateAccess and BufferGateAccessMut. Opening
// or closing a gate never wakes listeners and never touches stored values.
//
// MutateBuffer and ViewBuffer reach a buffer straight from the World.
//
// # LocalRunner
//
// LocalRunner wires a World, an in-memory completion queue and a worker into
// a single-process scheduler. Asynchronous steps hand their results back with
// Submit; RunUntilIdle ticks until the world settles. NewSQLiteRunner does
// the same with the buffer history persisted in SQLite.
//
// LocalRunner is intentionally **not crash-durable**: buffer contents live in
// memory only.
package fluxbuf
