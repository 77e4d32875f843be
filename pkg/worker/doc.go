// Package worker applies queued tasks to a buffer World.
//
// A World is owned by one goroutine. Other goroutines hand work to that
// goroutine by enqueueing tasks on a taskqueue.Queue:
//
//   - completion tasks carry a Completion, the result of an asynchronous
//     step that re-enters the world through world-level buffer access
//   - conclude-session tasks release every buffer partition and gate state
//     a session holds
//
// The owning goroutine calls ProcessOne, ProcessReady or Apply. Effects the
// tasks produce stay queued on the World until its next Flush.
//
// Most applications use fluxbuf.LocalRunner, which wires a World, an
// in-memory queue and a Worker together.
package worker
