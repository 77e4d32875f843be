package buffer

import (
	"fmt"
	"sync"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// EffectKind identifies a deferred effect.
type EffectKind int

const (
	// EffectBufferUpdated wakes the listeners of a buffer.
	EffectBufferUpdated EffectKind = iota
	// EffectGateChanged reports a gate transition to observers and history.
	EffectGateChanged
	// EffectKeyReleased reports that a key lifecycle has no references left.
	EffectKeyReleased
)

func (k EffectKind) String() string {
	switch k {
	case EffectBufferUpdated:
		return "buffer_updated"
	case EffectGateChanged:
		return "gate_changed"
	case EffectKeyReleased:
		return "key_released"
	default:
		return fmt.Sprintf("effect(%d)", int(k))
	}
}

// Effect is a descriptor queued during an access window and applied at the
// next World.Flush.
type Effect struct {
	Kind    EffectKind
	Buffer  api.Entity
	Session api.Entity

	// Accessor is the excluded accessor of a buffer update, or the accessor
	// of a released key.
	Accessor api.Entity

	// Gate is the new state of a gate transition.
	Gate api.Gate
}

// Update returns the notification carried by an EffectBufferUpdated.
func (e Effect) Update() api.BufferUpdate {
	return api.BufferUpdate{Buffer: e.Buffer, Session: e.Session, ExcludedAccessor: e.Accessor}
}

// EffectSink receives effects produced by guards.
type EffectSink interface {
	Defer(e Effect)
}

// Commands buffers effects for a single access window. World-level access
// collects into a Commands value and applies it once the guard is released.
type Commands struct {
	effects []Effect
}

var _ EffectSink = (*Commands)(nil)

func (c *Commands) Defer(e Effect) {
	c.effects = append(c.effects, e)
}

// Len returns the number of buffered effects.
func (c *Commands) Len() int {
	return len(c.effects)
}

// Effects returns the buffered effects in the order they were deferred.
func (c *Commands) Effects() []Effect {
	return c.effects
}

// Apply moves the buffered effects to the world queue and empties c.
func (c *Commands) Apply(w *World) {
	for _, e := range c.effects {
		w.Defer(e)
	}
	c.effects = nil
}

// releaseSink collects key-release reports. Keys may be released from any
// goroutine, so unlike the world queue it is guarded by a mutex.
type releaseSink struct {
	mu      sync.Mutex
	pending []Effect
}

func (s *releaseSink) report(e Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, e)
}

func (s *releaseSink) take() []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *releaseSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
