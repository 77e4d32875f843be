package storage

import "github.com/petrijr/fluxbuf/pkg/api"

// GateState stores the gate of one buffer for every session. Sessions that
// never touched the gate read as open.
type GateState struct {
	closed map[api.Entity]struct{}
}

// NewGateState returns a gate state where every session is open.
func NewGateState() *GateState {
	return &GateState{closed: make(map[api.Entity]struct{})}
}

// Get returns the gate of session.
func (g *GateState) Get(session api.Entity) api.Gate {
	if _, ok := g.closed[session]; ok {
		return api.GateClosed
	}
	return api.GateOpen
}

// Open opens the gate of session and reports whether it was closed.
func (g *GateState) Open(session api.Entity) bool {
	if _, ok := g.closed[session]; !ok {
		return false
	}
	delete(g.closed, session)
	return true
}

// Close closes the gate of session and reports whether it was open.
func (g *GateState) Close(session api.Entity) bool {
	if _, ok := g.closed[session]; ok {
		return false
	}
	g.closed[session] = struct{}{}
	return true
}

// ClearSession forgets the gate of session, which reads as open afterwards.
func (g *GateState) ClearSession(session api.Entity) {
	delete(g.closed, session)
}
