package buffer

import (
	"github.com/petrijr/fluxbuf/internal/storage"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// BufferGateAccess resolves type-erased keys to read-only gate views.
type BufferGateAccess struct {
	w *World
}

func NewBufferGateAccess(w *World) BufferGateAccess {
	return BufferGateAccess{w: w}
}

// Get fails with api.ErrBufferMissing when the buffer is gone.
func (a BufferGateAccess) Get(key AnyBufferKey) (*BufferGateView, error) {
	return gateView(a.w, key)
}

// BufferGateAccessMut resolves type-erased keys to mutable gate guards.
type BufferGateAccessMut struct {
	w    *World
	sink EffectSink
}

// NewBufferGateAccessMut returns a gate accessor whose transition reports go
// to sink, or to the world queue when sink is nil.
func NewBufferGateAccessMut(w *World, sink EffectSink) BufferGateAccessMut {
	if sink == nil {
		sink = w
	}
	return BufferGateAccessMut{w: w, sink: sink}
}

func (a BufferGateAccessMut) Get(key AnyBufferKey) (*BufferGateView, error) {
	return gateView(a.w, key)
}

func (a BufferGateAccessMut) GetMut(key AnyBufferKey) (*BufferGateMut, error) {
	rec, err := a.w.record(key.Buffer())
	if err != nil {
		return nil, err
	}
	return &BufferGateMut{
		buffer:   key.Buffer(),
		session:  key.Session(),
		accessor: key.Accessor(),
		gate:     rec.gate,
		sink:     a.sink,
	}, nil
}

// BufferGateView reads the gate of one buffer in one session.
type BufferGateView struct {
	session api.Entity
	gate    *storage.GateState
}

func (v *BufferGateView) Gate() api.Gate {
	return v.gate.Get(v.session)
}

// BufferGateMut opens and closes the gate of one buffer in one session.
// Gate changes never wake listeners and never touch stored values.
type BufferGateMut struct {
	buffer   api.Entity
	session  api.Entity
	accessor api.Entity
	gate     *storage.GateState
	sink     EffectSink
}

func (m *BufferGateMut) Gate() api.Gate {
	return m.gate.Get(m.session)
}

// OpenGate opens the gate. Opening an open gate does nothing.
func (m *BufferGateMut) OpenGate() {
	if m.gate.Open(m.session) {
		m.report(api.GateOpen)
	}
}

// CloseGate closes the gate. Closing a closed gate does nothing.
func (m *BufferGateMut) CloseGate() {
	if m.gate.Close(m.session) {
		m.report(api.GateClosed)
	}
}

func (m *BufferGateMut) report(g api.Gate) {
	m.sink.Defer(Effect{
		Kind:     EffectGateChanged,
		Buffer:   m.buffer,
		Session:  m.session,
		Accessor: m.accessor,
		Gate:     g,
	})
}

func gateView(w *World, key AnyBufferKey) (*BufferGateView, error) {
	rec, err := w.record(key.Buffer())
	if err != nil {
		return nil, err
	}
	return &BufferGateView{session: key.Session(), gate: rec.gate}, nil
}
