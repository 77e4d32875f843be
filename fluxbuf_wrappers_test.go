package fluxbuf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWrappers_ForwardToBufferPackage exercises the re-exported helpers
// end-to-end without importing pkg/buffer.
func TestWrappers_ForwardToBufferPackage(t *testing.T) {
	w := NewWorld()
	scope, session, node := w.Spawn(), w.Spawn(), w.Spawn()
	buf := CreateBuffer[string](w, scope, KeepFirstSettings(2))
	key := CreateKey(buf, NewKeyBuilder(session, node))

	err := NewBufferAccessMut[string](w, nil).With(key, func(m *BufferMut[string]) error {
		m.Push("a")
		m.Push("b")
		if rejected, ok := m.Push("c"); !ok || rejected != "c" {
			t.Fatalf("expected c rejected, got %q (ok=%v)", rejected, ok)
		}
		return nil
	})
	require.NoError(t, err)

	n, err := MutateBuffer(w, key, func(m *BufferMut[string]) (int, error) {
		v, _ := m.Pull()
		require.Equal(t, "a", v)
		return m.Len(), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	view, err := ViewBuffer(w, key)
	require.NoError(t, err)
	newest, ok := view.Newest()
	require.True(t, ok)
	require.Equal(t, "b", newest)

	newest, ok = NewBufferAccess[string](w).GetNewest(key)
	require.True(t, ok)
	require.Equal(t, "b", newest)

	gate, err := MutateGate(w, key.Any(), func(g *BufferGateMut) (Gate, error) {
		g.CloseGate()
		return g.Gate(), nil
	})
	require.NoError(t, err)
	require.Equal(t, GateClosed, gate)

	gv, err := ViewGate(w, key.Any())
	require.NoError(t, err)
	require.Equal(t, GateClosed, gv.Gate())

	require.True(t, w.Despawn(buf.ID()))
	_, err = ViewBuffer(w, key)
	require.True(t, errors.Is(err, ErrBufferMissing), "got %v", err)
	_, err = ViewGate(w, key.Any())
	require.True(t, errors.Is(err, ErrBufferMissing), "got %v", err)
}
