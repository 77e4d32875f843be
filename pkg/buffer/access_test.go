package buffer

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/fluxbuf/pkg/api"
)

type fixture struct {
	w       *World
	scope   api.Entity
	session api.Entity
	node    api.Entity
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	w := NewWorldWithConfig(cfg)
	return fixture{w: w, scope: w.Spawn(), session: w.Spawn(), node: w.Spawn()}
}

func pushAll[T any](t *testing.T, w *World, key BufferKey[T], values ...T) {
	t.Helper()
	err := NewBufferAccessMut[T](w, nil).With(key, func(m *BufferMut[T]) error {
		for _, v := range values {
			m.Push(v)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBufferMut_OneUpdatePerGuard(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	m, err := NewBufferAccessMut[int](f.w, nil).GetMut(key)
	require.NoError(t, err)
	m.Push(1)
	m.Push(2)
	m.Pull()
	m.PushAsOldest(0)
	require.Zero(t, f.w.Pending(), "nothing is queued before release")

	m.Release()
	m.Release()
	require.Equal(t, 1, f.w.Pending())

	require.Equal(t, []Effect{{
		Kind:     EffectBufferUpdated,
		Buffer:   buf.ID(),
		Session:  f.session,
		Accessor: f.node,
	}}, f.w.queue)
}

func TestBufferMut_UnmodifiedGuardIsSilent(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	err := NewBufferAccessMut[int](f.w, nil).With(key, func(m *BufferMut[int]) error {
		_, _ = m.Newest()
		_ = m.Len()
		_ = slices.Collect(m.All())
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, f.w.Pending())
}

func TestBufferMut_PulseNotifiesWithoutData(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	err := NewBufferAccessMut[int](f.w, nil).With(key, func(m *BufferMut[int]) error {
		m.Pulse()
		require.True(t, m.Modified())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.w.Pending())

	n, err := f.w.Count(buf.ID(), f.session)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBufferMut_PullOnEmptyStillNotifies(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	err := NewBufferAccessMut[int](f.w, nil).With(key, func(m *BufferMut[int]) error {
		_, ok := m.Pull()
		require.False(t, ok)
		require.True(t, m.Modified())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.w.Pending())
}

func TestBufferMut_ReleasedGuardDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	var escaped *BufferMut[int]
	err := NewBufferAccessMut[int](f.w, nil).With(key, func(m *BufferMut[int]) error {
		escaped = m
		m.Push(1)
		return nil
	})
	require.NoError(t, err)
	_, err = f.w.Flush(ctx)
	require.NoError(t, err)

	_, ok := escaped.Push(2)
	require.False(t, ok)
	_, ok = escaped.PushAsOldest(0)
	require.False(t, ok)
	_, ok = escaped.Pull()
	require.False(t, ok)
	_, ok = escaped.PullNewest()
	require.False(t, ok)
	require.Nil(t, escaped.GetMut(0))
	require.Nil(t, escaped.OldestMut())
	require.Nil(t, escaped.NewestMut())
	require.Nil(t, escaped.NewestMutOrDefault())
	require.Empty(t, slices.Collect(escaped.AllMut()))
	require.Nil(t, escaped.DrainAll())
	escaped.Pulse()
	escaped.Release()

	require.Zero(t, f.w.Pending(), "a released guard queues nothing")
	n, err := f.w.Count(buf.ID(), f.session)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, ok := escaped.Newest()
	require.True(t, ok, "reads still work")
	require.Equal(t, 1, v)
}

func TestBufferMut_AllowClosedLoopsClearsExclusion(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	err := NewBufferAccessMut[int](f.w, nil).With(key, func(m *BufferMut[int]) error {
		m.AllowClosedLoops().Push(1)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, f.w.queue, 1)
	require.True(t, f.w.queue[0].Update().ExcludedAccessor.IsZero())
}

func TestBufferAccessMut_WithReleasesOnErrorAndPanic(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	access := NewBufferAccessMut[int](f.w, nil)

	boom := errors.New("boom")
	err := access.With(key, func(m *BufferMut[int]) error {
		m.Push(1)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, f.w.Pending())

	require.Panics(t, func() {
		_ = access.With(key, func(m *BufferMut[int]) error {
			m.Push(2)
			panic("step failed")
		})
	})
	require.Equal(t, 2, f.w.Pending())
}

func TestBufferMut_ForwardsStorageOperations(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[string](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	err := NewBufferAccessMut[string](f.w, nil).With(key, func(m *BufferMut[string]) error {
		require.True(t, m.IsEmpty())
		*m.NewestMutOrDefault() += "a"
		m.Push("b")
		m.Push("c")
		m.Push("d")

		*m.OldestMut() += "!"
		*m.GetMut(1) += "?"
		for p := range m.AllMut() {
			*p += "."
		}

		newest, _ := m.PullNewest()
		require.Equal(t, "d.", newest)
		require.Equal(t, []string{"b?."}, m.Drain(1, 2))
		require.Equal(t, []string{"a!.", "c."}, m.DrainAll())
		require.True(t, m.IsEmpty())
		return nil
	})
	require.NoError(t, err)
}

func TestBufferAccess_ReadOnlyView(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepLastSettings(2))
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	pushAll(t, f.w, key, 1, 2, 3)

	v, err := NewBufferAccess[int](f.w).Get(key)
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())
	require.False(t, v.IsEmpty())
	require.Equal(t, []int{2, 3}, slices.Collect(v.All()))

	oldest, ok := v.Oldest()
	require.True(t, ok)
	require.Equal(t, 2, oldest)
	_, ok = v.Get(2)
	require.False(t, ok)

	newest, ok := NewBufferAccess[int](f.w).GetNewest(key)
	require.True(t, ok)
	require.Equal(t, 3, newest)
}

func TestBufferAccess_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t, Config{})
	other := f.w.Spawn()
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	keyA := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	keyB := CreateKey(buf, f.w.KeyBuilder(other, f.node))

	pushAll(t, f.w, keyA, 1, 2)

	v, err := NewBufferAccess[int](f.w).Get(keyB)
	require.NoError(t, err)
	require.True(t, v.IsEmpty())
	_, ok := NewBufferAccess[int](f.w).GetNewest(keyB)
	require.False(t, ok)
}

func TestBufferAccess_MissingBuffer(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	pushAll(t, f.w, key, 7)

	require.True(t, f.w.Despawn(buf.ID()))

	_, err := NewBufferAccess[int](f.w).Get(key)
	require.ErrorIs(t, err, api.ErrBufferMissing)
	_, err = NewBufferAccessMut[int](f.w, nil).GetMut(key)
	require.ErrorIs(t, err, api.ErrBufferMissing)
	_, ok := NewBufferAccess[int](f.w).GetNewest(key)
	require.False(t, ok)

	err = NewBufferAccessMut[int](f.w, nil).With(key, func(*BufferMut[int]) error {
		t.Fatal("callback must not run for a missing buffer")
		return nil
	})
	require.ErrorIs(t, err, api.ErrBufferMissing)

	// A new buffer reusing the slot must not be reachable through the stale key.
	reused := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	require.Equal(t, buf.ID().Index, reused.ID().Index)
	_, err = NewBufferAccess[int](f.w).Get(key)
	require.ErrorIs(t, err, api.ErrBufferMissing)
}

func TestBufferAccess_WrongElementType(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	mistyped := Buffer[string]{location: buf.Location()}
	key := CreateKey(mistyped, f.w.KeyBuilder(f.session, f.node))

	_, err := NewBufferAccess[string](f.w).Get(key)
	require.ErrorIs(t, err, api.ErrBufferMissing)
	require.Contains(t, err.Error(), "string")
}

func TestWorldAccess_MutateBufferQueuesAfterCallback(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	got, err := MutateBuffer(f.w, key, func(m *BufferMut[int]) (int, error) {
		m.Push(4)
		m.Push(5)
		require.Zero(t, f.w.Pending(), "effects are applied after the callback")
		return m.Len(), nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, got)
	require.Equal(t, 1, f.w.Pending())

	v, err := ViewBuffer(f.w, key)
	require.NoError(t, err)
	require.Equal(t, []int{4, 5}, slices.Collect(v.All()))
}

func TestWorldAccess_MutateBufferAppliesOnError(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.KeepAllSettings())
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))

	boom := errors.New("async step failed")
	_, err := MutateBuffer(f.w, key, func(m *BufferMut[int]) (struct{}, error) {
		m.Push(1)
		return struct{}{}, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, f.w.Pending())
}

func TestWorldAccess_MissingBuffer(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	f.w.Despawn(buf.ID())

	_, err := ViewBuffer(f.w, key)
	require.ErrorIs(t, err, api.ErrBufferMissing)

	called := false
	_, err = MutateBuffer(f.w, key, func(m *BufferMut[int]) (int, error) {
		called = true
		return 0, nil
	})
	require.ErrorIs(t, err, api.ErrBufferMissing)
	require.False(t, called)

	_, err = ViewGate(f.w, key.Any())
	require.ErrorIs(t, err, api.ErrBufferMissing)
	_, err = MutateGate(f.w, key.Any(), func(*BufferGateMut) (int, error) { return 0, nil })
	require.ErrorIs(t, err, api.ErrBufferMissing)
	require.Zero(t, f.w.Pending())
}

func TestCommands_ApplyMovesEffects(t *testing.T) {
	w := NewWorld()
	var cmds Commands
	cmds.Defer(Effect{Kind: EffectBufferUpdated})
	cmds.Defer(Effect{Kind: EffectGateChanged, Gate: api.GateClosed})
	require.Equal(t, 2, cmds.Len())

	cmds.Apply(w)
	require.Zero(t, cmds.Len())
	require.Equal(t, 2, w.Pending())
	require.Equal(t, EffectGateChanged, w.queue[1].Kind)
}

func TestFlush_ContextCancelledKeepsEffects(t *testing.T) {
	f := newFixture(t, Config{})
	buf := CreateBuffer[int](f.w, f.scope, api.BufferSettings{})
	key := CreateKey(buf, f.w.KeyBuilder(f.session, f.node))
	pushAll(t, f.w, key, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.w.Flush(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, f.w.Pending())
}
