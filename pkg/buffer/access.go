package buffer

// BufferAccess resolves keys to read-only views.
type BufferAccess[T any] struct {
	w *World
}

// NewBufferAccess returns a read-only accessor over w.
func NewBufferAccess[T any](w *World) BufferAccess[T] {
	return BufferAccess[T]{w: w}
}

// Get resolves key. It fails with api.ErrBufferMissing when the buffer is
// gone or does not hold T values.
func (a BufferAccess[T]) Get(key BufferKey[T]) (*BufferView[T], error) {
	return view(a.w, key)
}

// GetNewest returns the newest value for key, or false on any failure.
func (a BufferAccess[T]) GetNewest(key BufferKey[T]) (T, bool) {
	return newest(a.w, key)
}

// BufferAccessMut resolves keys to mutable guards whose updates go to sink.
type BufferAccessMut[T any] struct {
	w    *World
	sink EffectSink
}

// NewBufferAccessMut returns a mutable accessor over w. A nil sink sends
// updates straight to the world queue.
func NewBufferAccessMut[T any](w *World, sink EffectSink) BufferAccessMut[T] {
	if sink == nil {
		sink = w
	}
	return BufferAccessMut[T]{w: w, sink: sink}
}

func (a BufferAccessMut[T]) Get(key BufferKey[T]) (*BufferView[T], error) {
	return view(a.w, key)
}

func (a BufferAccessMut[T]) GetNewest(key BufferKey[T]) (T, bool) {
	return newest(a.w, key)
}

// GetMut resolves key to a guard. The caller owns the guard and must
// Release it.
func (a BufferAccessMut[T]) GetMut(key BufferKey[T]) (*BufferMut[T], error) {
	_, s, err := lookup[T](a.w, key.Buffer())
	if err != nil {
		return nil, err
	}
	return &BufferMut[T]{
		buffer:   key.Buffer(),
		session:  key.Session(),
		accessor: key.Accessor(),
		storage:  s,
		sink:     a.sink,
	}, nil
}

// With resolves key, runs fn with the guard and releases it afterwards,
// including when fn panics.
func (a BufferAccessMut[T]) With(key BufferKey[T], fn func(*BufferMut[T]) error) error {
	m, err := a.GetMut(key)
	if err != nil {
		return err
	}
	defer m.Release()
	return fn(m)
}

func view[T any](w *World, key BufferKey[T]) (*BufferView[T], error) {
	_, s, err := lookup[T](w, key.Buffer())
	if err != nil {
		return nil, err
	}
	return &BufferView[T]{session: key.Session(), storage: s}, nil
}

func newest[T any](w *World, key BufferKey[T]) (T, bool) {
	v, err := view(w, key)
	if err != nil {
		var zero T
		return zero, false
	}
	return v.Newest()
}
