package buffer

// ViewBuffer resolves key directly against w, for callers that hold no
// BufferAccess, such as asynchronous completions.
func ViewBuffer[T any](w *World, key BufferKey[T]) (*BufferView[T], error) {
	return view(w, key)
}

// MutateBuffer resolves key against w, runs fn with a guard and releases it.
// The update the guard produces is queued on w once fn returns, or panics.
func MutateBuffer[T, U any](w *World, key BufferKey[T], fn func(*BufferMut[T]) (U, error)) (U, error) {
	var cmds Commands
	defer cmds.Apply(w)

	m, err := NewBufferAccessMut[T](w, &cmds).GetMut(key)
	if err != nil {
		var zero U
		return zero, err
	}
	defer m.Release()
	return fn(m)
}

// ViewGate resolves key to its gate directly against w.
func ViewGate(w *World, key AnyBufferKey) (*BufferGateView, error) {
	return gateView(w, key)
}

// MutateGate resolves key to its gate against w and runs fn. Gate
// transitions are reported on w once fn returns.
func MutateGate[U any](w *World, key AnyBufferKey, fn func(*BufferGateMut) (U, error)) (U, error) {
	var cmds Commands
	defer cmds.Apply(w)

	m, err := NewBufferGateAccessMut(w, &cmds).GetMut(key)
	if err != nil {
		var zero U
		return zero, err
	}
	return fn(m)
}
