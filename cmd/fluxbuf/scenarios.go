package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/petrijr/fluxbuf"
)

// scenario runs against a fresh session of runner and writes what it
// observed to out.
type scenario struct {
	name  string
	about string
	run   func(ctx context.Context, r *fluxbuf.LocalRunner, session fluxbuf.Entity, out io.Writer) error
}

var scenarios = []scenario{
	{name: "keep-last", about: "KeepLast(1) keeps only the newest value", run: runKeepLast},
	{name: "keep-first", about: "KeepFirst(2) rejects values once full", run: runKeepFirst},
	{name: "gate", about: "closing a gate neither wakes listeners nor touches values", run: runGate},
	{name: "closed-loop", about: "a writer is not woken by its own update", run: runClosedLoop},
}

func findScenario(name string) (scenario, bool) {
	i := slices.IndexFunc(scenarios, func(s scenario) bool { return s.name == name })
	if i < 0 {
		return scenario{}, false
	}
	return scenarios[i], true
}

// node is a buffer plus the key one accessor holds on it.
type node[T any] struct {
	buf fluxbuf.Buffer[T]
	key fluxbuf.BufferKey[T]
}

func newNode[T any](r *fluxbuf.LocalRunner, session fluxbuf.Entity, settings fluxbuf.BufferSettings) (node[T], fluxbuf.Entity) {
	var n node[T]
	var accessor fluxbuf.Entity
	_ = r.Do(func(w *fluxbuf.World) error {
		accessor = w.Spawn()
		n.buf = fluxbuf.CreateBuffer[T](w, w.Spawn(), settings)
		n.key = fluxbuf.CreateKey(n.buf, w.KeyBuilder(session, accessor))
		return nil
	})
	return n, accessor
}

func pushAll[T any](key fluxbuf.BufferKey[T], values ...T) fluxbuf.Completion {
	return func(ctx context.Context, w *fluxbuf.World) error {
		_, err := fluxbuf.MutateBuffer(w, key, func(m *fluxbuf.BufferMut[T]) (struct{}, error) {
			for _, v := range values {
				m.Push(v)
			}
			return struct{}{}, nil
		})
		return err
	}
}

func contents[T any](r *fluxbuf.LocalRunner, key fluxbuf.BufferKey[T]) ([]T, error) {
	var out []T
	err := r.Do(func(w *fluxbuf.World) error {
		view, err := fluxbuf.ViewBuffer(w, key)
		if err != nil {
			return err
		}
		out = slices.Collect(view.All())
		return nil
	})
	return out, err
}

func settle(ctx context.Context, r *fluxbuf.LocalRunner, fn fluxbuf.Completion) (int, error) {
	if err := r.Submit(ctx, fn); err != nil {
		return 0, err
	}
	return r.RunUntilIdle(ctx)
}

func runKeepLast(ctx context.Context, r *fluxbuf.LocalRunner, session fluxbuf.Entity, out io.Writer) error {
	n, _ := newNode[int](r, session, fluxbuf.KeepLastSettings(1))
	defer n.key.Release()

	if _, err := settle(ctx, r, pushAll(n.key, 1, 2, 3)); err != nil {
		return err
	}
	values, err := contents(r, n.key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pushed [1 2 3], buffer holds %v\n", values)
	return nil
}

func runKeepFirst(ctx context.Context, r *fluxbuf.LocalRunner, session fluxbuf.Entity, out io.Writer) error {
	n, _ := newNode[int](r, session, fluxbuf.KeepFirstSettings(2))
	defer n.key.Release()

	var rejected []int
	_, err := settle(ctx, r, func(ctx context.Context, w *fluxbuf.World) error {
		_, err := fluxbuf.MutateBuffer(w, n.key, func(m *fluxbuf.BufferMut[int]) (struct{}, error) {
			for _, v := range []int{1, 2, 3} {
				if back, ok := m.Push(v); ok {
					rejected = append(rejected, back)
				}
			}
			return struct{}{}, nil
		})
		return err
	})
	if err != nil {
		return err
	}
	values, err := contents(r, n.key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pushed [1 2 3], buffer holds %v, rejected %v\n", values, rejected)
	return nil
}

func runGate(ctx context.Context, r *fluxbuf.LocalRunner, session fluxbuf.Entity, out io.Writer) error {
	n, _ := newNode[string](r, session, fluxbuf.KeepAllSettings())
	defer n.key.Release()

	woken := 0
	err := r.Do(func(w *fluxbuf.World) error {
		return w.Listen(n.buf.ID(), w.Spawn(), func(context.Context, *fluxbuf.World, fluxbuf.BufferUpdate) error {
			woken++
			return nil
		})
	})
	if err != nil {
		return err
	}

	if _, err := settle(ctx, r, pushAll(n.key, "x")); err != nil {
		return err
	}
	before := woken

	_, err = settle(ctx, r, func(ctx context.Context, w *fluxbuf.World) error {
		_, err := fluxbuf.MutateGate(w, n.key.Any(), func(g *fluxbuf.BufferGateMut) (struct{}, error) {
			g.CloseGate()
			return struct{}{}, nil
		})
		return err
	})
	if err != nil {
		return err
	}

	var gate fluxbuf.Gate
	var count int
	err = r.Do(func(w *fluxbuf.World) error {
		view, err := fluxbuf.ViewGate(w, n.key.Any())
		if err != nil {
			return err
		}
		gate = view.Gate()
		count, err = w.Count(n.buf.ID(), session)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "gate %s, values %d, wakes from closing %d\n", gate, count, woken-before)
	return nil
}

func runClosedLoop(ctx context.Context, r *fluxbuf.LocalRunner, session fluxbuf.Entity, out io.Writer) error {
	n, writer := newNode[int](r, session, fluxbuf.KeepAllSettings())
	defer n.key.Release()

	var wokenWriter, wokenOther int
	err := r.Do(func(w *fluxbuf.World) error {
		if err := w.Listen(n.buf.ID(), writer, func(context.Context, *fluxbuf.World, fluxbuf.BufferUpdate) error {
			wokenWriter++
			return nil
		}); err != nil {
			return err
		}
		return w.Listen(n.buf.ID(), w.Spawn(), func(context.Context, *fluxbuf.World, fluxbuf.BufferUpdate) error {
			wokenOther++
			return nil
		})
	})
	if err != nil {
		return err
	}

	if _, err := settle(ctx, r, pushAll(n.key, 1)); err != nil {
		return err
	}
	fmt.Fprintf(out, "writer woken %d, other listener woken %d\n", wokenWriter, wokenOther)
	return nil
}
