package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/fluxbuf/internal/taskqueue"
	"github.com/petrijr/fluxbuf/pkg/api"
	"github.com/petrijr/fluxbuf/pkg/buffer"
)

// ErrInvalidPayload is returned when a task payload does not match its type.
var ErrInvalidPayload = errors.New("invalid task payload")

// Completion re-enters the world with the result of an asynchronous step.
// It runs on the goroutine that owns w.
type Completion func(ctx context.Context, w *buffer.World) error

// Worker pulls tasks from a Queue and applies them to a World.
type Worker struct {
	world *buffer.World
	queue taskqueue.Queue
}

// New creates a new Worker.
func New(world *buffer.World, queue taskqueue.Queue) *Worker {
	return &Worker{
		world: world,
		queue: queue,
	}
}

// EnqueueCompletion enqueues fn to be applied to the world. It is safe to call
// from any goroutine. name labels the task in errors and logs.
func (w *Worker) EnqueueCompletion(ctx context.Context, session api.Entity, name string, fn Completion) error {
	if fn == nil {
		return fmt.Errorf("completion %q: %w", name, ErrInvalidPayload)
	}
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:    taskqueue.TaskTypeCompletion,
		Session: session,
		Name:    name,
		Payload: fn,
	})
}

// EnqueueConcludeSession enqueues the release of everything session holds,
// followed by the despawn of session itself.
func (w *Worker) EnqueueConcludeSession(ctx context.Context, session api.Entity) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:    taskqueue.TaskTypeConcludeSession,
		Session: session,
		Name:    "conclude " + session.String(),
	})
}

// ProcessOne pulls a single task from the queue and applies it.
// Returns (processed, error):
//   - processed == false: no task was obtained because ctx was cancelled
//   - processed == true: a task was applied; err reports whether it succeeded
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	return true, w.Apply(ctx, task)
}

// ProcessReady applies every task that is already queued without blocking and
// returns how many were applied. Task errors are joined; later tasks still
// run.
func (w *Worker) ProcessReady(ctx context.Context) (int, error) {
	var errs []error
	n := 0
	for ctx.Err() == nil {
		task, ok := w.queue.TryDequeue()
		if !ok {
			break
		}
		n++
		if err := w.Apply(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// Apply runs a single task against the world.
func (w *Worker) Apply(ctx context.Context, task *taskqueue.Task) error {
	switch task.Type {
	case taskqueue.TaskTypeCompletion:
		fn, ok := task.Payload.(Completion)
		if !ok || fn == nil {
			return fmt.Errorf("completion %q: %w", task.Name, ErrInvalidPayload)
		}
		if err := fn(ctx, w.world); err != nil {
			return fmt.Errorf("completion %q in session %s: %w", task.Name, task.Session, err)
		}
		return nil

	case taskqueue.TaskTypeConcludeSession:
		// The session is despawned even when recording its history failed.
		_, err := w.world.ClearSession(ctx, task.Session)
		w.world.Despawn(task.Session)
		if err != nil {
			return fmt.Errorf("conclude session %s: %w", task.Session, err)
		}
		return nil

	default:
		// Unknown task type; return an error so this isn't silently ignored.
		return errors.New("unknown task type: " + string(task.Type))
	}
}
