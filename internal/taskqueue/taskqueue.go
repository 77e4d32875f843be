// Package taskqueue carries work from other goroutines to the goroutine that
// owns a buffer World.
package taskqueue

import (
	"context"
	"time"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// TaskType identifies what the scheduler should do with a task.
type TaskType string

const (
	// TaskTypeCompletion re-enters the world with the result of an
	// asynchronous step.
	TaskTypeCompletion TaskType = "completion"
	// TaskTypeConcludeSession releases everything a session holds.
	TaskTypeConcludeSession TaskType = "conclude-session"
)

// Task is a unit of work for the scheduler goroutine.
type Task struct {
	ID   string
	Type TaskType

	// Session the task belongs to.
	Session api.Entity

	// Name labels the task in logs.
	Name string

	// Payload is task-type specific:
	//   - completion: the callback to run against the world
	//   - conclude-session: unused
	Payload any

	EnqueuedAt time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// TryDequeue removes and returns the next task if one is ready.
	TryDequeue() (*Task, bool)

	// Len returns the approximate number of tasks queued.
	Len() int
}
