package fluxbuf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/fluxbuf/internal/persistence"
	"github.com/petrijr/fluxbuf/internal/taskqueue"
	"github.com/petrijr/fluxbuf/pkg/api"
	"github.com/petrijr/fluxbuf/pkg/buffer"
	"github.com/petrijr/fluxbuf/pkg/worker"
)

var (
	// ErrRunnerStopped is returned once Stop has been called.
	ErrRunnerStopped = errors.New("fluxbuf: LocalRunner stopped")
	// ErrRunnerStarted is returned by Start when the loop is already running.
	ErrRunnerStarted = errors.New("fluxbuf: LocalRunner already started")
	// ErrTickLimit is returned when the world did not settle within the
	// configured number of ticks, usually because listeners keep waking each
	// other.
	ErrTickLimit = errors.New("fluxbuf: tick limit reached before the world settled")
)

// DefaultMaxTicks bounds RunUntilIdle when no WithMaxTicks option is given.
const DefaultMaxTicks = 1000

type runnerOptions struct {
	observer      api.Observer
	events        persistence.EventStore
	clock         func() time.Time
	queueCapacity int
	maxTicks      int
	logger        *slog.Logger
	runID         string
}

// Option configures a LocalRunner.
type Option func(*runnerOptions)

// WithObserver sets the observer notified by every flush.
func WithObserver(obs Observer) Option {
	return func(o *runnerOptions) { o.observer = obs }
}

// WithEventStore records buffer history into store.
func WithEventStore(store persistence.EventStore) Option {
	return func(o *runnerOptions) { o.events = store }
}

// WithClock sets the clock used to stamp history events.
func WithClock(clock func() time.Time) Option {
	return func(o *runnerOptions) { o.clock = clock }
}

// WithRunID sets the run id stamped on recorded history. Without it every
// runner draws a fresh UUID, so runners sharing one event store never mix
// their sessions.
func WithRunID(id string) Option {
	return func(o *runnerOptions) { o.runID = id }
}

// WithQueueCapacity sets the capacity of the completion queue.
func WithQueueCapacity(n int) Option {
	return func(o *runnerOptions) { o.queueCapacity = n }
}

// WithMaxTicks bounds how many ticks RunUntilIdle and the background loop
// spend settling the world.
func WithMaxTicks(n int) Option {
	return func(o *runnerOptions) { o.maxTicks = n }
}

// WithLogger sets the logger used for background loop errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *runnerOptions) { o.logger = l }
}

// LocalRunner bundles a World, an in-memory completion queue and a Worker
// into a single-process scheduler for development and tests.
//
// The World is owned by the runner: every method that touches it takes the
// runner's lock, so the world is only ever used by one goroutine at a time.
// Asynchronous steps hand their results back through Submit.
//
// Typical usage:
//
//	runner := fluxbuf.NewLocalRunner()
//	session := runner.NewSession()
//	_ = runner.Do(func(w *fluxbuf.World) error {
//		buf := fluxbuf.CreateBuffer[int](w, session, fluxbuf.KeepAllSettings())
//		...
//		return nil
//	})
//
//	_ = runner.Submit(ctx, func(ctx context.Context, w *fluxbuf.World) error { ... })
//	_, err := runner.RunUntilIdle(ctx)
type LocalRunner struct {
	// World owns every buffer. Use Do to reach it while the runner may be
	// ticking in the background.
	World *World

	// Queue carries completions to the goroutine that owns World.
	Queue taskqueue.Queue

	// Worker applies queued completions to World.
	Worker *worker.Worker

	maxTicks int
	logger   *slog.Logger

	// worldMu serializes all access to World.
	worldMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	stopped bool
}

// NewLocalRunner constructs a LocalRunner backed by a fresh World and an
// in-memory queue.
func NewLocalRunner(opts ...Option) *LocalRunner {
	o := runnerOptions{
		queueCapacity: taskqueue.DefaultCapacity,
		maxTicks:      DefaultMaxTicks,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxTicks <= 0 {
		o.maxTicks = DefaultMaxTicks
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	w := buffer.NewWorldWithConfig(buffer.Config{
		Observer: o.observer,
		Events:   o.events,
		Clock:    o.clock,
		RunID:    o.runID,
	})
	q := taskqueue.NewInMemoryQueue(o.queueCapacity)

	return &LocalRunner{
		World:    w,
		Queue:    q,
		Worker:   worker.New(w, q),
		maxTicks: o.maxTicks,
		logger:   o.logger,
	}
}

// Do runs fn with exclusive access to the world. Effects fn produces wait
// for the next tick.
func (r *LocalRunner) Do(fn func(w *World) error) error {
	r.worldMu.Lock()
	defer r.worldMu.Unlock()
	return fn(r.World)
}

// RunID returns the id that scopes this runner's recorded history.
func (r *LocalRunner) RunID() string {
	return r.World.RunID()
}

// NewSession spawns a new session entity.
func (r *LocalRunner) NewSession() Entity {
	r.worldMu.Lock()
	defer r.worldMu.Unlock()
	return r.World.Spawn()
}

// ConcludeSession releases every buffer partition and gate state held by
// session and despawns it. It returns the number of values released.
func (r *LocalRunner) ConcludeSession(ctx context.Context, session Entity) (int, error) {
	r.worldMu.Lock()
	defer r.worldMu.Unlock()

	released, err := r.World.ClearSession(ctx, session)
	r.World.Despawn(session)
	return released, err
}

// ConcludeSessionAsync queues the release of session for the next tick.
func (r *LocalRunner) ConcludeSessionAsync(ctx context.Context, session Entity) error {
	if r.isStopped() {
		return ErrRunnerStopped
	}
	return r.Worker.EnqueueConcludeSession(ctx, session)
}

// Submit queues fn to run against the world at the next tick. It is safe to
// call from any goroutine.
func (r *LocalRunner) Submit(ctx context.Context, fn Completion) error {
	return r.SubmitNamed(ctx, Entity{}, "", fn)
}

// SubmitNamed is Submit with a session and a name used in errors and logs.
func (r *LocalRunner) SubmitNamed(ctx context.Context, session Entity, name string, fn Completion) error {
	if r.isStopped() {
		return ErrRunnerStopped
	}
	return r.Worker.EnqueueCompletion(ctx, session, name, fn)
}

// Tick applies every queued completion, then flushes the world once. It
// returns the number of listeners woken.
func (r *LocalRunner) Tick(ctx context.Context) (int, error) {
	r.worldMu.Lock()
	defer r.worldMu.Unlock()
	return r.tickLocked(ctx)
}

func (r *LocalRunner) tickLocked(ctx context.Context) (int, error) {
	_, applyErr := r.Worker.ProcessReady(ctx)
	woken, flushErr := r.World.Flush(ctx)
	return woken, errors.Join(applyErr, flushErr)
}

// RunUntilIdle ticks until no completion is queued and no effect is pending.
// It returns the total number of listeners woken, and ErrTickLimit when the
// world has not settled after the configured number of ticks.
func (r *LocalRunner) RunUntilIdle(ctx context.Context) (int, error) {
	r.worldMu.Lock()
	defer r.worldMu.Unlock()
	return r.settleLocked(ctx)
}

func (r *LocalRunner) settleLocked(ctx context.Context) (int, error) {
	var errs []error
	total := 0
	for range r.maxTicks {
		if r.idleLocked() {
			return total, errors.Join(errs...)
		}
		if err := ctx.Err(); err != nil {
			return total, errors.Join(append(errs, err)...)
		}
		woken, err := r.tickLocked(ctx)
		total += woken
		if err != nil {
			errs = append(errs, err)
		}
	}
	if r.idleLocked() {
		return total, errors.Join(errs...)
	}
	return total, errors.Join(append(errs, fmt.Errorf("%w after %d ticks", ErrTickLimit, r.maxTicks))...)
}

func (r *LocalRunner) idleLocked() bool {
	return r.Queue.Len() == 0 && r.World.Pending() == 0
}

// Start runs a background loop that waits for submitted tasks and settles
// the world after each arrival. Errors are logged and the loop keeps going.
//
// Key releases on their own do not wake the loop; they are reported with the
// next tick.
func (r *LocalRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}
	if r.running {
		return ErrRunnerStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
	return nil
}

func (r *LocalRunner) loop(ctx context.Context) {
	for {
		task, err := r.Queue.Dequeue(ctx)
		if err != nil {
			// Cancellation is a clean shutdown signal.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			r.logger.ErrorContext(ctx, "fluxbuf: local runner dequeue failed", slog.Any("error", err))
			continue
		}

		r.worldMu.Lock()
		applyErr := r.Worker.Apply(ctx, task)
		woken, settleErr := r.settleLocked(ctx)
		r.worldMu.Unlock()

		if err := errors.Join(applyErr, settleErr); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.ErrorContext(ctx, "fluxbuf: local runner tick failed",
				slog.String("task_id", task.ID),
				slog.String("task", task.Name),
				slog.Any("error", err),
			)
			continue
		}
		r.logger.DebugContext(ctx, "fluxbuf: local runner settled",
			slog.String("task_id", task.ID),
			slog.Int("woken", woken),
		)
	}
}

// Stop cancels the background loop started by Start and waits for it to
// exit. After Stop, Submit and Start return ErrRunnerStopped; Tick and
// RunUntilIdle still work for draining what is left.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	r.stopped = true
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *LocalRunner) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
