package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

type task struct {
	cancel context.CancelFunc
}

// runner executes at most one background task per entry on an ants pool.
// Launching a task for an entry cancels the one it replaces.
type runner struct {
	pool   *ants.Pool
	logger *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

func newRunner(size int, logger *slog.Logger) (*runner, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &runner{
		pool:      pool,
		logger:    logger,
		baseCtx:   ctx,
		cancelAll: cancel,
		tasks:     make(map[string]*task),
	}, nil
}

// Bind derives a cancellable context for work running on the caller's
// goroutine. The returned release func must be called when that work ends.
func (r *runner) Bind(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	t := r.replace(id, cancel)
	return ctx, func() {
		r.finish(id, t)
		cancel()
	}
}

// Launch submits fn to the pool as the entry's current task
func (r *runner) Launch(id string, fn func(ctx context.Context)) error {
	ctx, cancel := context.WithCancel(r.baseCtx)
	t := r.replace(id, cancel)

	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		defer r.finish(id, t)
		defer cancel()
		fn(ctx)
	})
	if err != nil {
		r.wg.Done()
		r.finish(id, t)
		cancel()
		r.logger.Error("Failed to submit pipeline task to worker pool", "entry_id", id, "error", err)
		return err
	}
	return nil
}

// Cancel stops the entry's current task, if any
func (r *runner) Cancel(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (r *runner) replace(id string, cancel context.CancelFunc) *task {
	t := &task{cancel: cancel}
	r.mu.Lock()
	prev := r.tasks[id]
	r.tasks[id] = t
	r.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return t
}

func (r *runner) finish(id string, t *task) {
	r.mu.Lock()
	if r.tasks[id] == t {
		delete(r.tasks, id)
	}
	r.mu.Unlock()
}

// Active reports whether the entry has a task running
func (r *runner) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// Shutdown cancels every task, waits up to timeout for them to return and releases the pool
func (r *runner) Shutdown(timeout time.Duration) {
	r.logger.Info("Shutting down pipeline worker pool", "running_workers", r.pool.Running())
	r.cancelAll()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		r.logger.Warn("Timed out waiting for pipeline tasks to stop")
	}
	r.pool.Release()
}

// Running returns the number of running workers in the pool
func (r *runner) Running() int {
	return r.pool.Running()
}

// Capacity returns the capacity of the worker pool
func (r *runner) Capacity() int {
	return r.pool.Cap()
}
