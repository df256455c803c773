package workpool

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/compound/internal/errors"
	"github.com/Iron-Ham/compound/internal/logging"
)

// Pool is a bounded worker pool shared by every provisioning and launch
// batch in the process. Batches fan out freely; the pool's limit caps how
// many of their tasks run at the same moment.
type Pool struct {
	limiter *limiter
	logger  *logging.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// New creates a Pool running at most maxWorkers tasks at once.
// A maxWorkers of 0 means unlimited.
func New(maxWorkers int, opts ...Option) *Pool {
	p := &Pool{
		limiter: newLimiter(maxWorkers),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetMaxWorkers changes the bound for tasks not yet started.
func (p *Pool) SetMaxWorkers(n int) { p.limiter.SetLimit(n) }

// MaxWorkers returns the current bound (0 = unlimited).
func (p *Pool) MaxWorkers() int { return p.limiter.Limit() }

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int { return p.limiter.Running() }

// Peak returns the highest number of tasks that executed at once.
func (p *Pool) Peak() int { return p.limiter.Peak() }

// Task is one unit of a batch.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of the task at Index. Value may be meaningful even
// when Err is set (a task that obtained some resources before failing
// reports them so they can be rolled back).
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run starts every task and returns only after all of them have finished,
// successful or not. Results are in task order. A task that could not get a
// slot before ctx was done fails with ErrInterrupted; a task that panics
// fails with the recovered panic. Run never cancels siblings of a failed
// task.
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))

	var wg conc.WaitGroup
	for i, task := range tasks {
		wg.Go(func() {
			results[i] = runTask(ctx, p, i, task)
		})
	}
	wg.Wait()

	return results
}

func runTask[T any](ctx context.Context, p *Pool, index int, task Task[T]) Result[T] {
	res := Result[T]{Index: index}

	if err := p.limiter.Acquire(ctx); err != nil {
		res.Err = fmt.Errorf("%w: waiting for worker: %w", errors.ErrInterrupted, err)
		return res
	}
	defer p.limiter.Release()

	var catcher panics.Catcher
	catcher.Try(func() {
		res.Value, res.Err = task(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		p.logger.Error("task panicked", "index", index, "panic", r.Value, "stack", string(r.Stack))
		res.Err = fmt.Errorf("task %d panicked: %w", index, r.AsError())
	}

	return res
}

// Errors joins the errors of every failed result, or returns nil.
func Errors[T any](results []Result[T]) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
