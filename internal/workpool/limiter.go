package workpool

import (
	"context"
	"sync"
)

// limiter bounds how many tasks run at once across every batch sharing a
// Pool. A limit of 0 means unlimited. The limit may change while tasks are
// waiting; waiters re-check it when woken.
type limiter struct {
	mu      sync.Mutex
	cond    *sync.Cond
	limit   int // 0 = unlimited
	running int
	peak    int // highest running count observed
}

func newLimiter(limit int) *limiter {
	l := &limiter{limit: max(limit, 0)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// full reports whether another task would exceed the limit. Caller holds mu.
func (l *limiter) full() bool {
	return l.limit > 0 && l.running >= l.limit
}

// Acquire blocks until a slot is free or ctx is done.
func (l *limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.full() {
		// sync.Cond has no select; wake every waiter on cancellation so
		// the one owning ctx can bail out.
		stop := context.AfterFunc(ctx, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.cond.Broadcast()
		})
		defer stop()

		for l.full() {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.cond.Wait()
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.running++
	l.peak = max(l.peak, l.running)
	return nil
}

// Release frees a slot.
func (l *limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running > 0 {
		l.running--
	}
	l.cond.Broadcast()
}

// SetLimit changes the bound. Negative values mean unlimited.
func (l *limiter) SetLimit(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limit = max(n, 0)
	l.cond.Broadcast()
}

// Limit returns the current bound (0 = unlimited).
func (l *limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Running returns the number of tasks currently holding a slot.
func (l *limiter) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Peak returns the highest number of tasks that held a slot at once.
func (l *limiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}
