package workpool

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := newLimiter(2)
	ctx := context.Background()

	for i := range 2 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if l.Running() != 2 {
		t.Errorf("Running() = %d, want 2", l.Running())
	}

	l.Release()
	l.Release()
	l.Release() // extra release must not go negative
	if l.Running() != 0 {
		t.Errorf("Running() = %d, want 0", l.Running())
	}
	if l.Peak() != 2 {
		t.Errorf("Peak() = %d, want 2", l.Peak())
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := newLimiter(0)
	for i := range 50 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if l.Running() != 50 {
		t.Errorf("Running() = %d, want 50", l.Running())
	}
}

func TestLimiter_NegativeIsUnlimited(t *testing.T) {
	l := newLimiter(-3)
	if l.Limit() != 0 {
		t.Errorf("Limit() = %d, want 0", l.Limit())
	}
	l.SetLimit(-1)
	if l.Limit() != 0 {
		t.Errorf("Limit() after SetLimit(-1) = %d, want 0", l.Limit())
	}
}

func TestLimiter_BlocksUntilRelease(t *testing.T) {
	l := newLimiter(1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block at limit")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should proceed after Release")
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := newLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
	if l.Running() != 1 {
		t.Errorf("Running() = %d, want 1", l.Running())
	}
}

func TestLimiter_SetLimitWakesWaiters(t *testing.T) {
	l := newLimiter(1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		})
	}

	time.Sleep(20 * time.Millisecond)
	l.SetLimit(4)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters did not wake after SetLimit")
	}
	if l.Running() != 4 {
		t.Errorf("Running() = %d, want 4", l.Running())
	}
}
