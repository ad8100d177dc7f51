package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquire_FloorSpacing(t *testing.T) {
	const (
		calls    = 5
		interval = 20 * time.Millisecond
	)

	l := New(Config{Name: "test", MinInterval: interval})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < calls; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	want := time.Duration(calls-1) * interval
	if elapsed < want {
		t.Errorf("elapsed = %v, want >= %v", elapsed, want)
	}
}

func TestAcquire_WindowCap(t *testing.T) {
	l := New(Config{Name: "test", MaxPerMinute: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	// Fourth call must wait for the oldest slot to expire; cancel instead.
	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cancelCtx); err == nil {
		t.Error("Acquire() should block when window cap is reached")
	}

	stats := l.Stats()
	if stats.CallsInWindow != 3 {
		t.Errorf("CallsInWindow = %d, want 3", stats.CallsInWindow)
	}
	if stats.LifetimeCalls != 3 {
		t.Errorf("LifetimeCalls = %d, want 3", stats.LifetimeCalls)
	}
}

func TestThrottle_BlocksAtLeastHint(t *testing.T) {
	l := New(Config{Name: "test"})
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	hint := 40 * time.Millisecond
	l.Throttle(hint)

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < hint {
		t.Errorf("acquire after throttle took %v, want >= %v", elapsed, hint)
	}
}

func TestThrottle_DoublesAndCaps(t *testing.T) {
	l := New(Config{Name: "test"})

	l.Throttle(10 * time.Second)
	if got := l.Stats().BackoffDelay; got != 10*time.Second {
		t.Errorf("BackoffDelay = %v, want 10s", got)
	}

	l.Throttle(10 * time.Second)
	if got := l.Stats().BackoffDelay; got != 20*time.Second {
		t.Errorf("BackoffDelay = %v, want 20s", got)
	}

	l.Throttle(10 * time.Second)
	l.Throttle(10 * time.Second)
	if got := l.Stats().BackoffDelay; got != MaxBackoff {
		t.Errorf("BackoffDelay = %v, want cap %v", got, MaxBackoff)
	}
}

func TestSuccess_ResetsBackoff(t *testing.T) {
	l := New(Config{Name: "test"})
	ctx := context.Background()

	l.Throttle(30 * time.Millisecond)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	l.Success()
	if got := l.Stats().BackoffDelay; got != 0 {
		t.Errorf("BackoffDelay after Success = %v, want 0", got)
	}

	// The next acquire must not be artificially delayed by backoff.
	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("acquire after reset took %v, expected no backoff delay", elapsed)
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	const (
		workers  = 8
		interval = 5 * time.Millisecond
	)

	l := New(Config{Name: "test", MinInterval: interval})
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	want := time.Duration(workers-1) * interval
	if elapsed := time.Since(start); elapsed < want {
		t.Errorf("elapsed = %v, want >= %v across concurrent callers", elapsed, want)
	}
	if got := l.Stats().LifetimeCalls; got != workers {
		t.Errorf("LifetimeCalls = %d, want %d", got, workers)
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := New(Config{Name: "test", MinInterval: time.Second})
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Acquire(cancelCtx); err != context.Canceled {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}
