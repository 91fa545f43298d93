package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("after two Acquire, ActiveCount = %d, want 2", got)
	}
	if got := limiter.Status().Available; got != 0 {
		t.Errorf("after two Acquire, Available = %d, want 0", got)
	}

	limiter.Release()
	if got := limiter.ActiveCount(); got != 1 {
		t.Errorf("after Release, ActiveCount = %d, want 1", got)
	}

	limiter.Release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after second Release, ActiveCount = %d, want 0", got)
	}
}

func TestImportLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewImportLimiter(1, 100*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyImports) {
		t.Errorf("expected ErrTooManyImports, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
	if MapError(err).Code != "IMP002" {
		t.Errorf("MapError code = %q, want IMP002", MapError(err).Code)
	}
}

func TestImportLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	limiter := NewImportLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if current := limiter.ActiveCount(); current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}

	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestImportLimiter_TryAcquire(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)

	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if limiter.TryAcquire() {
		t.Error("second TryAcquire should fail")
		limiter.Release()
	}

	limiter.Release()
	if !limiter.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	limiter.Release()
}

func TestImportLimiter_ContextCancellation(t *testing.T) {
	limiter := NewImportLimiter(1, 5*time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after context cancellation")
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	_ = limiter.Acquire(ctx)
	_ = limiter.Acquire(ctx)

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limiter.WaitForDrain(context.Background())
	}()

	limiter.Release()
	select {
	case <-drainDone:
		t.Error("WaitForDrain returned with one active")
	case <-time.After(50 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after all released")
	}
}

func TestImportLimiter_WaitForDrainCancelled(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)
	_ = limiter.Acquire(context.Background())
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestImportLimiter_Run(t *testing.T) {
	limiter := NewImportLimiter(1, 50*time.Millisecond)

	var during int
	err := limiter.Run(context.Background(), func() error {
		during = limiter.ActiveCount()
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Errorf("Run = %v, want boom", err)
	}
	if during != 1 || limiter.ActiveCount() != 0 {
		t.Errorf("active during=%d after=%d, want 1 and 0", during, limiter.ActiveCount())
	}

	_ = limiter.Acquire(context.Background())
	defer limiter.Release()
	called := false
	if err := limiter.Run(context.Background(), func() error { called = true; return nil }); !errors.Is(err, ErrTooManyImports) {
		t.Errorf("Run when full = %v, want ErrTooManyImports", err)
	}
	if called {
		t.Error("Run called fn without a slot")
	}
}

func TestImportLimiter_StatusCountsWaiters(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)
	_ = limiter.Acquire(context.Background())

	done := make(chan error, 1)
	go func() { done <- limiter.Acquire(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for limiter.Status().Waiting != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := limiter.Status().Waiting; got != 1 {
		t.Fatalf("Waiting = %d, want 1", got)
	}

	limiter.Release()
	if err := <-done; err != nil {
		t.Fatalf("queued Acquire = %v", err)
	}
	if st := limiter.Status(); st.Waiting != 0 || st.Active != 1 {
		t.Errorf("status = %+v, want 0 waiting and 1 active", st)
	}
	limiter.Release()
}

func TestImportLimiter_Defaults(t *testing.T) {
	status := NewImportLimiter(0, 0).Status()
	if status.MaxConcurrent != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", status.MaxConcurrent, DefaultMaxConcurrentImports)
	}
	if status.Available != DefaultMaxConcurrentImports {
		t.Errorf("Available = %d, want %d", status.Available, DefaultMaxConcurrentImports)
	}
}
