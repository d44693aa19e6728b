// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if pool.Workers() != runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), runtime.GOMAXPROCS(0))
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	pool.ExecuteAll(work)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	pool.ExecuteAll(nil)
}

func TestWorkerPool_ExecuteAll_AfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var ran atomic.Int32
	pool.ExecuteAll([]func(){func() { ran.Add(1) }, func() { ran.Add(1) }})

	if ran.Load() != 2 {
		t.Errorf("ran = %d after Close, want 2 (inline execution)", ran.Load())
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after Close")
	}
}

func TestWorkerPool_CloseDrainsQueued(t *testing.T) {
	pool := NewWorkerPool(1)

	var counter atomic.Int32
	for range 5 {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
		})
	}
	pool.Close()

	if counter.Load() != 5 {
		t.Errorf("counter = %d after Close, want 5", counter.Load())
	}
}

func TestWorkerPool_SubmitRacingClose(t *testing.T) {
	for range 50 {
		pool := NewWorkerPool(2)

		const submitters = 8
		futures := make([]*Future[int], submitters)
		var wg sync.WaitGroup
		wg.Add(submitters)
		for i := range submitters {
			go func() {
				defer wg.Done()
				futures[i] = Go(pool, func() (int, error) { return i, nil })
			}()
		}
		pool.Close()
		wg.Wait()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = Join(futures)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("a task submitted around Close never ran")
		}
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// One slow task must not serialize the fast ones behind it.
	var fast atomic.Int32
	work := []func(){func() { time.Sleep(50 * time.Millisecond) }}
	for range 20 {
		work = append(work, func() { fast.Add(1) })
	}

	start := time.Now()
	pool.ExecuteAll(work)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ExecuteAll took %v", elapsed)
	}
	if fast.Load() != 20 {
		t.Errorf("fast = %d, want 20", fast.Load())
	}
}

// =============================================================================
// Future Tests
// =============================================================================

func TestGo_Wait(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	f := Go(pool, func() (int, error) { return 42, nil })
	v, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if v != 42 {
		t.Errorf("Wait() = %d, want 42", v)
	}
}

func TestGo_Panic(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	f := Go(pool, func() (int, error) { panic("boom") })
	if _, err := f.Wait(); err == nil {
		t.Error("Wait() should report the recovered panic")
	}

	// The worker must survive the panic.
	v, err := Go(pool, func() (int, error) { return 1, nil }).Wait()
	if err != nil || v != 1 {
		t.Errorf("pool unusable after panic: v=%d err=%v", v, err)
	}
}

func TestJoin_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	futures := make([]*Future[int], 16)
	for i := range futures {
		futures[i] = Go(pool, func() (int, error) {
			time.Sleep(time.Duration(16-i) * 100 * time.Microsecond)
			return i, nil
		})
	}

	values, err := Join(futures)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	for i, v := range values {
		if v != i {
			t.Errorf("values[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestJoin_CollectsErrors(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	futures := []*Future[string]{
		Go(pool, func() (string, error) { return "", errA }),
		Go(pool, func() (string, error) { return "ok", nil }),
		Go(pool, func() (string, error) { return "", errB }),
	}

	values, err := Join(futures)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Join() error = %v, want both task errors", err)
	}
	if values[1] != "ok" {
		t.Errorf("values[1] = %q, want ok", values[1])
	}
}
