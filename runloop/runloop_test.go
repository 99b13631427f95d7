// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package runloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/headless"
)

func newTestLoop(t *testing.T) (*RunLoop, *headless.Device) {
	t.Helper()
	d := headless.New()
	t.Cleanup(d.Destroy)
	wake, err := d.NewTimelineSemaphore(0)
	if err != nil {
		t.Fatalf("NewTimelineSemaphore: %v", err)
	}
	r, err := New(d, wake, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r, d
}

func timeline(t *testing.T, d *headless.Device, initial uint64) driver.TimelineSemaphore {
	t.Helper()
	sem, err := d.NewTimelineSemaphore(initial)
	if err != nil {
		t.Fatalf("NewTimelineSemaphore: %v", err)
	}
	return sem
}

func TestAlreadyReachedSourceFiresOnNextRun(t *testing.T) {
	r, d := newTestLoop(t)
	sem := timeline(t, d, 5)

	var calls atomic.Int32
	if err := r.Add(NewSource(sem, 5, Callback(func() { calls.Add(1) }))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fired, err := r.Run(time.Now())
	if err != nil || !fired {
		t.Fatalf("Run = %v, %v; want fired", fired, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("callback ran %d times, want 1", calls.Load())
	}
	if r.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 after firing", r.Pending())
	}

	fired, _ = r.Run(time.Now())
	if fired || calls.Load() != 1 {
		t.Error("a fired source must not fire again")
	}
}

func TestUnreachedSourceStaysUntilSignaled(t *testing.T) {
	r, d := newTestLoop(t)
	sem := timeline(t, d, 0)

	done := make(chan struct{})
	src := NewSource(sem, 2, Resume(done))
	_ = r.Add(src)

	if fired, _ := r.Run(time.Now()); fired {
		t.Fatal("source fired before its value was reached")
	}
	if r.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", r.Pending())
	}

	_ = sem.Signal(1)
	if fired, _ := r.Run(time.Now()); fired {
		t.Fatal("source fired at value 1, want 2")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = sem.Signal(3)
	}()
	fired, err := r.Run(time.Now().Add(time.Second))
	if err != nil || !fired {
		t.Fatalf("Run = %v, %v; want fired", fired, err)
	}
	select {
	case <-done:
	default:
		t.Fatal("resume channel not closed")
	}
}

func TestAddWakesBlockedRun(t *testing.T) {
	r, d := newTestLoop(t)
	sem := timeline(t, d, 1)

	start := time.Now()
	result := make(chan struct{})
	go func() {
		_, _ = r.Run(start.Add(5 * time.Second))
		close(result)
	}()
	time.Sleep(10 * time.Millisecond)
	var calls atomic.Int32
	_ = r.Add(NewSource(sem, 1, Callback(func() { calls.Add(1) })))

	select {
	case <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("Add did not wake the blocked Run")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("Run waited out its deadline")
	}
	// A source added while a wait is in progress fires on the following
	// iteration at the latest.
	_, _ = r.Run(time.Now())
	if calls.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", calls.Load())
	}
}

func TestRemoveBeforeFire(t *testing.T) {
	r, d := newTestLoop(t)
	sem := timeline(t, d, 0)

	var calls atomic.Int32
	src := NewSource(sem, 1, Callback(func() { calls.Add(1) }))
	_ = r.Add(src)
	_, _ = r.Run(time.Now())
	if err := r.Remove(src); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_ = sem.Signal(1)
	_, _ = r.Run(time.Now())
	if calls.Load() != 0 {
		t.Error("removed source fired")
	}

	// Removing a source that was never applied drops it directly.
	pending := NewSource(sem, 1, Callback(func() { calls.Add(1) }))
	_ = r.Add(pending)
	_ = r.Remove(pending)
	if r.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", r.Pending())
	}
}

func TestWaitWithStartedLoop(t *testing.T) {
	r, d := newTestLoop(t)
	r.Start()
	sem := timeline(t, d, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sem.Signal(7)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx, sem, 7); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWaitContextCanceled(t *testing.T) {
	r, d := newTestLoop(t)
	r.Start()
	sem := timeline(t, d, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx, sem, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
}

func TestStopReleasesWaiters(t *testing.T) {
	r, d := newTestLoop(t)
	r.Start()
	sem := timeline(t, d, 0)

	errc := make(chan error, 1)
	go func() { errc <- r.Wait(context.Background(), sem, 1) }()
	time.Sleep(10 * time.Millisecond)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Wait = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not release the waiter")
	}
	select {
	case <-r.Exited():
	case <-time.After(2 * time.Second):
		t.Fatal("loop goroutine did not exit")
	}
	if _, err := r.Run(time.Now()); !errors.Is(err, ErrStopped) {
		t.Errorf("Run after Stop = %v, want ErrStopped", err)
	}
	if err := r.Add(NewSource(sem, 1, Callback(func() {}))); !errors.Is(err, ErrStopped) {
		t.Errorf("Add after Stop = %v, want ErrStopped", err)
	}
}

func TestDestroyedSemaphoreCompletesWithError(t *testing.T) {
	r, d := newTestLoop(t)
	sem := timeline(t, d, 0)
	var calls atomic.Int32
	src := NewSource(sem, 1, Callback(func() { calls.Add(1) }))
	_ = r.Add(src)
	_, _ = r.Run(time.Now())
	sem.Destroy()

	fired, err := r.Run(time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fired || calls.Load() != 1 {
		t.Errorf("fired = %v after %d calls; want one completion", fired, calls.Load())
	}
	if !errors.Is(src.Err(), driver.ErrDestroyed) {
		t.Errorf("Err = %v, want ErrDestroyed", src.Err())
	}
	if r.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", r.Pending())
	}
}

func TestWaitReportsSemaphoreFailure(t *testing.T) {
	r, d := newTestLoop(t)
	r.Start()
	sem := timeline(t, d, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		sem.Destroy()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := r.Wait(ctx, sem, 1)
	if !errors.Is(err, driver.ErrDestroyed) {
		t.Fatalf("Wait = %v, want ErrDestroyed", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait returned after %s, want before the context deadline", elapsed)
	}
}

func TestNewRequiresWaiter(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil, nil) should fail")
	}
}
