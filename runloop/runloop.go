// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package runloop turns blocking timeline-semaphore waits into
// completions.
//
// A RunLoop owns a set of sources, each a (semaphore, value, completion)
// triple, plus a private wake semaphore. Every Run applies pending
// additions and removals, performs one wait-any over the whole set and
// fires the completion of every source whose value was reached. Callers
// that need to suspend until the GPU reaches a value use Wait.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/logging"
)

// ErrStopped is returned once Stop has been called.
var ErrStopped = errors.New("runloop: stopped")

// Waiter blocks on several timeline semaphores at once. driver.Device
// implements it.
type Waiter interface {
	WaitSemaphores(waits []driver.SemaphoreWait, waitAll bool, timeout time.Duration) (bool, error)
}

// Option configures a RunLoop.
type Option func(*RunLoop)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *RunLoop) { r.logger = logging.OrNop(l) }
}

// WithInterval sets how far ahead of now Start places each Run deadline.
// Adding or removing a source wakes the loop early regardless.
func WithInterval(d time.Duration) Option {
	return func(r *RunLoop) {
		if d > 0 {
			r.interval = d
		}
	}
}

// DefaultInterval is the Run deadline used by Start.
const DefaultInterval = 500 * time.Millisecond

// RunLoop is a dedicated waiter over timeline semaphores.
//
// Add, Remove, WakeUp and Stop are safe from any goroutine. Run calls are
// serialized.
type RunLoop struct {
	waiter   Waiter
	wake     driver.TimelineSemaphore
	logger   *slog.Logger
	interval time.Duration

	runMu sync.Mutex

	mu            sync.Mutex
	live          map[*Source]struct{}
	pendingAdd    map[*Source]struct{}
	pendingRemove map[*Source]struct{}
	stopped       bool
	started       bool
	done          chan struct{}
	exited        chan struct{}
}

// New creates a run loop that waits through waiter and is woken through
// wake. The loop does not own wake.
func New(waiter Waiter, wake driver.TimelineSemaphore, opts ...Option) (*RunLoop, error) {
	if waiter == nil || wake == nil {
		return nil, errors.New("runloop: waiter and wake semaphore are required")
	}
	r := &RunLoop{
		waiter:        waiter,
		wake:          wake,
		logger:        logging.Nop(),
		interval:      DefaultInterval,
		live:          make(map[*Source]struct{}),
		pendingAdd:    make(map[*Source]struct{}),
		pendingRemove: make(map[*Source]struct{}),
		done:          make(chan struct{}),
		exited:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Add schedules s to be waited on and wakes the loop.
func (r *RunLoop) Add(s *Source) error {
	if s == nil || s.Semaphore == nil {
		return errors.New("runloop: source without semaphore")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	delete(r.pendingRemove, s)
	r.pendingAdd[s] = struct{}{}
	return r.wakeLocked()
}

// Remove stops waiting on s and wakes the loop. A source whose value is
// reached concurrently may still fire.
func (r *RunLoop) Remove(s *Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.pendingAdd[s]; ok {
		delete(r.pendingAdd, s)
		return nil
	}
	r.pendingRemove[s] = struct{}{}
	return r.wakeLocked()
}

// WakeUp makes a blocked Run return early.
func (r *RunLoop) WakeUp() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wakeLocked()
}

func (r *RunLoop) wakeLocked() error {
	v, err := r.wake.Value()
	if err != nil {
		return fmt.Errorf("runloop: read wake semaphore: %w", err)
	}
	if err := r.wake.Signal(v + 1); err != nil {
		return fmt.Errorf("runloop: signal wake semaphore: %w", err)
	}
	return nil
}

// Stop stops the loop. Sources still pending are dropped without firing
// and callers blocked in Wait return ErrStopped.
func (r *RunLoop) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true
	close(r.done)
	return r.wakeLocked()
}

// Done is closed when Stop is called.
func (r *RunLoop) Done() <-chan struct{} { return r.done }

// Pending returns how many sources are waiting to fire.
func (r *RunLoop) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.pendingAdd)
	for s := range r.live {
		if _, removed := r.pendingRemove[s]; !removed {
			n++
		}
	}
	return n
}

// Run performs one iteration: it applies pending changes, waits until
// any source is reached, the loop is woken or deadline passes, and fires
// the completion of every reached source exactly once. A source whose
// semaphore fails is completed too, with Err set. A deadline at or
// before now polls without blocking. Run reports whether any completion
// fired.
func (r *RunLoop) Run(deadline time.Time) (bool, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return false, ErrStopped
	}
	for s := range r.pendingAdd {
		r.live[s] = struct{}{}
	}
	for s := range r.pendingRemove {
		delete(r.live, s)
	}
	clear(r.pendingAdd)
	clear(r.pendingRemove)

	// Reading the wake value under mu means any Add after this point
	// moves it past the value waited for below.
	wakeValue, err := r.wake.Value()
	if err != nil {
		r.mu.Unlock()
		return false, fmt.Errorf("runloop: read wake semaphore: %w", err)
	}
	waits := make([]driver.SemaphoreWait, 0, len(r.live)+1)
	waits = append(waits, driver.SemaphoreWait{Semaphore: r.wake, Value: wakeValue + 1})
	for s := range r.live {
		waits = append(waits, driver.SemaphoreWait{Semaphore: s.Semaphore, Value: s.Value})
	}
	r.mu.Unlock()

	timeout := max(time.Until(deadline), 0)
	if _, err := r.waiter.WaitSemaphores(waits, false, timeout); err != nil {
		return false, fmt.Errorf("runloop: wait: %w", err)
	}

	r.mu.Lock()
	var fired []*Source
	for s := range r.live {
		ok, err := s.reached()
		if err != nil {
			r.logger.Warn("runloop: source failed", "value", s.Value, "err", err)
			s.err = err
			delete(r.live, s)
			fired = append(fired, s)
			continue
		}
		if ok {
			delete(r.live, s)
			fired = append(fired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range fired {
		s.Completion.fire()
	}
	return len(fired) > 0, nil
}

// Start runs the loop on a dedicated goroutine locked to its OS thread
// until Stop is called. Start is a no-op after the first call.
func (r *RunLoop) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(r.exited)
		for {
			_, err := r.Run(time.Now().Add(r.interval))
			switch {
			case errors.Is(err, ErrStopped):
				return
			case err != nil:
				r.logger.Error("runloop: iteration failed", "err", err)
				select {
				case <-r.done:
					return
				case <-time.After(r.interval):
				}
			}
		}
	}()
}

// Exited is closed when the goroutine started by Start returns.
func (r *RunLoop) Exited() <-chan struct{} { return r.exited }

// Wait suspends the caller until sem reaches value. It returns ctx.Err()
// when ctx ends first, ErrStopped when the loop stops first and the
// semaphore's error when its value can no longer be read. The loop
// must be running, either through Start or by calling Run.
func (r *RunLoop) Wait(ctx context.Context, sem driver.TimelineSemaphore, value uint64) error {
	ch := make(chan struct{})
	src := NewSource(sem, value, Resume(ch))
	if err := r.Add(src); err != nil {
		return err
	}
	select {
	case <-ch:
		if err := src.Err(); err != nil {
			return fmt.Errorf("runloop: wait for %d: %w", value, err)
		}
		return nil
	case <-ctx.Done():
		_ = r.Remove(src)
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}
