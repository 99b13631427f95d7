// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/present"
	"github.com/gogpu/compositor/renderstack"
)

var (
	// ErrNoPresentationQueue is returned by AddWindow when no device queue
	// can present to the window's surface.
	ErrNoPresentationQueue = errors.New("scheduler: no presentation queue")

	// ErrHalted is returned by Tick after an unrecoverable error.
	ErrHalted = errors.New("scheduler: halted")

	// ErrUnknownWindow is returned for window numbers never added.
	ErrUnknownWindow = errors.New("scheduler: unknown window")

	// ErrDuplicateWindow is returned when a window number is added twice.
	ErrDuplicateWindow = errors.New("scheduler: window already added")
)

// Scheduler drives the frames of all windows of one render stack.
//
// Tick, AddWindow and RemoveWindow may be called from any goroutine;
// passes are serialized.
type Scheduler struct {
	stack       *renderstack.Stack
	logger      *slog.Logger
	pool        *parallel.Pool
	timeline    driver.TimelineSemaphore
	waitTimeout time.Duration

	// pass serializes Tick against window removal.
	pass sync.Mutex

	mu        sync.Mutex
	windows   map[int]*present.SwapchainRenderer
	submitted uint64
	halted    error
}

// New creates a scheduler and its shared submission timeline.
func New(stack *renderstack.Stack, opts ...Option) (*Scheduler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	timeline, err := stack.Device().NewTimelineSemaphore(0)
	if err != nil {
		return nil, fmt.Errorf("scheduler: create timeline: %w", err)
	}
	return &Scheduler{
		stack:       stack,
		logger:      stack.Logger(),
		pool:        parallel.NewPool(o.workers),
		timeline:    timeline,
		waitTimeout: o.waitTimeout,
		windows:     make(map[int]*present.SwapchainRenderer),
	}, nil
}

// AddWindow creates the swapchain renderer of w.
func (s *Scheduler) AddWindow(w present.Window, surface driver.Surface) error {
	q, ok := s.stack.PresentQueue(surface)
	if !ok {
		return fmt.Errorf("%w for window %d", ErrNoPresentationQueue, w.Number())
	}
	s.mu.Lock()
	_, dup := s.windows[w.Number()]
	s.mu.Unlock()
	if dup {
		return fmt.Errorf("%w: %d", ErrDuplicateWindow, w.Number())
	}

	r, err := present.NewSwapchainRenderer(s.stack, w, surface, q)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.windows[w.Number()] = r
	s.mu.Unlock()
	s.logger.Debug("scheduler: window added", "window", w.Number(), "present_family", q.Family())
	return nil
}

// RemoveWindow invalidates and destroys a window's renderer. It waits for
// a pass in progress.
func (s *Scheduler) RemoveWindow(number int) error {
	s.mu.Lock()
	r, ok := s.windows[number]
	if ok {
		r.Invalidate()
		delete(s.windows, number)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, number)
	}

	s.pass.Lock()
	defer s.pass.Unlock()
	r.Destroy()
	return nil
}

// WindowResized schedules a swapchain rebuild for the window's next frame.
func (s *Scheduler) WindowResized(number int) error {
	r, ok := s.Renderer(number)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, number)
	}
	r.SetNeedsRebuild()
	return nil
}

// Renderer returns the swapchain renderer of a window.
func (s *Scheduler) Renderer(number int) (*present.SwapchainRenderer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.windows[number]
	return r, ok
}

// Windows returns the numbers of all windows in ascending order.
func (s *Scheduler) Windows() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.windows)
}

// SubmittedValue returns the timeline value of the last submitted pass.
func (s *Scheduler) SubmittedValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Timeline returns the semaphore signaled by every pass.
func (s *Scheduler) Timeline() driver.TimelineSemaphore { return s.timeline }

// Err returns the error that halted the scheduler, or nil.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

func (s *Scheduler) halt(err error) error {
	s.mu.Lock()
	if s.halted == nil {
		s.halted = err
	}
	s.mu.Unlock()
	s.logger.Error("scheduler: halted", "err", err)
	return err
}

// Close stops the worker pool, destroys every renderer and the timeline.
// The device must be idle.
func (s *Scheduler) Close() {
	s.pass.Lock()
	defer s.pass.Unlock()
	s.pool.Close()

	s.mu.Lock()
	renderers := make([]*present.SwapchainRenderer, 0, len(s.windows))
	for n, r := range s.windows {
		renderers = append(renderers, r)
		delete(s.windows, n)
	}
	s.mu.Unlock()

	if err := s.stack.Device().WaitIdle(); err != nil {
		s.logger.Warn("scheduler: wait idle on close", "err", err)
	}
	for _, r := range renderers {
		r.Destroy()
	}
	if s.timeline != nil {
		s.timeline.Destroy()
		s.timeline = nil
	}
}
