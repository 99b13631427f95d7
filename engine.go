// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/present"
	"github.com/gogpu/compositor/renderstack"
	"github.com/gogpu/compositor/scheduler"
)

// Engine drives the frames of every window sharing one device.
//
// AddWindow, RemoveWindow, WindowResized and Tick are safe for concurrent
// use. Run owns the pass loop until its context ends or the scheduler
// halts.
type Engine struct {
	logger    *slog.Logger
	stack     *renderstack.Stack
	scheduler *scheduler.Scheduler
	onTick    func(pass uint64)
	interval  atomic.Int64

	mu      sync.Mutex
	windows map[int]*present.HostWindow
	closed  bool
}

// New creates an engine over device. The device stays owned by the
// caller and must outlive the engine.
func New(device driver.Device, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	stackOpts := append([]renderstack.Option{renderstack.WithLogger(logger)}, o.stack...)
	stack, err := renderstack.New(device, stackOpts...)
	if err != nil {
		return nil, fmt.Errorf("compositor: %w", err)
	}
	sched, err := scheduler.New(stack, o.scheduler...)
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("compositor: %w", err)
	}

	e := &Engine{
		logger:    logger,
		stack:     stack,
		scheduler: sched,
		onTick:    o.onTick,
		windows:   make(map[int]*present.HostWindow),
	}
	e.interval.Store(int64(o.tickInterval))
	return e, nil
}

// AddWindow starts rendering root into surface. The window's size and
// scale factor are read from provider on every frame.
func (e *Engine) AddWindow(number int, provider gpucontext.WindowProvider, root *layer.Layer, surface driver.Surface) (*present.HostWindow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	w := present.NewHostWindow(number, provider, root)
	if err := e.scheduler.AddWindow(w, surface); err != nil {
		return nil, err
	}
	e.windows[number] = w
	e.logger.Info("compositor: window added", "window", number)
	return w, nil
}

// Window returns a window added with AddWindow.
func (e *Engine) Window(number int) (*present.HostWindow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.windows[number]
	return w, ok
}

// RemoveWindow closes a window and releases its swapchain.
func (e *Engine) RemoveWindow(number int) error {
	e.mu.Lock()
	w, ok := e.windows[number]
	delete(e.windows, number)
	e.mu.Unlock()
	if ok {
		w.Close()
	}
	return e.scheduler.RemoveWindow(number)
}

// WindowResized rebuilds the window's swapchain before its next frame.
func (e *Engine) WindowResized(number int) error {
	return e.scheduler.WindowResized(number)
}

// SetTickInterval changes the pause between passes of a running Run.
// Non-positive values are ignored.
func (e *Engine) SetTickInterval(d time.Duration) {
	if d > 0 {
		e.interval.Store(int64(d))
	}
}

// TickInterval returns the pause between passes.
func (e *Engine) TickInterval() time.Duration {
	return time.Duration(e.interval.Load())
}

// Tick runs one scheduling pass.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return e.scheduler.Tick(ctx)
}

// Run runs scheduling passes until ctx ends, returning nil, or until the
// scheduler halts, returning the halting error.
func (e *Engine) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if e.onTick != nil {
			e.onTick(e.scheduler.SubmittedValue())
		}
		err := e.Tick(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return nil
		default:
			return err
		}
		timer.Reset(e.TickInterval())
	}
}

// Stats summarizes the engine.
type Stats struct {
	// Passes is the number of submitted scheduling passes.
	Passes uint64
	// Windows is the number of windows.
	Windows int
	// Failed is the number of windows waiting for a swapchain rebuild.
	Failed int
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	st := Stats{Passes: e.scheduler.SubmittedValue()}
	for _, n := range e.scheduler.Windows() {
		st.Windows++
		if r, ok := e.scheduler.Renderer(n); ok && r.State() == present.StateSwapchainFailed {
			st.Failed++
		}
	}
	return st
}

// Scheduler returns the frame scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Stack returns the render stack.
func (e *Engine) Stack() *renderstack.Stack { return e.stack }

// Close waits for the device, releases every window and stops the run
// loop. Close is safe to call multiple times.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for n, w := range e.windows {
		w.Close()
		delete(e.windows, n)
	}
	e.mu.Unlock()

	e.scheduler.Close()
	e.stack.Close()
}
