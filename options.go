// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"log/slog"
	"time"

	"github.com/gogpu/compositor/renderstack"
	"github.com/gogpu/compositor/scheduler"
)

// DefaultTickInterval is the pause between scheduling passes in Run.
const DefaultTickInterval = 16 * time.Millisecond

// Option configures an Engine during creation.
//
// Example:
//
//	engine, err := compositor.New(device,
//	    compositor.WithTickInterval(8*time.Millisecond),
//	    compositor.WithWorkers(4))
type Option func(*engineOptions)

type engineOptions struct {
	logger       *slog.Logger
	tickInterval time.Duration
	onTick       func(pass uint64)
	stack        []renderstack.Option
	scheduler    []scheduler.Option
}

func defaultOptions() engineOptions {
	return engineOptions{tickInterval: DefaultTickInterval}
}

// WithLogger sets the engine logger. Without it the package logger from
// [Logger] is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithTickInterval sets the pause between scheduling passes in Run.
// Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithTickHook registers fn to run on the Run goroutine before each pass.
// fn receives the number of passes submitted so far and may mutate the
// layer trees of all windows.
func WithTickHook(fn func(pass uint64)) Option {
	return func(o *engineOptions) { o.onTick = fn }
}

// WithWorkers sets the number of goroutines recording window frames.
func WithWorkers(n int) Option {
	return func(o *engineOptions) {
		o.scheduler = append(o.scheduler, scheduler.WithWorkers(n))
	}
}

// WithWaitTimeout bounds the wait for each submitted pass.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.scheduler = append(o.scheduler, scheduler.WithWaitTimeout(d))
	}
}

// WithStackOptions passes options to the render stack, for example
// [renderstack.WithClearColor] or [renderstack.WithDescriptorPoolSize].
func WithStackOptions(opts ...renderstack.Option) Option {
	return func(o *engineOptions) { o.stack = append(o.stack, opts...) }
}
