// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scheduler

import "time"

// DefaultWaitTimeout bounds the wait for a submitted pass.
const DefaultWaitTimeout = 5 * time.Second

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	workers     int
	waitTimeout time.Duration
}

func defaultOptions() options {
	return options{waitTimeout: DefaultWaitTimeout}
}

// WithWorkers sets the number of goroutines recording frames. Zero or a
// negative value uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithWaitTimeout bounds the wait for a submitted pass to complete.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}
