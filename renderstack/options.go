// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderstack

import (
	"log/slog"
	"time"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/runloop"
)

// Config holds the tunables shared by the renderers.
type Config struct {
	// DescriptorPoolSize is how many sets each descriptor pool holds.
	DescriptorPoolSize uint32

	// ClearColor clears each window before its layers are drawn.
	ClearColor driver.ClearValue

	// ClampExtent clamps swapchain extents to the surface capabilities.
	ClampExtent bool

	// ImageCount is the requested number of swapchain images.
	ImageCount uint32

	// PresentMode is the swapchain present mode.
	PresentMode driver.PresentMode

	// AcquireTimeout bounds waiting for a swapchain image.
	AcquireTimeout time.Duration

	// UploadTimeout bounds waiting for a one-shot texture upload.
	UploadTimeout time.Duration
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		DescriptorPoolSize: 64,
		ClampExtent:        true,
		ImageCount:         3,
		PresentMode:        driver.PresentFIFO,
		AcquireTimeout:     time.Second,
		UploadTimeout:      time.Second,
	}
}

// Option configures a Stack.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	waiter       runloop.Waiter
	loopInterval time.Duration
	config       Config
}

func defaultOptions() options {
	return options{
		loopInterval: runloop.DefaultInterval,
		config:       DefaultConfig(),
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWaiter replaces the device as the run loop's multi-semaphore
// waiter, for backends whose device cannot block on several semaphores.
func WithWaiter(w runloop.Waiter) Option {
	return func(o *options) { o.waiter = w }
}

// WithRunLoopInterval sets the run loop's idle deadline.
func WithRunLoopInterval(d time.Duration) Option {
	return func(o *options) { o.loopInterval = d }
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(o *options) { o.config = c }
}

// WithDescriptorPoolSize sets how many sets each descriptor pool holds.
func WithDescriptorPoolSize(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.config.DescriptorPoolSize = n
		}
	}
}

// WithClearColor sets the window clear color.
func WithClearColor(c driver.ClearValue) Option {
	return func(o *options) { o.config.ClearColor = c }
}

// WithClampExtent controls clamping of swapchain extents to the surface
// capabilities.
func WithClampExtent(enabled bool) Option {
	return func(o *options) { o.config.ClampExtent = enabled }
}

// WithImageCount sets the requested number of swapchain images.
func WithImageCount(n uint32) Option {
	return func(o *options) { o.config.ImageCount = n }
}

// WithPresentMode sets the swapchain present mode.
func WithPresentMode(m driver.PresentMode) Option {
	return func(o *options) { o.config.PresentMode = m }
}

// WithAcquireTimeout bounds waiting for a swapchain image.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) { o.config.AcquireTimeout = d }
}
