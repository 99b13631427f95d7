// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package renderstack bundles what every rendering component shares: the
// device, its queues, the synchronization run loop, the logger and
// configuration.
//
// A Stack is constructed explicitly and passed to each component that
// needs it. Nothing in the compositor looks the render stack up
// implicitly.
package renderstack

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/runloop"
)

var (
	// ErrNilDevice is returned by New when no device is given.
	ErrNilDevice = errors.New("renderstack: nil device")

	// ErrNoGraphicsQueue is returned by New when the device exposes no
	// queue that accepts graphics work.
	ErrNoGraphicsQueue = errors.New("renderstack: device has no graphics queue")
)

// Stack is the explicit render context.
type Stack struct {
	device   driver.Device
	graphics driver.Queue
	transfer driver.Queue
	wake     driver.TimelineSemaphore
	loop     *runloop.RunLoop
	logger   *slog.Logger
	config   Config
}

// New creates a stack over device and starts its run loop.
func New(device driver.Device, opts ...Option) (*Stack, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stack{
		device: device,
		logger: logging.OrNop(o.logger),
		config: o.config,
	}
	for _, q := range device.Queues() {
		if s.graphics == nil && q.Capabilities().Has(driver.QueueGraphics) {
			s.graphics = q
		}
		if s.transfer == nil && q.Capabilities().Has(driver.QueueTransfer) && !q.Capabilities().Has(driver.QueueGraphics) {
			s.transfer = q
		}
	}
	if s.graphics == nil {
		return nil, ErrNoGraphicsQueue
	}
	if s.transfer == nil {
		s.transfer = s.graphics
	}

	wake, err := device.NewTimelineSemaphore(0)
	if err != nil {
		return nil, fmt.Errorf("renderstack: create wake semaphore: %w", err)
	}
	waiter := o.waiter
	if waiter == nil {
		waiter = device
	}
	loop, err := runloop.New(waiter, wake,
		runloop.WithLogger(s.logger),
		runloop.WithInterval(o.loopInterval))
	if err != nil {
		wake.Destroy()
		return nil, err
	}
	s.wake = wake
	s.loop = loop
	loop.Start()

	info := device.Info()
	s.logger.Info("renderstack: device ready",
		"adapter", info.Name,
		"type", info.Type,
		"unified_memory", info.UnifiedMemory,
		"graphics_family", s.graphics.Family(),
		"transfer_family", s.transfer.Family())
	return s, nil
}

// Device returns the device.
func (s *Stack) Device() driver.Device { return s.device }

// GraphicsQueue returns the queue draws are submitted to.
func (s *Stack) GraphicsQueue() driver.Queue { return s.graphics }

// TransferQueue returns the queue staging copies are submitted to. It is
// the graphics queue when the device has no dedicated transfer family.
func (s *Stack) TransferQueue() driver.Queue { return s.transfer }

// RunLoop returns the synchronization run loop.
func (s *Stack) RunLoop() *runloop.RunLoop { return s.loop }

// Logger returns the logger components log through.
func (s *Stack) Logger() *slog.Logger { return s.logger }

// Config returns the configuration.
func (s *Stack) Config() Config { return s.config }

// PresentQueue returns the first queue that can present to surface,
// preferring the graphics queue.
func (s *Stack) PresentQueue(surface driver.Surface) (driver.Queue, bool) {
	if s.graphics.CanPresent(surface) {
		return s.graphics, true
	}
	for _, q := range s.device.Queues() {
		if q.CanPresent(surface) {
			return q, true
		}
	}
	return nil, false
}

// UnifiedMemory reports whether vertex data can be written in place.
func (s *Stack) UnifiedMemory() bool { return s.device.Info().UnifiedMemory }

// Close stops the run loop and releases the wake semaphore. The device is
// owned by the caller.
func (s *Stack) Close() {
	_ = s.loop.Stop()
	<-s.loop.Exited()
	s.wake.Destroy()
}
