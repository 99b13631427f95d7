// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compositor/driver"
)

// fenceValuer is implemented by fences whose value can be read directly.
type fenceValuer interface {
	GetValue() uint64
}

// fenceSignaler is implemented by fences that can be signaled from the host.
type fenceSignaler interface {
	Signal(value uint64)
}

// Timeline is a driver.TimelineSemaphore backed by a HAL fence.
//
// When the fence cannot report its value, Value reports the highest value
// confirmed reached among those passed to Expect, Signal or Wait.
type Timeline struct {
	device hal.Device
	fence  hal.Fence

	mu        sync.Mutex
	expected  uint64
	reached   uint64
	destroyed bool
}

var _ driver.TimelineSemaphore = (*Timeline)(nil)

// NewTimeline creates a fence on device.
func NewTimeline(device hal.Device) (*Timeline, error) {
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", translate(err))
	}
	return &Timeline{device: device, fence: fence}, nil
}

// Fence returns the underlying fence for submission.
func (t *Timeline) Fence() hal.Fence { return t.fence }

// IsTimeline implements driver.Semaphore.
func (t *Timeline) IsTimeline() bool { return true }

// Expect records that submitted GPU work will signal value.
func (t *Timeline) Expect(value uint64) {
	t.mu.Lock()
	t.expected = max(t.expected, value)
	t.mu.Unlock()
}

// Value implements driver.TimelineSemaphore.
func (t *Timeline) Value() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return 0, driver.ErrDestroyed
	}
	if v, ok := t.fence.(fenceValuer); ok {
		t.reached = max(t.reached, v.GetValue())
		return t.reached, nil
	}
	if t.expected > t.reached {
		ok, err := t.device.Wait(t.fence, t.expected, 0)
		if err != nil {
			return t.reached, translate(err)
		}
		if ok {
			t.reached = t.expected
		}
	}
	return t.reached, nil
}

// Signal implements driver.TimelineSemaphore.
func (t *Timeline) Signal(value uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return driver.ErrDestroyed
	}
	s, ok := t.fence.(fenceSignaler)
	if !ok {
		return ErrHostSignal
	}
	if value <= t.reached {
		return fmt.Errorf("halgpu: signal %d not above current value %d", value, t.reached)
	}
	s.Signal(value)
	t.reached = value
	t.expected = max(t.expected, value)
	return nil
}

// Wait implements driver.TimelineSemaphore.
func (t *Timeline) Wait(value uint64, timeout time.Duration) (bool, error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return false, driver.ErrDestroyed
	}
	if value <= t.reached {
		t.mu.Unlock()
		return true, nil
	}
	t.mu.Unlock()

	ok, err := t.device.Wait(t.fence, value, max(timeout, 0))
	if err != nil {
		return false, translate(err)
	}
	if ok {
		t.mu.Lock()
		t.reached = max(t.reached, value)
		t.mu.Unlock()
	}
	return ok, nil
}

// Destroy releases the fence. Destroy is safe to call multiple times.
func (t *Timeline) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.device.DestroyFence(t.fence)
}
