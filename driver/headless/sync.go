// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/compositor/driver"
)

// syncHub guards every semaphore and fence of a device. Waiters block on
// the current notify channel, which is closed and replaced whenever any
// synchronization object changes.
type syncHub struct {
	mu     sync.Mutex
	notify chan struct{}
}

func newSyncHub() *syncHub {
	return &syncHub{notify: make(chan struct{})}
}

// changedLocked wakes every waiter. Must hold h.mu.
func (h *syncHub) changedLocked() {
	close(h.notify)
	h.notify = make(chan struct{})
}

// waitUntil blocks until cond returns true or timeout expires. cond is
// evaluated with h.mu held. A zero timeout polls once.
func (h *syncHub) waitUntil(cond func() bool, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		h.mu.Lock()
		if cond() {
			h.mu.Unlock()
			return true
		}
		ch := h.notify
		h.mu.Unlock()

		if timeout <= 0 {
			return false
		}
		select {
		case <-ch:
		case <-deadline:
			h.mu.Lock()
			ok := cond()
			h.mu.Unlock()
			return ok
		}
	}
}

// Semaphore is a binary semaphore.
type Semaphore struct {
	hub       *syncHub
	signaled  bool
	destroyed bool
}

var _ driver.Semaphore = (*Semaphore)(nil)

// IsTimeline returns false.
func (s *Semaphore) IsTimeline() bool { return false }

// Signaled reports whether the semaphore is currently signaled.
func (s *Semaphore) Signaled() bool {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.signaled
}

// Destroy releases the semaphore.
func (s *Semaphore) Destroy() {
	s.hub.mu.Lock()
	s.destroyed = true
	s.hub.mu.Unlock()
}

// TimelineSemaphore is a host counter.
type TimelineSemaphore struct {
	hub       *syncHub
	value     uint64
	destroyed bool
}

var _ driver.TimelineSemaphore = (*TimelineSemaphore)(nil)

// IsTimeline returns true.
func (s *TimelineSemaphore) IsTimeline() bool { return true }

// Value returns the current counter.
func (s *TimelineSemaphore) Value() (uint64, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.destroyed {
		return 0, driver.ErrDestroyed
	}
	return s.value, nil
}

// Signal advances the counter from the host.
func (s *TimelineSemaphore) Signal(value uint64) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.destroyed {
		return driver.ErrDestroyed
	}
	if value <= s.value {
		return fmt.Errorf("headless: timeline signal %d not above current value %d", value, s.value)
	}
	s.value = value
	s.hub.changedLocked()
	return nil
}

// Wait blocks until the counter reaches value.
func (s *TimelineSemaphore) Wait(value uint64, timeout time.Duration) (bool, error) {
	ok := s.hub.waitUntil(func() bool { return s.destroyed || s.value >= value }, timeout)
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.destroyed {
		return false, driver.ErrDestroyed
	}
	return ok, nil
}

// Destroy releases the semaphore and wakes its waiters.
func (s *TimelineSemaphore) Destroy() {
	s.hub.mu.Lock()
	s.destroyed = true
	s.hub.changedLocked()
	s.hub.mu.Unlock()
}

// signalLocked applies a queue-side signal. Must hold hub.mu.
func (s *TimelineSemaphore) signalLocked(value uint64) {
	if value > s.value {
		s.value = value
	}
}

// Fence is signaled by the queue once its submission completes.
type Fence struct {
	hub      *syncHub
	signaled bool
}

var _ driver.Fence = (*Fence)(nil)

// Wait blocks until the fence is signaled.
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	return f.hub.waitUntil(func() bool { return f.signaled }, timeout), nil
}

// Reset unsignals the fence.
func (f *Fence) Reset() error {
	f.hub.mu.Lock()
	f.signaled = false
	f.hub.mu.Unlock()
	return nil
}

// Destroy is a no-op.
func (f *Fence) Destroy() {}

// waitSatisfiedLocked reports whether w can be consumed. Must hold hub.mu.
func waitSatisfiedLocked(w driver.SemaphoreWait) (bool, error) {
	switch s := w.Semaphore.(type) {
	case *Semaphore:
		return s.signaled, nil
	case *TimelineSemaphore:
		if s.destroyed {
			return false, driver.ErrDestroyed
		}
		return s.value >= w.Value, nil
	default:
		return false, fmt.Errorf("headless: foreign semaphore %T", w.Semaphore)
	}
}

// WaitSemaphores implements driver.Device.
func (d *Device) WaitSemaphores(waits []driver.SemaphoreWait, waitAll bool, timeout time.Duration) (bool, error) {
	if len(waits) == 0 {
		return true, nil
	}
	var firstErr error
	cond := func() bool {
		reached := 0
		for _, w := range waits {
			ok, err := waitSatisfiedLocked(w)
			if err != nil {
				if !errors.Is(err, driver.ErrDestroyed) {
					firstErr = err
					return true
				}
				continue
			}
			if ok {
				reached++
			}
		}
		if waitAll {
			return reached == len(waits)
		}
		return reached > 0
	}
	ok := d.hub.waitUntil(cond, timeout)
	if firstErr != nil {
		return false, firstErr
	}
	return ok, nil
}
