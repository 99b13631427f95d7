// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/compositor/driver"
)

// Poller waits on several timeline semaphores by polling each one. It
// satisfies runloop.Waiter for devices without a native multi-wait.
//
// The poll interval starts at MinInterval and doubles up to MaxInterval
// while nothing is reached.
type Poller struct {
	MinInterval time.Duration
	MaxInterval time.Duration
}

// NewPoller returns a poller with a 50µs to 2ms backoff.
func NewPoller() *Poller {
	return &Poller{MinInterval: 50 * time.Microsecond, MaxInterval: 2 * time.Millisecond}
}

// WaitSemaphores reports whether all (waitAll) or any of the waits were
// reached before timeout. Destroyed semaphores never count as reached. A
// timeout of zero or less polls once.
func (p *Poller) WaitSemaphores(waits []driver.SemaphoreWait, waitAll bool, timeout time.Duration) (bool, error) {
	if len(waits) == 0 {
		return true, nil
	}
	deadline := time.Now().Add(timeout)
	interval := p.MinInterval
	if interval <= 0 {
		interval = 50 * time.Microsecond
	}
	for {
		done, err := p.poll(waits, waitAll)
		if err != nil || done {
			return done, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		time.Sleep(min(interval, remaining))
		if p.MaxInterval > 0 {
			interval = min(interval*2, p.MaxInterval)
		}
	}
}

func (p *Poller) poll(waits []driver.SemaphoreWait, waitAll bool) (bool, error) {
	reached := 0
	for _, w := range waits {
		sem, ok := w.Semaphore.(driver.TimelineSemaphore)
		if !ok {
			return false, fmt.Errorf("halgpu: poller cannot wait on binary semaphore %T", w.Semaphore)
		}
		v, err := sem.Value()
		if errors.Is(err, driver.ErrDestroyed) {
			continue
		}
		if err != nil {
			return false, err
		}
		if v >= w.Value {
			reached++
			if !waitAll {
				return true, nil
			}
		}
	}
	return waitAll && reached == len(waits), nil
}
