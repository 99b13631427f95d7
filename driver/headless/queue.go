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

const queueDepth = 256

// job is one unit of queue work: a submit batch or a present.
type job struct {
	submit  *driver.SubmitInfo
	present *driver.PresentInfo
	fence   *Fence
	last    bool
}

// Queue executes batches on its own goroutine.
type Queue struct {
	device     *Device
	family     int
	caps       driver.QueueCapabilities
	canPresent bool

	jobs     chan job
	quit     chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
	inflight sync.WaitGroup

	mu         sync.Mutex
	submitErrs []error
	execErr    error
}

var _ driver.Queue = (*Queue)(nil)

func newQueue(d *Device, family int, caps driver.QueueCapabilities, canPresent bool) *Queue {
	q := &Queue{
		device:     d,
		family:     family,
		caps:       caps,
		canPresent: canPresent,
		jobs:       make(chan job, queueDepth),
		quit:       make(chan struct{}),
	}
	q.done.Add(1)
	go q.run()
	return q
}

// Family implements driver.Queue.
func (q *Queue) Family() int { return q.family }

// Capabilities implements driver.Queue.
func (q *Queue) Capabilities() driver.QueueCapabilities { return q.caps }

// CanPresent implements driver.Queue.
func (q *Queue) CanPresent(surface driver.Surface) bool {
	if !q.canPresent {
		return false
	}
	s, ok := surface.(*Surface)
	if !ok {
		return false
	}
	return s.presentableOn(q.family)
}

// FailNextSubmit makes the next Submit call return err without executing.
func (q *Queue) FailNextSubmit(err error) {
	q.mu.Lock()
	q.submitErrs = append(q.submitErrs, err)
	q.mu.Unlock()
}

// Err returns the first error hit while executing a batch.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.execErr
}

// Submit implements driver.Queue.
func (q *Queue) Submit(submits []driver.SubmitInfo, fence driver.Fence) error {
	q.mu.Lock()
	if len(q.submitErrs) > 0 {
		err := q.submitErrs[0]
		q.submitErrs = q.submitErrs[1:]
		q.mu.Unlock()
		return err
	}
	q.mu.Unlock()

	var hf *Fence
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return fmt.Errorf("headless: foreign fence %T", fence)
		}
		hf = f
	}

	for i := range submits {
		s := submits[i]
		rec := SubmitRecord{
			Queue:   q.family,
			Waits:   append([]driver.SemaphoreWait(nil), s.Waits...),
			Signals: append([]driver.SemaphoreSignal(nil), s.Signals...),
		}
		for _, cb := range s.CommandBuffers {
			hcb, ok := cb.(*CommandBuffer)
			if !ok {
				return fmt.Errorf("headless: foreign command buffer %T", cb)
			}
			if hcb.pool.queue != q {
				return fmt.Errorf("headless: command buffer from queue family %d submitted to %d", hcb.pool.queue.family, q.family)
			}
			rec.CommandBuffers = append(rec.CommandBuffers, hcb)
		}
		q.device.journal.addSubmit(rec)
		q.enqueue(job{submit: &s, fence: hf, last: i == len(submits)-1})
	}
	if len(submits) == 0 && hf != nil {
		q.enqueue(job{fence: hf, last: true})
	}
	return nil
}

// Present implements driver.Queue.
func (q *Queue) Present(info *driver.PresentInfo) error {
	if info == nil || len(info.Swapchains) != len(info.ImageIndices) {
		return errors.New("headless: malformed present info")
	}
	if !q.canPresent {
		return fmt.Errorf("headless: queue family %d cannot present", q.family)
	}
	for _, sc := range info.Swapchains {
		hs, ok := sc.(*Swapchain)
		if !ok {
			return fmt.Errorf("headless: foreign swapchain %T", sc)
		}
		if err := hs.surface.takePresentError(); err != nil {
			return err
		}
	}
	q.device.journal.addPresent(PresentRecord{
		Queue:        q.family,
		Swapchains:   append([]driver.Swapchain(nil), info.Swapchains...),
		ImageIndices: append([]uint32(nil), info.ImageIndices...),
		Waits:        len(info.Waits),
	})
	cp := *info
	q.enqueue(job{present: &cp, last: true})
	return nil
}

// WaitIdle implements driver.Queue.
func (q *Queue) WaitIdle() error {
	q.inflight.Wait()
	return q.Err()
}

func (q *Queue) enqueue(j job) {
	q.inflight.Add(1)
	select {
	case q.jobs <- j:
	case <-q.quit:
		q.inflight.Done()
	}
}

func (q *Queue) stop() {
	q.stopOnce.Do(func() { close(q.quit) })
	q.done.Wait()
}

func (q *Queue) run() {
	defer q.done.Done()
	for {
		select {
		case <-q.quit:
			q.drain()
			return
		case j := <-q.jobs:
			q.execute(j)
			q.inflight.Done()
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case <-q.jobs:
			q.inflight.Done()
		default:
			return
		}
	}
}

func (q *Queue) fail(err error) {
	q.mu.Lock()
	if q.execErr == nil {
		q.execErr = err
	}
	q.mu.Unlock()
}

// execute waits for j's dependencies, replays it and applies its signals.
func (q *Queue) execute(j job) {
	hub := q.device.hub
	switch {
	case j.submit != nil:
		if !q.await(j.submit.Waits) {
			return
		}
		for _, cb := range j.submit.CommandBuffers {
			if err := cb.(*CommandBuffer).execute(); err != nil {
				q.fail(err)
			}
		}
		if d := q.device.opts.latency; d > 0 {
			time.Sleep(d)
		}
		hub.mu.Lock()
		for _, s := range j.submit.Signals {
			switch sem := s.Semaphore.(type) {
			case *Semaphore:
				sem.signaled = true
			case *TimelineSemaphore:
				sem.signalLocked(s.Value)
			}
		}
		if j.fence != nil && j.last {
			j.fence.signaled = true
		}
		hub.changedLocked()
		hub.mu.Unlock()

	case j.present != nil:
		waits := make([]driver.SemaphoreWait, len(j.present.Waits))
		for i, s := range j.present.Waits {
			waits[i] = driver.SemaphoreWait{Semaphore: s}
		}
		q.await(waits)

	case j.fence != nil:
		hub.mu.Lock()
		j.fence.signaled = true
		hub.changedLocked()
		hub.mu.Unlock()
	}
}

// await blocks until every wait is satisfied, then consumes binary
// semaphores. It returns false when the queue is stopping.
func (q *Queue) await(waits []driver.SemaphoreWait) bool {
	if len(waits) == 0 {
		return true
	}
	// ready runs with hub.mu held, so checking and consuming is atomic.
	ready := func() bool {
		for _, w := range waits {
			ok, err := waitSatisfiedLocked(w)
			if err != nil || !ok {
				return false
			}
		}
		for _, w := range waits {
			if s, ok := w.Semaphore.(*Semaphore); ok {
				s.signaled = false
			}
		}
		return true
	}
	for !q.device.hub.waitUntil(ready, 50*time.Millisecond) {
		select {
		case <-q.quit:
			return false
		default:
		}
	}
	return true
}
