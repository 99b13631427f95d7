// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"sync"

	"github.com/gogpu/compositor/driver"
)

// Stats counts objects created through a device.
type Stats struct {
	Buffers            int
	Textures           int
	Semaphores         int
	TimelineSemaphores int
	DescriptorPools    int
	DescriptorSets     int
	RenderPasses       int
	Framebuffers       int
	Pipelines          int
	Swapchains         int
}

// SubmitRecord is one batch passed to Queue.Submit.
type SubmitRecord struct {
	Queue          int
	CommandBuffers []*CommandBuffer
	Waits          []driver.SemaphoreWait
	Signals        []driver.SemaphoreSignal
}

// PresentRecord is one call to Queue.Present.
type PresentRecord struct {
	Queue        int
	Swapchains   []driver.Swapchain
	ImageIndices []uint32
	Waits        int
}

// Journal records device activity for inspection.
type Journal struct {
	mu       sync.Mutex
	stats    Stats
	submits  []SubmitRecord
	presents []PresentRecord
}

func (j *Journal) count(field *int) {
	j.mu.Lock()
	*field++
	j.mu.Unlock()
}

func (j *Journal) addSubmit(r SubmitRecord) {
	j.mu.Lock()
	j.submits = append(j.submits, r)
	j.mu.Unlock()
}

func (j *Journal) addPresent(r PresentRecord) {
	j.mu.Lock()
	j.presents = append(j.presents, r)
	j.mu.Unlock()
}

// Stats returns a snapshot of the object counters.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Submits returns every recorded submit batch in call order.
func (j *Journal) Submits() []SubmitRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]SubmitRecord(nil), j.submits...)
}

// SubmitsOn returns the batches submitted to queue family.
func (j *Journal) SubmitsOn(family int) []SubmitRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []SubmitRecord
	for _, r := range j.submits {
		if r.Queue == family {
			out = append(out, r)
		}
	}
	return out
}

// Presents returns every recorded present in call order.
func (j *Journal) Presents() []PresentRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]PresentRecord(nil), j.presents...)
}

// Reset clears submits and presents. Stats are kept.
func (j *Journal) Reset() {
	j.mu.Lock()
	j.submits = nil
	j.presents = nil
	j.mu.Unlock()
}
