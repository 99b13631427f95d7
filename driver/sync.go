// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "time"

// Semaphore is a GPU-side synchronization object. Binary semaphores order
// work between queue operations; timeline semaphores additionally carry a
// monotonically increasing 64-bit value visible to the host.
type Semaphore interface {
	Destroyer

	// IsTimeline reports whether the semaphore is a timeline semaphore.
	IsTimeline() bool
}

// TimelineSemaphore is a semaphore with a monotonically increasing counter.
type TimelineSemaphore interface {
	Semaphore

	// Value returns the current counter value.
	Value() (uint64, error)

	// Signal sets the counter to value from the host. value must be
	// greater than the current value.
	Signal(value uint64) error

	// Wait blocks until the counter reaches value or timeout expires. It
	// returns false on timeout.
	Wait(value uint64, timeout time.Duration) (bool, error)
}

// PipelineStage is a bit set of pipeline stages a semaphore wait blocks.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe

	StageAllCommands PipelineStage = 1<<iota - 1
)

// String returns a readable list of stage names.
func (s PipelineStage) String() string {
	if s == 0 {
		return "none"
	}
	names := [...]string{
		"top-of-pipe", "vertex-input", "vertex-shader", "fragment-shader",
		"color-attachment-output", "transfer", "bottom-of-pipe",
	}
	out := ""
	for i, name := range names {
		if s&(1<<i) == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	return out
}

// SemaphoreWait is one wait operation of a submission. Value is ignored
// for binary semaphores.
type SemaphoreWait struct {
	Semaphore Semaphore
	Value     uint64
	Stages    PipelineStage
}

// SemaphoreSignal is one signal operation of a submission. Value is
// ignored for binary semaphores.
type SemaphoreSignal struct {
	Semaphore Semaphore
	Value     uint64
}

// SubmitInfo is one batch of a queue submission.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Waits          []SemaphoreWait
	Signals        []SemaphoreSignal
}

// PresentInfo presents one image from each swapchain. Swapchains and
// ImageIndices have equal length.
type PresentInfo struct {
	Waits        []Semaphore
	Swapchains   []Swapchain
	ImageIndices []uint32
}
