// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"errors"
	"fmt"
)

// State is the frame phase of a window.
type State uint8

// Window render states.
const (
	StateIdle State = iota
	StateRequestSent
	StateBuildingRenderOperations
	StateRenderOperationsReady
	StateRecordingCommandBuffer
	StateCommandBufferReady
	StateSwapchainFailed
	StateInvalidated
)

var stateNames = [...]string{
	StateIdle:                     "idle",
	StateRequestSent:              "requestSent",
	StateBuildingRenderOperations: "buildingRenderOperations",
	StateRenderOperationsReady:    "renderOperationsReady",
	StateRecordingCommandBuffer:   "recordingCommandBuffer",
	StateCommandBufferReady:       "commandBufferReady",
	StateSwapchainFailed:          "swapchainFailed",
	StateInvalidated:              "invalidated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Schedulable reports whether a frame may be requested in state s.
func (s State) Schedulable() bool {
	return s == StateIdle || s == StateSwapchainFailed
}

// RecordSteps selects the work RecordFrame performs.
type RecordSteps uint8

// Record steps.
const (
	// StepOperations traverses the layer tree.
	StepOperations RecordSteps = 1 << iota

	// StepCommandBuffer replays the operations into the command buffer.
	StepCommandBuffer
)

// Has reports whether all steps of o are set.
func (s RecordSteps) Has(o RecordSteps) bool { return s&o == o }

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// renderer's current state.
	ErrInvalidState = errors.New("present: invalid state")

	// ErrNoSurfaceFormat is returned when a surface reports no formats.
	ErrNoSurfaceFormat = errors.New("present: surface has no formats")
)
