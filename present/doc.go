// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package present drives one window's swapchain through the frame cycle.
//
// A SwapchainRenderer moves through these states:
//
//	idle -> requestSent -> buildingRenderOperations -> renderOperationsReady
//	     -> recordingCommandBuffer -> commandBufferReady -> idle
//
// A failed submission or presentation puts the renderer into
// swapchainFailed; the next frame rebuilds the swapchain and records the
// command buffer again. Invalidated is terminal: every entry point returns
// immediately once the window is gone.
//
// The frame scheduler owns the transitions out of idle (Request) and back
// to idle or swapchainFailed (Reset). Everything in between happens in
// RecordFrame on the task that owns the window for the current tick.
package present
