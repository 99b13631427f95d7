// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scheduler renders all windows once per host tick.
//
// A pass selects the windows that can take a frame, records their frames
// in parallel, submits every command buffer in one batch, presents once
// per presentation queue and waits for the batch through the run loop.
// Nothing is submitted when no window is eligible.
//
// Surface loss is recovered without halting: a window whose image
// acquisition failed is retried on the next tick, and a lost surface
// during submit or present sends every window of the pass back for a
// swapchain rebuild. Any other error stops the scheduler for good.
package scheduler
