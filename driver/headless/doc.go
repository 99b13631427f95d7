// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package headless implements the driver interfaces in host memory.
//
// Queues execute on their own goroutines in submission order: a batch
// starts once its semaphore waits are satisfied, replays its command
// buffers (buffer and texture copies are performed for real, draws are
// counted) and then applies its signals. Timeline semaphores are host
// counters, so the run loop and the frame scheduler observe the same
// ordering they would on hardware.
//
// Every submit, present and allocation is recorded in a Journal, and
// surfaces accept injected failures, which makes the package the backend
// of choice for tests and for the framedemo command.
package headless
