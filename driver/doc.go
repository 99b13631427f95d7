// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the GPU API surface the compositor records and
// submits against.
//
// The interfaces mirror an explicit, Vulkan-style API: command pools and
// command buffers, queues with batched submission, binary and timeline
// semaphores, fences, swapchains bound to presentation surfaces, descriptor
// pools and sets, render passes, framebuffers and graphics pipelines.
//
// Implementations:
//   - driver/headless: in-memory device used by tests and the demo
//   - driver/halgpu: synchronization primitives on top of gogpu/wgpu HAL
//
// Every object handed out by a Device is owned by the caller and must be
// released with Destroy. Textures additionally accept destroy hooks so that
// caches keyed by a texture can drop their entries when it goes away.
package driver
