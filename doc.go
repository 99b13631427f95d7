// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compositor renders retained layer trees into the swapchains of
// many windows at once.
//
// # Overview
//
// An Engine owns one render stack (device, queues, synchronization run
// loop) and one frame scheduler. Each scheduling pass records a command
// buffer per eligible window in parallel, submits them together, presents
// each swapchain and waits for the GPU before the next pass:
//
//	engine, err := compositor.New(device,
//	    compositor.WithTickInterval(16*time.Millisecond))
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	root := layer.New()
//	root.Bounds = layer.R(0, 0, 800, 600)
//	root.BackgroundColor = layer.White
//	if _, err := engine.AddWindow(1, provider, root, surface); err != nil {
//	    return err
//	}
//	return engine.Run(ctx)
//
// # Architecture
//
// The engine is organized into:
//   - driver: the GPU API contract, with a headless implementation
//   - layer: the layer tree rendered by each window
//   - render: render descriptors, the deferred operation list and caches
//   - present: the per-window swapchain renderer state machine
//   - scheduler: the frame scheduler batching all windows
//   - runloop: completion of timeline semaphore waits
//
// # Logging
//
// The engine logs through log/slog and is silent by default. See
// [SetLogger].
package compositor
