// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu bridges the compositor's driver contract to the
// github.com/gogpu/wgpu hardware abstraction layer.
//
// HAL fences carry a 64-bit value but the HAL offers no way to wait on
// several of them at once. Timeline adapts one fence to
// driver.TimelineSemaphore and Poller provides the run loop's wait-any by
// polling with a bounded backoff.
//
// Devices come either from a host application through
// gpucontext.DeviceProvider (see FromProvider) or from a registered HAL
// backend (see Open).
package halgpu
