// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "errors"

// Sentinel errors reported by driver implementations.
var (
	// ErrOutOfDate is returned by acquire, submit or present when the
	// swapchain no longer matches its surface.
	ErrOutOfDate = errors.New("driver: swapchain out of date")

	// ErrSuboptimal is returned when the swapchain still works but no longer
	// matches the surface exactly. Callers treat it like ErrOutOfDate.
	ErrSuboptimal = errors.New("driver: swapchain suboptimal")

	// ErrFragmentedPool is returned by descriptor set allocation when the
	// pool has room but cannot satisfy the request.
	ErrFragmentedPool = errors.New("driver: descriptor pool fragmented")

	// ErrOutOfPoolMemory is returned by descriptor set allocation when the
	// pool is exhausted.
	ErrOutOfPoolMemory = errors.New("driver: descriptor pool out of memory")

	// ErrDeviceLost is returned when the device stops responding.
	ErrDeviceLost = errors.New("driver: device lost")

	// ErrTimeout is returned by blocking calls whose timeout expired where a
	// boolean result is not available.
	ErrTimeout = errors.New("driver: timeout")

	// ErrDestroyed is returned when an object is used after Destroy.
	ErrDestroyed = errors.New("driver: object destroyed")
)

// IsSurfaceLost reports whether err means the swapchain must be recreated.
func IsSurfaceLost(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// IsPoolExhausted reports whether err means a descriptor pool can no longer
// allocate and a fresh pool should be used.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrFragmentedPool) || errors.Is(err, ErrOutOfPoolMemory)
}
