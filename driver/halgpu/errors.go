// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compositor/driver"
)

var (
	// ErrNoHAL is returned by FromProvider when the provider does not
	// expose its HAL device and queue.
	ErrNoHAL = errors.New("halgpu: provider does not expose a HAL device")

	// ErrNoAdapter is returned by Open when the backend reports no adapter.
	ErrNoAdapter = errors.New("halgpu: no adapter")

	// ErrHostSignal is returned by Timeline.Signal when the fence cannot be
	// signaled from the host.
	ErrHostSignal = errors.New("halgpu: fence cannot be signaled from the host")
)

// translate maps HAL errors onto the driver sentinels so callers can
// classify them with driver.IsSurfaceLost and errors.Is.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return fmt.Errorf("%w: %w", driver.ErrOutOfDate, err)
	case errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("%w: %w", driver.ErrDeviceLost, err)
	case errors.Is(err, hal.ErrTimeout):
		return fmt.Errorf("%w: %w", driver.ErrTimeout, err)
	}
	return err
}
