// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "errors"

var (
	// ErrNoLayer is returned when a nil layer is traversed.
	ErrNoLayer = errors.New("render: no layer")

	// ErrNoRenderTarget is returned when a scene begins without a
	// destination.
	ErrNoRenderTarget = errors.New("render: no render target")

	// ErrNoCommandBuffer is returned when operations are performed
	// without a command buffer.
	ErrNoCommandBuffer = errors.New("render: no command buffer")
)
