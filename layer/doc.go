// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package layer provides the retained layer tree the compositor renders.
//
// A Layer carries geometry (bounds, position, anchor point, a 3D
// transform), appearance (background, border, corner radius, shadow,
// opacity) and optional contents: either a static image or a BackingStore
// that a Delegate draws into on demand. The host mutates the tree from its
// own thread between frames; the renderer only reads it.
//
// Coordinates are in points with the origin at the top left. The
// renderer converts to pixels with the window's display scale.
package layer
