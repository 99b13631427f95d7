// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render turns a layer tree into GPU commands.
//
// Rendering is split in two phases so that resource binding and uploads
// happen once per frame rather than interleaved with tree traversal.
//
// # Building
//
// Context.Traverse walks the layer tree once. For every visible layer it
// appends a fixed-layout Descriptor (the per-instance vertex data) and
// records Operations: bind the layer's vertex-buffer slot, then draw its
// background, contents and border. Sublayers are visited between the
// contents and the border, so a border is drawn over the layer's
// children. A layer's descriptor index is its position in traversal order
// and stays fixed for the frame.
//
// # Recording
//
// Context.PerformOperations uploads all descriptors into one vertex buffer
// (written in place on unified-memory devices, otherwise through a
// staging buffer copied on the transfer queue) and replays the operations
// into the current command buffer. When a copy was issued, the draw
// submission must wait on Context.UploadWait at the vertex-input stage.
//
// Renderer bundles a Context with the pipelines, the render-target cache
// and the command buffer of one window.
package render
