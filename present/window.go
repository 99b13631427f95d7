// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"sync/atomic"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/compositor/layer"
)

// Window is the host window a SwapchainRenderer draws into.
type Window interface {
	// Number is the host-assigned window number.
	Number() int

	// Bounds is the content area in points.
	Bounds() layer.Rect

	// DisplayScale is the backing scale factor.
	DisplayScale() float64

	// Mapped reports whether the window is on screen.
	Mapped() bool

	// Closed reports whether the window is gone.
	Closed() bool

	// PendingResize reports whether the host is in a resize handshake and
	// frames must not be presented.
	PendingResize() bool

	// RootLayer returns the root of the window's layer tree.
	RootLayer() *layer.Layer
}

// HostWindow adapts a gpucontext.WindowProvider to Window. The provider
// supplies geometry and scale; the flags are set by the host.
type HostWindow struct {
	number   int
	provider gpucontext.WindowProvider
	root     *layer.Layer

	mapped        atomic.Bool
	closed        atomic.Bool
	pendingResize atomic.Bool
}

var _ Window = (*HostWindow)(nil)

// NewHostWindow creates a mapped window. A nil provider reports an
// 800x600 window at scale 1.
func NewHostWindow(number int, provider gpucontext.WindowProvider, root *layer.Layer) *HostWindow {
	if provider == nil {
		provider = gpucontext.NullWindowProvider{W: 800, H: 600}
	}
	w := &HostWindow{number: number, provider: provider, root: root}
	w.mapped.Store(true)
	return w
}

// Number implements Window.
func (w *HostWindow) Number() int { return w.number }

// Bounds implements Window.
func (w *HostWindow) Bounds() layer.Rect {
	width, height := w.provider.Size()
	return layer.R(0, 0, float64(width), float64(height))
}

// DisplayScale implements Window.
func (w *HostWindow) DisplayScale() float64 { return w.provider.ScaleFactor() }

// Mapped implements Window.
func (w *HostWindow) Mapped() bool { return w.mapped.Load() }

// Closed implements Window.
func (w *HostWindow) Closed() bool { return w.closed.Load() }

// PendingResize implements Window.
func (w *HostWindow) PendingResize() bool { return w.pendingResize.Load() }

// RootLayer implements Window.
func (w *HostWindow) RootLayer() *layer.Layer { return w.root }

// Provider returns the geometry provider.
func (w *HostWindow) Provider() gpucontext.WindowProvider { return w.provider }

// SetMapped shows or hides the window.
func (w *HostWindow) SetMapped(mapped bool) { w.mapped.Store(mapped) }

// SetPendingResize starts or ends a resize handshake.
func (w *HostWindow) SetPendingResize(pending bool) { w.pendingResize.Store(pending) }

// Close marks the window as gone.
func (w *HostWindow) Close() { w.closed.Store(true) }

// RequestRedraw forwards to the provider.
func (w *HostWindow) RequestRedraw() { w.provider.RequestRedraw() }
