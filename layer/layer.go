// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layer

import (
	"image"

	"github.com/google/uuid"

	"github.com/gogpu/compositor/driver"
)

// Delegate draws layer contents on demand.
type Delegate interface {
	// DisplayLayer is called by Display when the layer needs display. It
	// typically draws into l.BackingStore() and swaps it.
	DisplayLayer(l *Layer, scale float64)
}

// DelegateFunc adapts a function to Delegate.
type DelegateFunc func(l *Layer, scale float64)

// DisplayLayer calls f(l, scale).
func (f DelegateFunc) DisplayLayer(l *Layer, scale float64) { f(l, scale) }

// Layer is one node of the layer tree.
//
// Exported fields are plain values the host sets between frames. The
// zero Transform is treated as the identity.
type Layer struct {
	Bounds      Rect
	Position    Point
	AnchorPoint Point
	Transform   Transform3D
	Opacity     float64
	Hidden      bool

	BackgroundColor Color
	BorderColor     Color
	BorderWidth     float64
	CornerRadius    float64
	MasksToBounds   bool

	ShadowOffset  Point
	ShadowColor   Color
	ShadowRadius  float64
	ShadowOpacity float64

	Delegate Delegate

	id           string
	name         string
	superlayer   *Layer
	sublayers    []*Layer
	contents     image.Image
	backing      *BackingStore
	needsDisplay bool
	texture      driver.Texture
}

// New creates a visible layer with a centered anchor point and the
// identity transform.
func New() *Layer {
	return &Layer{
		AnchorPoint: Point{X: 0.5, Y: 0.5},
		Transform:   Identity(),
		Opacity:     1,
		id:          uuid.NewString(),
	}
}

// ID identifies the layer for the lifetime of the process.
func (l *Layer) ID() string {
	if l.id == "" {
		l.id = uuid.NewString()
	}
	return l.id
}

// Name returns the debug name.
func (l *Layer) Name() string { return l.name }

// SetName sets the debug name used in log output.
func (l *Layer) SetName(name string) { l.name = name }

// LocalTransform returns Transform, or the identity for the zero value.
func (l *Layer) LocalTransform() Transform3D {
	if l.Transform == (Transform3D{}) {
		return Identity()
	}
	return l.Transform
}

// Superlayer returns the parent layer, or nil for a root.
func (l *Layer) Superlayer() *Layer { return l.superlayer }

// Sublayers returns the children in drawing order, back to front.
func (l *Layer) Sublayers() []*Layer { return l.sublayers }

// AddSublayer appends child, removing it from its previous parent first.
func (l *Layer) AddSublayer(child *Layer) {
	if child == nil || child == l {
		return
	}
	child.RemoveFromSuperlayer()
	child.superlayer = l
	l.sublayers = append(l.sublayers, child)
}

// InsertSublayer inserts child at index i, clamped to the valid range.
func (l *Layer) InsertSublayer(child *Layer, i int) {
	if child == nil || child == l {
		return
	}
	child.RemoveFromSuperlayer()
	child.superlayer = l
	i = max(0, min(i, len(l.sublayers)))
	l.sublayers = append(l.sublayers, nil)
	copy(l.sublayers[i+1:], l.sublayers[i:])
	l.sublayers[i] = child
}

// RemoveFromSuperlayer detaches the layer from its parent. The layer keeps
// its texture; call Release to free it.
func (l *Layer) RemoveFromSuperlayer() {
	p := l.superlayer
	if p == nil {
		return
	}
	for i, s := range p.sublayers {
		if s == l {
			p.sublayers = append(p.sublayers[:i], p.sublayers[i+1:]...)
			break
		}
	}
	l.superlayer = nil
}

// Contents returns the image the layer displays. When a backing store is
// set, its front buffer wins.
func (l *Layer) Contents() image.Image {
	if l.backing != nil {
		if f := l.backing.Front(); f != nil {
			return f
		}
	}
	return l.contents
}

// SetContents sets a static image and marks the layer for display.
func (l *Layer) SetContents(img image.Image) {
	l.contents = img
	l.needsDisplay = true
}

// BackingStore returns the layer's backing store, or nil.
func (l *Layer) BackingStore() *BackingStore { return l.backing }

// SetBackingStore attaches a backing store and marks the layer for
// display.
func (l *Layer) SetBackingStore(b *BackingStore) {
	l.backing = b
	l.needsDisplay = true
}

// HasContents reports whether the layer has anything to upload.
func (l *Layer) HasContents() bool { return l.Contents() != nil }

// SetNeedsDisplay marks the layer so the renderer regenerates its
// contents in the next frame.
func (l *Layer) SetNeedsDisplay() { l.needsDisplay = true }

// NeedsDisplay reports whether the contents must be regenerated.
func (l *Layer) NeedsDisplay() bool { return l.needsDisplay }

// Display clears the needs-display flag and asks the delegate to redraw.
func (l *Layer) Display(scale float64) {
	l.needsDisplay = false
	if l.Delegate != nil {
		l.Delegate.DisplayLayer(l, scale)
	}
}

// Texture returns the GPU copy of the contents, or nil.
func (l *Layer) Texture() driver.Texture { return l.texture }

// ReplaceTexture installs t and destroys the previous texture, which runs
// its destroy hooks.
func (l *Layer) ReplaceTexture(t driver.Texture) {
	old := l.texture
	l.texture = t
	if old != nil && old != t {
		old.Destroy()
	}
}

// Release destroys the textures of l and all its descendants.
func (l *Layer) Release() {
	l.ReplaceTexture(nil)
	for _, s := range l.sublayers {
		s.Release()
	}
}

// Visible reports whether the layer takes part in rendering.
func (l *Layer) Visible() bool {
	return !l.Hidden && l.Opacity > OpacityThreshold
}

// OpacityThreshold is the opacity at or below which a layer is skipped.
const OpacityThreshold = 0.01

// Walk calls fn for l and each descendant in depth-first order. fn
// returning false skips the layer's sublayers.
func (l *Layer) Walk(fn func(*Layer) bool) {
	if !fn(l) {
		return
	}
	for _, s := range l.sublayers {
		s.Walk(fn)
	}
}
