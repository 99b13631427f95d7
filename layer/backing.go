// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layer

import (
	"image"
	"sync"
)

// BackingStore is a pair of RGBA buffers. A delegate draws into Back and
// calls Swap; the renderer uploads Front.
type BackingStore struct {
	mu    sync.Mutex
	front *image.RGBA
	back  *image.RGBA
}

// NewBackingStore allocates both buffers at w x h pixels.
func NewBackingStore(w, h int) *BackingStore {
	return &BackingStore{
		front: image.NewRGBA(image.Rect(0, 0, w, h)),
		back:  image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

// Size returns the buffer size in pixels.
func (b *BackingStore) Size() (w, h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.back.Bounds()
	return r.Dx(), r.Dy()
}

// Resize reallocates both buffers when the size differs.
func (b *BackingStore) Resize(w, h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.back.Bounds(); r.Dx() == w && r.Dy() == h {
		return
	}
	b.front = image.NewRGBA(image.Rect(0, 0, w, h))
	b.back = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Back returns the buffer to draw into.
func (b *BackingStore) Back() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.back
}

// Front returns the last completed buffer.
func (b *BackingStore) Front() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.front
}

// Swap exchanges front and back.
func (b *BackingStore) Swap() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front
	b.mu.Unlock()
}
