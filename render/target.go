// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"sync"

	"github.com/gogpu/compositor/driver"
)

// RenderTarget is a framebuffer over one color texture.
type RenderTarget struct {
	Pass        driver.RenderPass
	Framebuffer driver.Framebuffer
	Color       driver.Texture
	Clear       driver.ClearValue
}

// Extent returns the size of the color attachment.
func (t *RenderTarget) Extent() driver.Extent2D {
	return driver.Extent2D{Width: t.Color.Width(), Height: t.Color.Height()}
}

// Viewport covers the whole target.
func (t *RenderTarget) Viewport() driver.Viewport {
	return driver.Viewport{
		Width:    float32(t.Color.Width()),
		Height:   float32(t.Color.Height()),
		MaxDepth: 1,
	}
}

// Area is the render area and scissor of the whole target.
func (t *RenderTarget) Area() driver.Rect2D {
	return driver.Rect2D{Width: t.Color.Width(), Height: t.Color.Height()}
}

// RenderTargetCache keeps one RenderTarget per color texture.
//
// Thread safety: RenderTargetCache is safe for concurrent use.
type RenderTargetCache struct {
	mu      sync.Mutex
	device  driver.Device
	targets map[driver.Texture]*RenderTarget
}

// NewRenderTargetCache creates an empty cache.
func NewRenderTargetCache(device driver.Device) *RenderTargetCache {
	return &RenderTargetCache{
		device:  device,
		targets: make(map[driver.Texture]*RenderTarget),
	}
}

// Existing returns the target for tex.
func (c *RenderTargetCache) Existing(tex driver.Texture) (*RenderTarget, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.targets[tex]
	return t, ok
}

// Create returns the target for tex, creating a framebuffer for pass when
// there is none.
func (c *RenderTargetCache) Create(tex driver.Texture, pass driver.RenderPass, clearColor driver.ClearValue) (*RenderTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.targets[tex]; ok && t.Pass == pass {
		t.Clear = clearColor
		return t, nil
	} else if ok {
		t.Framebuffer.Destroy()
		delete(c.targets, tex)
	}

	fb, err := c.device.NewFramebuffer(&driver.FramebufferDescriptor{
		Pass:        pass,
		Attachments: []driver.Texture{tex},
		Width:       tex.Width(),
		Height:      tex.Height(),
	})
	if err != nil {
		return nil, fmt.Errorf("render: create framebuffer for %s: %w", tex.ID(), err)
	}
	t := &RenderTarget{Pass: pass, Framebuffer: fb, Color: tex, Clear: clearColor}
	c.targets[tex] = t
	return t, nil
}

// Clear destroys every framebuffer.
func (c *RenderTargetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tex, t := range c.targets {
		t.Framebuffer.Destroy()
		delete(c.targets, tex)
	}
}

// Len returns the number of cached targets.
func (c *RenderTargetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.targets)
}
