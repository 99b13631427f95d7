// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/compositor/driver"
)

// object backs driver types that carry no state beyond their lifetime.
type object struct {
	destroyed bool
}

func (o *object) Destroy() { o.destroyed = true }

// Buffer is a byte slice.
type Buffer struct {
	label       string
	usage       gputypes.BufferUsage
	hostVisible bool

	mu        sync.Mutex
	data      []byte
	destroyed bool
}

var _ driver.Buffer = (*Buffer)(nil)

// Size implements driver.Buffer.
func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

// Usage implements driver.Buffer.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// HostVisible implements driver.Buffer.
func (b *Buffer) HostVisible() bool { return b.hostVisible }

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Write implements driver.Buffer.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if !b.hostVisible {
		return fmt.Errorf("headless: buffer %q is not host visible", b.label)
	}
	return b.write(offset, data)
}

func (b *Buffer) write(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return driver.ErrDestroyed
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("headless: write of %d bytes at %d overflows buffer %q (%d bytes)",
			len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Destroyed reports whether Destroy was called.
func (b *Buffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

// Texture is an RGBA pixel store.
type Texture struct {
	id     string
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	mu        sync.Mutex
	pixels    []byte
	hooks     []func()
	destroyed bool
}

var _ driver.Texture = (*Texture)(nil)

func newTexture(label string, w, h uint32, format gputypes.TextureFormat) *Texture {
	return &Texture{
		id:     uuid.NewString(),
		label:  label,
		width:  w,
		height: h,
		format: format,
	}
}

// ID implements driver.Texture.
func (t *Texture) ID() string { return t.id }

// Width implements driver.Texture.
func (t *Texture) Width() uint32 { return t.width }

// Height implements driver.Texture.
func (t *Texture) Height() uint32 { return t.height }

// Format implements driver.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// OnDestroy implements driver.Texture.
func (t *Texture) OnDestroy(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.hooks = append(t.hooks, fn)
}

// Destroy runs the destroy hooks once.
func (t *Texture) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Destroyed reports whether Destroy was called.
func (t *Texture) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Pixels returns a copy of the last uploaded pixels.
func (t *Texture) Pixels() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.pixels...)
}

func (t *Texture) upload(src []byte) {
	t.mu.Lock()
	t.pixels = append(t.pixels[:0], src...)
	t.mu.Unlock()
}

// DescriptorSetLayout records its bindings.
type DescriptorSetLayout struct {
	object
	bindings []driver.DescriptorBinding
}

// Bindings implements driver.DescriptorSetLayout.
func (l *DescriptorSetLayout) Bindings() []driver.DescriptorBinding { return l.bindings }

// DescriptorPool hands out at most maxSets sets.
type DescriptorPool struct {
	journal *Journal

	mu        sync.Mutex
	maxSets   uint32
	allocated uint32
	destroyed bool
}

var _ driver.DescriptorPool = (*DescriptorPool)(nil)

// Allocate implements driver.DescriptorPool.
func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	if layout == nil {
		return nil, errors.New("headless: nil descriptor set layout")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, driver.ErrDestroyed
	}
	if p.allocated >= p.maxSets {
		return nil, fmt.Errorf("headless: %d of %d sets in use: %w", p.allocated, p.maxSets, driver.ErrOutOfPoolMemory)
	}
	p.allocated++
	p.journal.count(&p.journal.stats.DescriptorSets)
	return &DescriptorSet{pool: p, writes: make(map[int]any)}, nil
}

// Destroy implements driver.Destroyer.
func (p *DescriptorPool) Destroy() {
	p.mu.Lock()
	p.destroyed = true
	p.mu.Unlock()
}

// DescriptorSet records the resources written to each binding.
type DescriptorSet struct {
	pool *DescriptorPool

	mu     sync.Mutex
	writes map[int]any
}

var _ driver.DescriptorSet = (*DescriptorSet)(nil)

// WriteBuffer implements driver.DescriptorSet.
func (s *DescriptorSet) WriteBuffer(binding int, buf driver.Buffer, _, _ uint64) {
	s.mu.Lock()
	s.writes[binding] = buf
	s.mu.Unlock()
}

// WriteTexture implements driver.DescriptorSet.
func (s *DescriptorSet) WriteTexture(binding int, tex driver.Texture, _ driver.Sampler) {
	s.mu.Lock()
	s.writes[binding] = tex
	s.mu.Unlock()
}

// Binding returns the resource last written to binding.
func (s *DescriptorSet) Binding(binding int) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[binding]
}

// RenderPass records its attachment format.
type RenderPass struct {
	object
	format gputypes.TextureFormat
}

// Format implements driver.RenderPass.
func (p *RenderPass) Format() gputypes.TextureFormat { return p.format }

// Pipeline records its label.
type Pipeline struct {
	object
	label string
}

// Label implements driver.Pipeline.
func (p *Pipeline) Label() string { return p.label }
