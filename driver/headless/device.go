// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
)

// Option configures a Device.
type Option func(*options)

type options struct {
	name          string
	deviceType    gputypes.DeviceType
	unifiedMemory bool
	separateCopy  bool
	latency       time.Duration
}

func defaultOptions() options {
	return options{
		name:         "Headless Adapter",
		deviceType:   gputypes.DeviceTypeDiscreteGPU,
		separateCopy: true,
	}
}

// WithUnifiedMemory makes every buffer host visible, so vertex data is
// written directly instead of through a staging copy.
func WithUnifiedMemory(enabled bool) Option {
	return func(o *options) { o.unifiedMemory = enabled }
}

// WithSeparateTransferQueue controls whether the device exposes a
// dedicated transfer queue family next to the graphics family.
func WithSeparateTransferQueue(enabled bool) Option {
	return func(o *options) { o.separateCopy = enabled }
}

// WithLatency delays completion of every submitted batch by d.
func WithLatency(d time.Duration) Option {
	return func(o *options) { o.latency = d }
}

// WithDeviceType sets the reported adapter type.
func WithDeviceType(t gputypes.DeviceType) Option {
	return func(o *options) { o.deviceType = t }
}

// WithName sets the reported adapter name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Device is an in-memory driver.Device.
type Device struct {
	opts    options
	hub     *syncHub
	queues  []*Queue
	journal *Journal

	mu        sync.Mutex
	destroyed bool
}

var _ driver.Device = (*Device)(nil)

// New creates a device with a graphics+present queue and, unless disabled,
// a transfer-only queue.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		opts:    o,
		hub:     newSyncHub(),
		journal: &Journal{},
	}
	d.queues = append(d.queues, newQueue(d, 0, driver.QueueGraphics|driver.QueueTransfer|driver.QueueCompute, true))
	if o.separateCopy {
		d.queues = append(d.queues, newQueue(d, 1, driver.QueueTransfer, false))
	}
	return d
}

// Journal returns the device's call journal.
func (d *Device) Journal() *Journal { return d.journal }

// Info implements driver.Device.
func (d *Device) Info() driver.AdapterInfo {
	return driver.AdapterInfo{
		Name:          d.opts.name,
		Type:          d.opts.deviceType,
		UnifiedMemory: d.opts.unifiedMemory,
	}
}

// Queues implements driver.Device.
func (d *Device) Queues() []driver.Queue {
	out := make([]driver.Queue, len(d.queues))
	for i, q := range d.queues {
		out[i] = q
	}
	return out
}

// NewCommandPool implements driver.Device.
func (d *Device) NewCommandPool(q driver.Queue) (driver.CommandPool, error) {
	hq, ok := q.(*Queue)
	if !ok || hq.device != d {
		return nil, fmt.Errorf("headless: queue %v does not belong to this device", q)
	}
	return &CommandPool{device: d, queue: hq}, nil
}

// NewSemaphore implements driver.Device.
func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	d.journal.count(&d.journal.stats.Semaphores)
	return &Semaphore{hub: d.hub}, nil
}

// NewTimelineSemaphore implements driver.Device.
func (d *Device) NewTimelineSemaphore(initial uint64) (driver.TimelineSemaphore, error) {
	d.journal.count(&d.journal.stats.TimelineSemaphores)
	return &TimelineSemaphore{hub: d.hub, value: initial}, nil
}

// NewFence implements driver.Device.
func (d *Device) NewFence(signaled bool) (driver.Fence, error) {
	return &Fence{hub: d.hub, signaled: signaled}, nil
}

// NewBuffer implements driver.Device.
func (d *Device) NewBuffer(desc *driver.BufferDescriptor) (driver.Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, errors.New("headless: buffer size must be positive")
	}
	hostVisible := d.opts.unifiedMemory || desc.HostVisible
	d.journal.count(&d.journal.stats.Buffers)
	return &Buffer{
		label:       desc.Label,
		usage:       desc.Usage,
		data:        make([]byte, desc.Size),
		hostVisible: hostVisible,
	}, nil
}

// NewTexture implements driver.Device.
func (d *Device) NewTexture(desc *driver.TextureDescriptor) (driver.Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("headless: texture size must be positive")
	}
	d.journal.count(&d.journal.stats.Textures)
	return newTexture(desc.Label, desc.Width, desc.Height, desc.Format), nil
}

// NewSampler implements driver.Device.
func (d *Device) NewSampler(*driver.SamplerDescriptor) (driver.Sampler, error) {
	return &object{}, nil
}

// NewDescriptorSetLayout implements driver.Device.
func (d *Device) NewDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{bindings: append([]driver.DescriptorBinding(nil), bindings...)}, nil
}

// NewDescriptorPool implements driver.Device.
func (d *Device) NewDescriptorPool(desc *driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	if desc == nil || desc.MaxSets == 0 {
		return nil, errors.New("headless: descriptor pool needs MaxSets")
	}
	d.journal.count(&d.journal.stats.DescriptorPools)
	return &DescriptorPool{journal: d.journal, maxSets: desc.MaxSets}, nil
}

// NewRenderPass implements driver.Device.
func (d *Device) NewRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	if desc == nil {
		return nil, errors.New("headless: nil render pass descriptor")
	}
	d.journal.count(&d.journal.stats.RenderPasses)
	return &RenderPass{format: desc.Format}, nil
}

// NewFramebuffer implements driver.Device.
func (d *Device) NewFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	if desc == nil || len(desc.Attachments) == 0 {
		return nil, errors.New("headless: framebuffer needs attachments")
	}
	d.journal.count(&d.journal.stats.Framebuffers)
	return &object{}, nil
}

// NewGraphicsPipeline implements driver.Device.
func (d *Device) NewGraphicsPipeline(desc *driver.PipelineDescriptor) (driver.Pipeline, error) {
	if desc == nil || len(desc.VertexSPIRV) == 0 || len(desc.FragmentSPIRV) == 0 {
		return nil, errors.New("headless: pipeline needs vertex and fragment code")
	}
	d.journal.count(&d.journal.stats.Pipelines)
	return &Pipeline{label: desc.Label}, nil
}

// NewSwapchain implements driver.Device.
func (d *Device) NewSwapchain(desc *driver.SwapchainDescriptor) (driver.Swapchain, error) {
	if desc == nil {
		return nil, errors.New("headless: nil swapchain descriptor")
	}
	s, ok := desc.Surface.(*Surface)
	if !ok {
		return nil, fmt.Errorf("headless: foreign surface %T", desc.Surface)
	}
	d.journal.count(&d.journal.stats.Swapchains)
	return newSwapchain(d.hub, s, desc)
}

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	for _, q := range d.queues {
		if err := q.WaitIdle(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy stops the queue goroutines.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()
	for _, q := range d.queues {
		q.stop()
	}
}
