// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Destroyer is implemented by every object that holds GPU memory or handles.
// Destroy must be called explicitly; the garbage collector does not release
// driver objects.
type Destroyer interface {
	Destroy()
}

// Device creates driver objects and waits on semaphores.
type Device interface {
	Destroyer

	// Info describes the physical device backing this Device.
	Info() AdapterInfo

	// Queues returns every queue exposed by the device, in family order.
	Queues() []Queue

	// NewCommandPool creates a command pool whose buffers execute on q.
	NewCommandPool(q Queue) (CommandPool, error)

	// NewSemaphore creates a binary semaphore.
	NewSemaphore() (Semaphore, error)

	// NewTimelineSemaphore creates a timeline semaphore starting at initial.
	NewTimelineSemaphore(initial uint64) (TimelineSemaphore, error)

	// NewFence creates a fence, optionally in the signaled state.
	NewFence(signaled bool) (Fence, error)

	// NewBuffer creates a buffer.
	NewBuffer(desc *BufferDescriptor) (Buffer, error)

	// NewTexture creates a texture.
	NewTexture(desc *TextureDescriptor) (Texture, error)

	// NewSampler creates a sampler.
	NewSampler(desc *SamplerDescriptor) (Sampler, error)

	// NewDescriptorSetLayout creates a descriptor set layout.
	NewDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)

	// NewDescriptorPool creates a descriptor pool.
	NewDescriptorPool(desc *DescriptorPoolDescriptor) (DescriptorPool, error)

	// NewRenderPass creates a single-subpass render pass with one color
	// attachment of the given format.
	NewRenderPass(desc *RenderPassDescriptor) (RenderPass, error)

	// NewFramebuffer binds texture views to a render pass.
	NewFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)

	// NewGraphicsPipeline creates a graphics pipeline.
	NewGraphicsPipeline(desc *PipelineDescriptor) (Pipeline, error)

	// NewSwapchain creates a swapchain for a surface. When
	// desc.OldSwapchain is set, the new swapchain may reuse its resources;
	// the old one must still be destroyed by the caller.
	NewSwapchain(desc *SwapchainDescriptor) (Swapchain, error)

	// WaitSemaphores blocks until all (waitAll) or any of the timeline
	// waits reach their values, or until timeout expires. A zero timeout
	// polls. It returns false on timeout.
	WaitSemaphores(waits []SemaphoreWait, waitAll bool, timeout time.Duration) (bool, error)

	// WaitIdle blocks until every queue is idle.
	WaitIdle() error
}

// AdapterInfo describes a physical device.
type AdapterInfo struct {
	Name string
	Type gputypes.DeviceType

	// UnifiedMemory reports that device-local buffers are host visible, so
	// vertex data can be written directly without a staging copy.
	UnifiedMemory bool
}

// QueueCapabilities is a bit set of work a queue accepts.
type QueueCapabilities uint8

// Queue capabilities.
const (
	QueueGraphics QueueCapabilities = 1 << iota
	QueueTransfer
	QueueCompute
)

// Has reports whether all bits of c2 are set in c.
func (c QueueCapabilities) Has(c2 QueueCapabilities) bool { return c&c2 == c2 }

// Queue executes submitted command buffers in order.
type Queue interface {
	// Family identifies the queue family. Queues are compared by identity;
	// Family is informational.
	Family() int

	// Capabilities reports what work the queue accepts.
	Capabilities() QueueCapabilities

	// CanPresent reports whether the queue can present to surface.
	CanPresent(surface Surface) bool

	// Submit executes submits in order. The fence, if non-nil, is signaled
	// when all of them complete.
	Submit(submits []SubmitInfo, fence Fence) error

	// Present queues swapchain images for presentation.
	Present(info *PresentInfo) error

	// WaitIdle blocks until the queue is idle.
	WaitIdle() error
}

// CommandPool allocates command buffers for one queue.
type CommandPool interface {
	Destroyer

	// Queue returns the queue the pool's buffers execute on.
	Queue() Queue

	// NewCommandBuffer allocates a primary command buffer.
	NewCommandBuffer() (CommandBuffer, error)
}

// CommandBuffer records GPU commands.
//
// Begin must be called before any command and End after the last one. A
// buffer may be re-recorded after Reset once its previous submission has
// completed.
type CommandBuffer interface {
	Destroyer

	Begin() error
	End() error
	Reset() error

	BeginRenderPass(pass RenderPass, fb Framebuffer, area Rect2D, clear []ClearValue)
	EndRenderPass()

	SetViewport(vp Viewport)
	SetScissor(r Rect2D)

	BindPipeline(p Pipeline)
	BindDescriptorSets(p Pipeline, first int, sets []DescriptorSet)
	BindVertexBuffer(binding int, buf Buffer, offset uint64)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)

	CopyBuffer(src, dst Buffer, regions []BufferCopy)
	CopyBufferToTexture(src Buffer, dst Texture, bytesPerRow uint32)
}

// Fence is a host-visible completion signal for one submission.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled or timeout expires. It
	// returns false on timeout.
	Wait(timeout time.Duration) (bool, error)

	// Reset returns the fence to the unsignaled state.
	Reset() error
}

// Buffer is linear GPU memory.
type Buffer interface {
	Destroyer

	Size() uint64
	Usage() gputypes.BufferUsage

	// HostVisible reports whether Write may be used.
	HostVisible() bool

	// Write copies data into a host-visible buffer at offset.
	Write(offset uint64, data []byte) error
}

// Texture is a 2D image.
type Texture interface {
	Destroyer

	// ID identifies the texture for the lifetime of the process.
	ID() string

	Width() uint32
	Height() uint32
	Format() gputypes.TextureFormat

	// OnDestroy registers fn to run exactly once when the texture is
	// destroyed. Hooks run in registration order, before the handle is
	// released.
	OnDestroy(fn func())
}

// Sampler controls texture filtering.
type Sampler interface {
	Destroyer
}

// DescriptorSetLayout describes the bindings of descriptor sets.
type DescriptorSetLayout interface {
	Destroyer
	Bindings() []DescriptorBinding
}

// DescriptorPool allocates descriptor sets.
type DescriptorPool interface {
	Destroyer

	// Allocate allocates one set with the given layout. It returns an error
	// wrapping ErrOutOfPoolMemory or ErrFragmentedPool when exhausted.
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
}

// DescriptorSet binds resources to a pipeline.
type DescriptorSet interface {
	WriteBuffer(binding int, buf Buffer, offset, size uint64)
	WriteTexture(binding int, tex Texture, s Sampler)
}

// RenderPass describes attachments and their load/store behavior.
type RenderPass interface {
	Destroyer
	Format() gputypes.TextureFormat
}

// Framebuffer is a set of attachments bound to a render pass.
type Framebuffer interface {
	Destroyer
}

// Pipeline is a compiled graphics pipeline.
type Pipeline interface {
	Destroyer
	Label() string
}

// Surface is a presentation target owned by a window.
type Surface interface {
	// Capabilities reports the current surface limits.
	Capabilities() (SurfaceCapabilities, error)

	// Formats lists the color formats the surface accepts, preferred first.
	Formats() []gputypes.TextureFormat
}

// Swapchain is a ring of presentable textures.
type Swapchain interface {
	Destroyer

	Extent() Extent2D
	Format() gputypes.TextureFormat

	// Textures returns the swapchain images in index order.
	Textures() []Texture

	// AcquireNextImage returns the index of the next image and arranges for
	// signal to be signaled when the image is ready for rendering. It
	// returns an error wrapping ErrOutOfDate or ErrSuboptimal when the
	// swapchain must be recreated.
	AcquireNextImage(signal Semaphore, timeout time.Duration) (uint32, error)
}
