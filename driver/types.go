// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "github.com/gogpu/gputypes"

// Extent2D is a size in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Empty reports whether either dimension is zero.
func (e Extent2D) Empty() bool { return e.Width == 0 || e.Height == 0 }

// Clamp limits e to [lo, hi] per dimension.
func (e Extent2D) Clamp(lo, hi Extent2D) Extent2D {
	return Extent2D{
		Width:  clampU32(e.Width, lo.Width, hi.Width),
		Height: clampU32(e.Height, lo.Height, hi.Height),
	}
}

func clampU32(v, lo, hi uint32) uint32 {
	if hi != 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Rect2D is a pixel rectangle.
type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

// Viewport maps normalized device coordinates to framebuffer pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// ClearValue is a color attachment clear color.
type ClearValue struct {
	R, G, B, A float32
}

// BufferCopy is one region of a buffer-to-buffer copy.
type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

// BufferDescriptor describes a buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage

	// HostVisible requests host-mappable memory.
	HostVisible bool
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label         string
	Width, Height uint32
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// SamplerDescriptor describes a sampler.
type SamplerDescriptor struct {
	Label  string
	Linear bool
}

// DescriptorType is the kind of resource bound at a descriptor binding.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorCombinedImageSampler
)

// ShaderStage is a bit set of shader stages.
type ShaderStage uint8

// Shader stages.
const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
)

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding int
	Type    DescriptorType
	Stages  ShaderStage
}

// PoolSize is the number of descriptors of one type a pool can hold.
type PoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolDescriptor describes a descriptor pool.
type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Sizes   []PoolSize
}

// RenderPassDescriptor describes a single-subpass render pass with one
// color attachment.
type RenderPassDescriptor struct {
	Format gputypes.TextureFormat

	// Clear clears the attachment on load; otherwise contents are loaded.
	Clear bool

	// Present transitions the attachment for presentation at the end.
	Present bool
}

// FramebufferDescriptor binds attachments to a render pass.
type FramebufferDescriptor struct {
	Pass          RenderPass
	Attachments   []Texture
	Width, Height uint32
}

// PipelineDescriptor describes a graphics pipeline that draws
// triangle-strip quads from per-instance vertex data.
type PipelineDescriptor struct {
	Label         string
	VertexSPIRV   []uint32
	FragmentSPIRV []uint32
	RenderPass    RenderPass
	Layouts       []DescriptorSetLayout

	// InstanceStride is the byte stride of the per-instance vertex buffer.
	InstanceStride uint32

	// Blend enables premultiplied alpha blending.
	Blend bool
}

// PresentMode selects how presented images reach the display.
type PresentMode uint8

// Present modes.
const (
	PresentFIFO PresentMode = iota
	PresentMailbox
	PresentImmediate
)

// SurfaceCapabilities are the limits a surface imposes on swapchains.
type SurfaceCapabilities struct {
	MinImageCount, MaxImageCount uint32
	MinExtent, MaxExtent         Extent2D
	CurrentExtent                Extent2D
}

// SwapchainDescriptor describes a swapchain.
type SwapchainDescriptor struct {
	Surface      Surface
	Extent       Extent2D
	Format       gputypes.TextureFormat
	ImageCount   uint32
	Usage        gputypes.TextureUsage
	PresentMode  PresentMode
	OldSwapchain Swapchain
}
