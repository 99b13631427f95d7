// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/internal/shaders"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/renderstack"
)

// uniformSize is the byte size of the model-view-projection matrix.
const uniformSize = 64

// quadVertices is the vertex count of one layer quad (a triangle strip).
const quadVertices = 4

// Context holds the per-frame state of one renderer: descriptors and
// operations built by Traverse, and the GPU resources PerformOperations
// replays them into.
//
// A Context is used by one goroutine at a time.
type Context struct {
	device   driver.Device
	transfer driver.Queue
	config   renderstack.Config
	logger   *slog.Logger

	layouts   *Layouts
	pipelines *Pipelines
	scale     float64

	descriptors []Descriptor
	operations  []Operation
	encoded     []byte

	// Vertex upload.
	vertexBuffer   driver.Buffer
	stagingBuffer  driver.Buffer
	uploadPool     driver.CommandPool
	uploadCommands driver.CommandBuffer
	uploadTimeline driver.TimelineSemaphore
	uploadCount    uint64
	uploaded       bool

	// Model-view-projection.
	uniformBuffer driver.Buffer
	uniformPool   driver.DescriptorPool
	uniformSet    driver.DescriptorSet
	mvp           layer.Transform3D
	mvpWritten    bool

	contents *DescriptorSetCache
	sampler  driver.Sampler

	// Replay state.
	cmd      driver.CommandBuffer
	scene    *RenderTarget
	targets  []*RenderTarget
	pipeline driver.Pipeline
}

// NewContext creates a context drawing with pipelines. The context owns
// layouts from then on.
func NewContext(stack *renderstack.Stack, layouts *Layouts, pipelines *Pipelines) (_ *Context, err error) {
	device := stack.Device()
	c := &Context{
		device:    device,
		transfer:  stack.TransferQueue(),
		config:    stack.Config(),
		logger:    logging.OrNop(stack.Logger()),
		layouts:   layouts,
		pipelines: pipelines,
		scale:     1,
	}
	defer func() {
		if err != nil {
			c.Destroy()
		}
	}()

	if c.uploadPool, err = device.NewCommandPool(c.transfer); err != nil {
		return nil, fmt.Errorf("render: create upload command pool: %w", err)
	}
	if c.uploadCommands, err = c.uploadPool.NewCommandBuffer(); err != nil {
		return nil, fmt.Errorf("render: create upload command buffer: %w", err)
	}
	if c.uploadTimeline, err = device.NewTimelineSemaphore(0); err != nil {
		return nil, fmt.Errorf("render: create upload timeline: %w", err)
	}

	c.uniformBuffer, err = device.NewBuffer(&driver.BufferDescriptor{
		Label:       "uniforms",
		Size:        uniformSize,
		Usage:       gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		HostVisible: true,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create uniform buffer: %w", err)
	}
	c.uniformPool, err = device.NewDescriptorPool(&driver.DescriptorPoolDescriptor{
		MaxSets: 1,
		Sizes:   []driver.PoolSize{{Type: driver.DescriptorUniformBuffer, Count: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("render: create uniform pool: %w", err)
	}
	if c.uniformSet, err = c.uniformPool.Allocate(layouts.Uniform); err != nil {
		return nil, fmt.Errorf("render: allocate uniform set: %w", err)
	}
	c.uniformSet.WriteBuffer(0, c.uniformBuffer, 0, uniformSize)

	if c.sampler, err = device.NewSampler(&driver.SamplerDescriptor{Label: "contents", Linear: true}); err != nil {
		return nil, fmt.Errorf("render: create sampler: %w", err)
	}
	c.contents = NewDescriptorSetCache(device, layouts.Contents, c.config.DescriptorPoolSize, c.logger)
	return c, nil
}

// SetPipelines switches to pipelines built for a new target format. The
// contents descriptor sets are dropped.
func (c *Context) SetPipelines(p *Pipelines) {
	c.pipelines = p
	c.contents.Clear()
}

// SetScale sets the display scale used by the next traversal.
func (c *Context) SetScale(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	c.scale = scale
}

// Scale returns the display scale.
func (c *Context) Scale() float64 { return c.scale }

// SetSceneTarget sets the target BeginScene renders into.
func (c *Context) SetSceneTarget(t *RenderTarget) { c.scene = t }

// SetCommandBuffer sets the command buffer operations are replayed into.
func (c *Context) SetCommandBuffer(cmd driver.CommandBuffer) { c.cmd = cmd }

// Clear prepares the context for a new frame. It must be called once
// before Traverse.
//
// The previous frame's upload timeline is destroyed here rather than when
// the frame ends, because its submission is known to be complete only
// once the next frame starts.
func (c *Context) Clear() error {
	if err := c.awaitUpload(); err != nil {
		return err
	}
	c.descriptors = c.descriptors[:0]
	c.operations = c.operations[:0]
	c.targets = c.targets[:0]
	c.pipeline = nil
	c.uploaded = false
	c.uploadCount = 0

	if c.uploadTimeline != nil {
		c.uploadTimeline.Destroy()
		c.uploadTimeline = nil
	}
	sem, err := c.device.NewTimelineSemaphore(0)
	if err != nil {
		return fmt.Errorf("render: create upload timeline: %w", err)
	}
	c.uploadTimeline = sem
	return nil
}

// Append adds op to the operation list.
func (c *Context) Append(op Operation) { c.operations = append(c.operations, op) }

// Operations returns the recorded operations.
func (c *Context) Operations() []Operation { return c.operations }

// Descriptors returns the recorded descriptors in traversal order.
func (c *Context) Descriptors() []Descriptor { return c.descriptors }

// DescriptorCount returns the number of recorded descriptors.
func (c *Context) DescriptorCount() int { return len(c.descriptors) }

// VertexBuffer returns the per-instance vertex buffer, or nil before the
// first upload.
func (c *Context) VertexBuffer() driver.Buffer { return c.vertexBuffer }

// ContentsCache returns the descriptor sets of layer textures.
func (c *Context) ContentsCache() *DescriptorSetCache { return c.contents }

// Traverse records descriptors and operations for root and its visible
// descendants.
func (c *Context) Traverse(root *layer.Layer, parent layer.Transform3D) error {
	if root == nil {
		return ErrNoLayer
	}
	return c.traverse(root, parent)
}

func (c *Context) traverse(l *layer.Layer, parent layer.Transform3D) error {
	if !l.Visible() {
		return nil
	}
	s := c.scale
	w, h := l.Bounds.Width(), l.Bounds.Height()

	index := len(c.descriptors)
	offset := l.Position.Sub(l.Bounds.Mid())
	anchor := layer.Translation(l.AnchorPoint.X*w*s, l.AnchorPoint.Y*h*s, 0)
	local := parent.
		Multiply(layer.Translation(offset.X*s, offset.Y*s, 0)).
		Multiply(anchor).
		Multiply(l.LocalTransform()).
		Multiply(anchor.Invert())
	screen := local.Multiply(layer.Scaling(w*s, h*s, 1))

	c.descriptors = append(c.descriptors, NewDescriptor(l, screen))

	if l.NeedsDisplay() || (l.HasContents() && l.Texture() == nil) {
		l.Display(s)
		if err := c.updateContents(l); err != nil {
			return err
		}
	}

	if l.BackgroundColor.Visible() {
		c.Append(BindVertexBuffer(index))
		c.Append(Background())
	}
	if tex := l.Texture(); tex != nil {
		c.Append(BindVertexBuffer(index))
		c.Append(Contents(tex))
	}
	for _, sub := range l.Sublayers() {
		if err := c.traverse(sub, local); err != nil {
			return err
		}
	}
	if l.BorderWidth > 0 && l.BorderColor.Visible() {
		c.Append(BindVertexBuffer(index))
		c.Append(Border())
	}
	return nil
}

// PerformOperations uploads the descriptors and replays the operations
// into the current command buffer.
func (c *Context) PerformOperations() error {
	if c.cmd == nil {
		return ErrNoCommandBuffer
	}
	if err := c.uploadDescriptors(); err != nil {
		return err
	}
	c.pipeline = nil
	c.targets = c.targets[:0]
	for _, op := range c.operations {
		if err := c.apply(op); err != nil {
			return fmt.Errorf("render: %s: %w", op, err)
		}
	}
	return nil
}

func (c *Context) apply(op Operation) error {
	switch op.Kind {
	case OpUpdateUniforms:
		if c.mvpWritten && c.mvp == op.Matrix {
			return nil
		}
		m := op.Matrix.Float32()
		buf := make([]byte, 0, uniformSize)
		for _, v := range m {
			buf = appendFloat32(buf, v)
		}
		if err := c.uniformBuffer.Write(0, buf); err != nil {
			return err
		}
		c.mvp = op.Matrix
		c.mvpWritten = true

	case OpBeginScene:
		if c.scene == nil {
			return ErrNoRenderTarget
		}
		c.begin(c.scene, c.scene.Pass)
		c.targets = append(c.targets, c.scene)

	case OpEndScene:
		c.cmd.EndRenderPass()
		c.targets = c.targets[:max(len(c.targets)-1, 0)]

	case OpPushRenderTarget:
		if op.Target == nil {
			return ErrNoRenderTarget
		}
		if len(c.targets) > 0 {
			c.cmd.EndRenderPass()
		}
		c.begin(op.Target, op.Target.Pass)
		c.targets = append(c.targets, op.Target)

	case OpPopRenderTarget:
		if len(c.targets) == 0 {
			return ErrNoRenderTarget
		}
		c.cmd.EndRenderPass()
		c.targets = c.targets[:len(c.targets)-1]
		if n := len(c.targets); n > 0 {
			c.begin(c.targets[n-1], c.pipelines.resumePass)
		}

	case OpBindVertexBuffer:
		if c.vertexBuffer == nil || op.Index >= len(c.descriptors) {
			return fmt.Errorf("descriptor %d out of range", op.Index)
		}
		c.cmd.BindVertexBuffer(0, c.vertexBuffer, uint64(op.Index)*DescriptorStride)

	case OpBackground:
		c.draw(shaders.Background, c.uniformSet)

	case OpBorder:
		c.draw(shaders.Border, c.uniformSet)

	case OpContents:
		set, err := c.contentsSet(op.Texture)
		if err != nil {
			return err
		}
		c.draw(shaders.Contents, c.uniformSet, set)

	default:
		return fmt.Errorf("unknown operation %d", op.Kind)
	}
	return nil
}

func (c *Context) begin(t *RenderTarget, pass driver.RenderPass) {
	c.cmd.BeginRenderPass(pass, t.Framebuffer, t.Area(), []driver.ClearValue{t.Clear})
	c.cmd.SetViewport(t.Viewport())
	c.cmd.SetScissor(t.Area())
	c.pipeline = nil
}

func (c *Context) draw(prog shaders.Program, sets ...driver.DescriptorSet) {
	p := c.pipelines.Pipeline(prog)
	if p != c.pipeline {
		c.cmd.BindPipeline(p)
		c.pipeline = p
	}
	c.cmd.BindDescriptorSets(p, 0, sets)
	c.cmd.Draw(quadVertices, 1, 0, 0)
}

// contentsSet returns the descriptor set sampling tex, writing it when
// the texture is new to the cache.
func (c *Context) contentsSet(tex driver.Texture) (driver.DescriptorSet, error) {
	if tex == nil {
		return nil, errors.New("contents without texture")
	}
	if set, ok := c.contents.Existing(tex); ok {
		return set, nil
	}
	set, err := c.contents.Create(tex)
	if err != nil {
		return nil, err
	}
	set.WriteTexture(0, tex, c.sampler)
	return set, nil
}

// Destroy releases every resource the context owns.
func (c *Context) Destroy() {
	if c.contents != nil {
		c.contents.Destroy()
	}
	for _, d := range []driver.Destroyer{
		c.vertexBuffer, c.stagingBuffer, c.uploadCommands, c.uploadPool,
		c.uploadTimeline, c.uniformBuffer, c.uniformPool, c.sampler,
	} {
		if d != nil {
			d.Destroy()
		}
	}
	c.vertexBuffer, c.stagingBuffer = nil, nil
	c.uploadCommands, c.uploadPool, c.uploadTimeline = nil, nil, nil
	c.uniformBuffer, c.uniformPool, c.sampler = nil, nil, nil
	if c.layouts != nil {
		c.layouts.Destroy()
		c.layouts = nil
	}
}
