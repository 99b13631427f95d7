// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/layer"
	"github.com/gogpu/compositor/renderstack"
)

// Renderer draws one layer tree into one sequence of destination
// textures, typically the images of a window's swapchain.
type Renderer struct {
	stack  *renderstack.Stack
	logger *slog.Logger

	pipelines *Pipelines
	context   *Context
	targets   *RenderTargetCache
	commands  driver.CommandBuffer
}

// NewRenderer creates a renderer for textures of format. Its command
// buffer is allocated from pool.
func NewRenderer(stack *renderstack.Stack, pool driver.CommandPool, format gputypes.TextureFormat) (_ *Renderer, err error) {
	device := stack.Device()
	r := &Renderer{
		stack:   stack,
		logger:  stack.Logger(),
		targets: NewRenderTargetCache(device),
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	layouts, err := NewLayouts(device)
	if err != nil {
		return nil, err
	}
	if r.pipelines, err = NewPipelines(device, format, layouts); err != nil {
		layouts.Destroy()
		return nil, err
	}
	if r.context, err = NewContext(stack, layouts, r.pipelines); err != nil {
		return nil, err
	}
	if r.commands, err = pool.NewCommandBuffer(); err != nil {
		return nil, fmt.Errorf("render: create command buffer: %w", err)
	}
	return r, nil
}

// Format returns the destination format the pipelines are built for.
func (r *Renderer) Format() gputypes.TextureFormat { return r.pipelines.Format() }

// SetDestination makes tex the scene target. When tex has a different
// format than the current pipelines they are rebuilt and the caches
// holding format-dependent objects are cleared.
func (r *Renderer) SetDestination(tex driver.Texture) error {
	if tex == nil {
		return ErrNoRenderTarget
	}
	if f := tex.Format(); f != r.pipelines.Format() {
		r.logger.Debug("render: destination format changed", "from", r.pipelines.Format(), "to", f)
		p, err := NewPipelines(r.stack.Device(), f, r.context.layouts)
		if err != nil {
			return err
		}
		r.pipelines.Destroy()
		r.pipelines = p
		r.context.SetPipelines(p)
		r.targets.Clear()
	}
	t, err := r.targets.Create(tex, r.pipelines.ScenePass(), r.stack.Config().ClearColor)
	if err != nil {
		return err
	}
	r.context.SetSceneTarget(t)
	return nil
}

// SetScale sets the display scale of the next BuildOperations.
func (r *Renderer) SetScale(scale float64) { r.context.SetScale(scale) }

// BuildOperations records the frame for root: the projection over the
// root's pixel size, then the scene.
func (r *Renderer) BuildOperations(root *layer.Layer) error {
	if root == nil {
		return ErrNoLayer
	}
	if err := r.context.Clear(); err != nil {
		return err
	}
	s := r.context.Scale()
	w, h := root.Bounds.Width()*s, root.Bounds.Height()*s
	r.context.Append(UpdateUniforms(layer.Orthographic(0, w, h, 0, -1, 1)))
	r.context.Append(BeginScene())
	if err := r.context.Traverse(root, layer.Identity()); err != nil {
		return err
	}
	r.context.Append(EndScene())
	return nil
}

// PerformOperations records the built operations into the command
// buffer.
func (r *Renderer) PerformOperations() error {
	cmd := r.commands
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	r.context.SetCommandBuffer(cmd)
	if err := r.context.PerformOperations(); err != nil {
		_ = cmd.End()
		return err
	}
	return cmd.End()
}

// EndFrame drops the references to the frame's destination.
func (r *Renderer) EndFrame() {
	r.context.SetSceneTarget(nil)
	r.context.SetCommandBuffer(nil)
}

// CommandBuffer returns the command buffer PerformOperations records
// into.
func (r *Renderer) CommandBuffer() driver.CommandBuffer { return r.commands }

// TargetCache returns the framebuffers of destination textures.
func (r *Renderer) TargetCache() *RenderTargetCache { return r.targets }

// Context returns the frame context.
func (r *Renderer) Context() *Context { return r.context }

// Destroy releases the renderer's GPU objects. The layer textures are
// owned by the layers.
func (r *Renderer) Destroy() {
	if r.commands != nil {
		r.commands.Destroy()
		r.commands = nil
	}
	r.targets.Clear()
	if r.context != nil {
		r.context.Destroy()
		r.context = nil
	}
	if r.pipelines != nil {
		r.pipelines.Destroy()
		r.pipelines = nil
	}
}
