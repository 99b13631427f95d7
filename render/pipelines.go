// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/shaders"
)

// compileProgram is replaced in tests when the shader compiler cannot
// handle a program.
var compileProgram = shaders.SPIRV

// Layouts are the descriptor set layouts shared by all pipelines. They do
// not depend on the target format and outlive pipeline rebuilds.
type Layouts struct {
	// Uniform holds the model-view-projection buffer (set 0).
	Uniform driver.DescriptorSetLayout

	// Contents holds a layer texture and its sampler (set 1).
	Contents driver.DescriptorSetLayout
}

// NewLayouts creates the descriptor set layouts.
func NewLayouts(device driver.Device) (*Layouts, error) {
	uniform, err := device.NewDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DescriptorUniformBuffer, Stages: driver.ShaderVertex},
	})
	if err != nil {
		return nil, fmt.Errorf("render: create uniform layout: %w", err)
	}
	contents, err := device.NewDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DescriptorCombinedImageSampler, Stages: driver.ShaderFragment},
	})
	if err != nil {
		uniform.Destroy()
		return nil, fmt.Errorf("render: create contents layout: %w", err)
	}
	return &Layouts{Uniform: uniform, Contents: contents}, nil
}

// Destroy releases both layouts.
func (l *Layouts) Destroy() {
	l.Uniform.Destroy()
	l.Contents.Destroy()
}

// Pipelines are the render passes and layer pipelines for one target
// format.
type Pipelines struct {
	format gputypes.TextureFormat

	// scenePass clears the target and leaves it ready to present.
	scenePass driver.RenderPass

	// offscreenPass clears an offscreen target.
	offscreenPass driver.RenderPass

	// resumePass continues drawing into a target without clearing it.
	resumePass driver.RenderPass

	programs [len(shaders.Programs)]driver.Pipeline
}

// NewPipelines builds the render passes and one pipeline per program for
// format.
func NewPipelines(device driver.Device, format gputypes.TextureFormat, layouts *Layouts) (_ *Pipelines, err error) {
	p := &Pipelines{format: format}
	defer func() {
		if err != nil {
			p.Destroy()
		}
	}()

	if p.scenePass, err = device.NewRenderPass(&driver.RenderPassDescriptor{Format: format, Clear: true, Present: true}); err != nil {
		return nil, fmt.Errorf("render: create scene pass: %w", err)
	}
	if p.offscreenPass, err = device.NewRenderPass(&driver.RenderPassDescriptor{Format: format, Clear: true}); err != nil {
		return nil, fmt.Errorf("render: create offscreen pass: %w", err)
	}
	if p.resumePass, err = device.NewRenderPass(&driver.RenderPassDescriptor{Format: format}); err != nil {
		return nil, fmt.Errorf("render: create resume pass: %w", err)
	}

	for _, prog := range shaders.Programs {
		var code []uint32
		if code, err = compileProgram(prog); err != nil {
			return nil, err
		}
		sets := []driver.DescriptorSetLayout{layouts.Uniform}
		if prog == shaders.Contents {
			sets = append(sets, layouts.Contents)
		}
		var pl driver.Pipeline
		pl, err = device.NewGraphicsPipeline(&driver.PipelineDescriptor{
			Label:          prog.String(),
			VertexSPIRV:    code,
			FragmentSPIRV:  code,
			RenderPass:     p.scenePass,
			Layouts:        sets,
			InstanceStride: DescriptorStride,
			Blend:          true,
		})
		if err != nil {
			return nil, fmt.Errorf("render: create %s pipeline: %w", prog, err)
		}
		p.programs[prog] = pl
	}
	return p, nil
}

// Format returns the target format the pipelines were built for.
func (p *Pipelines) Format() gputypes.TextureFormat { return p.format }

// ScenePass returns the render pass used for window images.
func (p *Pipelines) ScenePass() driver.RenderPass { return p.scenePass }

// OffscreenPass returns the render pass used for offscreen targets.
func (p *Pipelines) OffscreenPass() driver.RenderPass { return p.offscreenPass }

// Pipeline returns the pipeline drawing prog.
func (p *Pipelines) Pipeline(prog shaders.Program) driver.Pipeline {
	if int(prog) >= len(p.programs) {
		return nil
	}
	return p.programs[prog]
}

// Destroy releases the pipelines and render passes.
func (p *Pipelines) Destroy() {
	for i, pl := range p.programs {
		if pl != nil {
			pl.Destroy()
			p.programs[i] = nil
		}
	}
	for _, rp := range []*driver.RenderPass{&p.scenePass, &p.offscreenPass, &p.resumePass} {
		if *rp != nil {
			(*rp).Destroy()
			*rp = nil
		}
	}
}
