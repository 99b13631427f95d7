// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/layer"
)

// OpKind identifies an Operation.
type OpKind uint8

// Operation kinds.
const (
	OpUpdateUniforms OpKind = iota + 1
	OpBeginScene
	OpEndScene
	OpPushRenderTarget
	OpPopRenderTarget
	OpBindVertexBuffer
	OpBackground
	OpBorder
	OpContents
)

func (k OpKind) String() string {
	switch k {
	case OpUpdateUniforms:
		return "UpdateUniforms"
	case OpBeginScene:
		return "BeginScene"
	case OpEndScene:
		return "EndScene"
	case OpPushRenderTarget:
		return "PushRenderTarget"
	case OpPopRenderTarget:
		return "PopRenderTarget"
	case OpBindVertexBuffer:
		return "BindVertexBuffer"
	case OpBackground:
		return "Background"
	case OpBorder:
		return "Border"
	case OpContents:
		return "Contents"
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// Operation is one recorded rendering step. Which payload field is
// meaningful depends on Kind.
type Operation struct {
	Kind OpKind

	// Matrix is the model-view-projection for OpUpdateUniforms.
	Matrix layer.Transform3D

	// Index is the descriptor slot for OpBindVertexBuffer.
	Index int

	// Texture is the contents for OpContents.
	Texture driver.Texture

	// Target is the destination for OpPushRenderTarget.
	Target *RenderTarget
}

func (op Operation) String() string {
	switch op.Kind {
	case OpBindVertexBuffer:
		return fmt.Sprintf("%s(%d)", op.Kind, op.Index)
	case OpContents:
		if op.Texture != nil {
			return fmt.Sprintf("%s(%s)", op.Kind, op.Texture.ID())
		}
	}
	return op.Kind.String()
}

// UpdateUniforms sets the model-view-projection matrix.
func UpdateUniforms(m layer.Transform3D) Operation {
	return Operation{Kind: OpUpdateUniforms, Matrix: m}
}

// BeginScene begins the render pass of the scene target.
func BeginScene() Operation { return Operation{Kind: OpBeginScene} }

// EndScene ends the scene render pass.
func EndScene() Operation { return Operation{Kind: OpEndScene} }

// PushRenderTarget suspends the current pass and renders into t.
func PushRenderTarget(t *RenderTarget) Operation {
	return Operation{Kind: OpPushRenderTarget, Target: t}
}

// PopRenderTarget returns to the previous target.
func PopRenderTarget() Operation { return Operation{Kind: OpPopRenderTarget} }

// BindVertexBuffer binds the vertex buffer at descriptor slot index.
func BindVertexBuffer(index int) Operation {
	return Operation{Kind: OpBindVertexBuffer, Index: index}
}

// Background draws the bound layer's background.
func Background() Operation { return Operation{Kind: OpBackground} }

// Border draws the bound layer's border.
func Border() Operation { return Operation{Kind: OpBorder} }

// Contents draws tex over the bound layer.
func Contents(tex driver.Texture) Operation {
	return Operation{Kind: OpContents, Texture: tex}
}
