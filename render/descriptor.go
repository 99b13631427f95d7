// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/compositor/layer"
)

// DescriptorStride is the size of one encoded Descriptor and the stride
// of the per-instance vertex buffer.
const DescriptorStride = 256

// Descriptor is the per-layer record read by the vertex stage.
//
// The encoded layout is:
//
//	  0 Transform          [16]float32
//	 64 ContentsTransform  [16]float32
//	128 Position           [2]float32
//	136 AnchorPoint        [2]float32
//	144 Bounds             [4]float32
//	160 BackgroundColor    [4]float32
//	176 BorderColor        [4]float32
//	192 BorderWidth        float32
//	196 CornerRadius       float32
//	200 MasksToBounds      int32
//	204 ShadowRadius       float32
//	208 ShadowOffset       [2]float32
//	216 ShadowOpacity      float32
//	220 Opacity            float32
//	224 ShadowColor        [4]float32
//	240 padding
type Descriptor struct {
	Transform         [16]float32
	ContentsTransform [16]float32
	Position          [2]float32
	AnchorPoint       [2]float32
	Bounds            [4]float32
	BackgroundColor   [4]float32
	BorderColor       [4]float32
	BorderWidth       float32
	CornerRadius      float32
	MasksToBounds     int32
	ShadowRadius      float32
	ShadowOffset      [2]float32
	ShadowOpacity     float32
	Opacity           float32
	ShadowColor       [4]float32
}

// NewDescriptor captures l drawn with the given screen transform.
func NewDescriptor(l *layer.Layer, screen layer.Transform3D) Descriptor {
	d := Descriptor{
		Transform:         screen.Float32(),
		ContentsTransform: layer.Identity().Float32(),
		Position:          [2]float32{float32(l.Position.X), float32(l.Position.Y)},
		AnchorPoint:       [2]float32{float32(l.AnchorPoint.X), float32(l.AnchorPoint.Y)},
		Bounds:            l.Bounds.Vec4(),
		BackgroundColor:   l.BackgroundColor.Vec4(),
		BorderColor:       l.BorderColor.Vec4(),
		BorderWidth:       float32(l.BorderWidth),
		CornerRadius:      float32(l.CornerRadius),
		ShadowRadius:      float32(l.ShadowRadius),
		ShadowOffset:      [2]float32{float32(l.ShadowOffset.X), float32(l.ShadowOffset.Y)},
		ShadowOpacity:     float32(l.ShadowOpacity),
		Opacity:           float32(l.Opacity),
		ShadowColor:       l.ShadowColor.Vec4(),
	}
	if l.MasksToBounds {
		d.MasksToBounds = 1
	}
	return d
}

// AppendBytes appends the little-endian encoding of d, exactly
// DescriptorStride bytes.
func (d *Descriptor) AppendBytes(dst []byte) []byte {
	f := func(v float32) { dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v)) }
	for _, v := range d.Transform {
		f(v)
	}
	for _, v := range d.ContentsTransform {
		f(v)
	}
	f(d.Position[0])
	f(d.Position[1])
	f(d.AnchorPoint[0])
	f(d.AnchorPoint[1])
	for _, v := range d.Bounds {
		f(v)
	}
	for _, v := range d.BackgroundColor {
		f(v)
	}
	for _, v := range d.BorderColor {
		f(v)
	}
	f(d.BorderWidth)
	f(d.CornerRadius)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(d.MasksToBounds))
	f(d.ShadowRadius)
	f(d.ShadowOffset[0])
	f(d.ShadowOffset[1])
	f(d.ShadowOpacity)
	f(d.Opacity)
	for _, v := range d.ShadowColor {
		f(v)
	}
	var pad [16]byte
	return append(dst, pad[:]...)
}
