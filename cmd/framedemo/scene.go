// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/compositor/layer"
)

// labelPoints is the label font size in points.
const labelPoints = 12

var palette = []layer.Color{
	layer.Hex("#3b6ea5"),
	layer.Hex("#a53b5f"),
	layer.Hex("#3ba56e"),
	layer.Hex("#a5883b"),
}

var parseGoRegular = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// scene is the layer tree of one demo window.
type scene struct {
	number int
	root   *layer.Layer
	panel  *layer.Layer
	badge  *layer.Layer
	label  *layer.Layer
	text   *label
}

func newScene(number int, width, height float64) *scene {
	accent := palette[(number-1)%len(palette)]

	root := layer.New()
	root.SetName(fmt.Sprintf("window-%d", number))
	root.Bounds = layer.R(0, 0, width, height)
	root.Position = layer.Pt(width/2, height/2)
	root.BackgroundColor = accent

	panel := layer.New()
	panel.SetName("panel")
	panel.Bounds = layer.R(0, 0, width-40, height-60)
	panel.Position = layer.Pt(width/2, height/2+10)
	panel.BackgroundColor = layer.RGBA(1, 1, 1, 0.12)
	panel.BorderColor = layer.White
	panel.BorderWidth = 1
	panel.CornerRadius = 8
	panel.MasksToBounds = true
	root.AddSublayer(panel)

	badge := layer.New()
	badge.SetName("badge")
	badge.Bounds = layer.R(0, 0, 40, 40)
	badge.Position = layer.Pt(30, panel.Bounds.Height()/2)
	badge.BackgroundColor = layer.White
	badge.CornerRadius = 20
	panel.AddSublayer(badge)

	text := &label{color: color.White}
	text.SetText(fmt.Sprintf("window %d", number))
	lbl := layer.New()
	lbl.SetName("label")
	lbl.Bounds = layer.R(0, 0, width-40, 24)
	lbl.Position = layer.Pt(width/2, 20)
	lbl.Delegate = text
	lbl.SetBackingStore(layer.NewBackingStore(1, 1))
	root.AddSublayer(lbl)

	return &scene{number: number, root: root, panel: panel, badge: badge, label: lbl, text: text}
}

// animate moves the badge across the panel and refreshes the label every
// 30 passes.
func (s *scene) animate(pass uint64) {
	const period = 120
	t := float64(pass%period) / period
	travel := s.panel.Bounds.Width() - 60
	s.badge.Position.X = 30 + travel*0.5*(1-math.Cos(2*math.Pi*t))
	s.badge.Transform = layer.RotationZ(2 * math.Pi * t)

	if pass%30 == 0 {
		s.text.SetText(fmt.Sprintf("window %d  pass %d", s.number, pass))
		s.label.SetNeedsDisplay()
	}
}

// label is a layer delegate that draws one line of text into the layer's
// backing store.
type label struct {
	color color.Color

	mu    sync.Mutex
	text  string
	face  font.Face
	scale float64
}

// SetText replaces the text drawn on the next display.
func (lb *label) SetText(s string) {
	lb.mu.Lock()
	lb.text = s
	lb.mu.Unlock()
}

// Text returns the current text.
func (lb *label) Text() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.text
}

// DisplayLayer implements layer.Delegate.
func (lb *label) DisplayLayer(l *layer.Layer, scale float64) {
	bs := l.BackingStore()
	if bs == nil {
		return
	}
	w := int(math.Ceil(l.Bounds.Width() * scale))
	h := int(math.Ceil(l.Bounds.Height() * scale))
	bs.Resize(max(w, 1), max(h, 1))

	lb.mu.Lock()
	defer lb.mu.Unlock()
	face, err := lb.faceLocked(scale)
	if err != nil {
		return
	}

	dst := bs.Back()
	xdraw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
	m := face.Metrics()
	baseline := (h + m.Ascent.Ceil() - m.Descent.Ceil()) / 2
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(lb.color),
		Face: face,
		Dot:  fixed.P(int(4*scale), baseline),
	}
	d.DrawString(lb.text)
	bs.Swap()
}

// faceLocked returns a face for scale, creating it when the scale
// changed. Faces are not safe for concurrent use, so each label owns one.
func (lb *label) faceLocked(scale float64) (font.Face, error) {
	if lb.face != nil && lb.scale == scale {
		return lb.face, nil
	}
	f, err := parseGoRegular()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    labelPoints * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	if lb.face != nil {
		_ = lb.face.Close()
	}
	lb.face, lb.scale = face, scale
	return face, nil
}
