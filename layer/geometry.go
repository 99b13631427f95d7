// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layer

// Point is a location in points.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width and height in points.
type Size struct {
	Width, Height float64
}

// Rect is an origin and a size.
type Rect struct {
	Origin Point
	Size   Size
}

// R is shorthand for a Rect at (x, y) of size w x h.
func R(x, y, w, h float64) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{Width: w, Height: h}}
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.Size.Width }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Size.Height }

// Mid returns the center point.
func (r Rect) Mid() Point {
	return Point{X: r.Origin.X + r.Size.Width/2, Y: r.Origin.Y + r.Size.Height/2}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Size.Width <= 0 || r.Size.Height <= 0 }

// Vec4 returns x, y, width, height as float32, the layout used by the
// render descriptor.
func (r Rect) Vec4() [4]float32 {
	return [4]float32{float32(r.Origin.X), float32(r.Origin.Y), float32(r.Size.Width), float32(r.Size.Height)}
}
