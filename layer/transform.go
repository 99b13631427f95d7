// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layer

import "math"

// Transform3D is a 4x4 matrix in column-major order, the layout GPU
// shaders expect. Element (row r, column c) is stored at index c*4+r.
//
// Points are column vectors, so a.Multiply(b) applies b first:
//
//	p' = A * B * p
type Transform3D [16]float64

// Identity returns the identity transform.
func Identity() Transform3D {
	return Transform3D{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation creates a translation transform.
func Translation(x, y, z float64) Transform3D {
	t := Identity()
	t[12], t[13], t[14] = x, y, z
	return t
}

// Scaling creates a scaling transform.
func Scaling(x, y, z float64) Transform3D {
	t := Identity()
	t[0], t[5], t[10] = x, y, z
	return t
}

// RotationZ creates a rotation about the z axis (angle in radians).
func RotationZ(angle float64) Transform3D {
	cos, sin := math.Cos(angle), math.Sin(angle)
	t := Identity()
	t[0], t[1] = cos, sin
	t[4], t[5] = -sin, cos
	return t
}

// Orthographic creates an orthographic projection mapping the box
// [left, right] x [bottom, top] x [near, far] to clip space.
func Orthographic(left, right, bottom, top, near, far float64) Transform3D {
	var t Transform3D
	t[0] = 2 / (right - left)
	t[5] = 2 / (top - bottom)
	t[10] = -2 / (far - near)
	t[12] = -(right + left) / (right - left)
	t[13] = -(top + bottom) / (top - bottom)
	t[14] = -(far + near) / (far - near)
	t[15] = 1
	return t
}

// At returns the element at row r, column c.
func (m Transform3D) At(r, c int) float64 { return m[c*4+r] }

// Multiply returns m * other.
func (m Transform3D) Multiply(other Transform3D) Transform3D {
	var out Transform3D
	for c := range 4 {
		for r := range 4 {
			var sum float64
			for k := range 4 {
				sum += m[k*4+r] * other[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// TransformPoint applies the transform to (p.X, p.Y, 0, 1).
func (m Transform3D) TransformPoint(p Point) Point {
	x := m[0]*p.X + m[4]*p.Y + m[12]
	y := m[1]*p.X + m[5]*p.Y + m[13]
	w := m[3]*p.X + m[7]*p.Y + m[15]
	if w != 0 && w != 1 {
		x /= w
		y /= w
	}
	return Point{X: x, Y: y}
}

// Invert returns the inverse transform.
// Returns the identity transform if the matrix is not invertible.
func (m Transform3D) Invert() Transform3D {
	var inv Transform3D
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if math.Abs(det) < 1e-12 {
		return Identity()
	}
	invDet := 1 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return inv
}

// IsIdentity returns true if the transform is the identity.
func (m Transform3D) IsIdentity() bool {
	return m == Identity()
}

// Float32 converts the transform for upload.
func (m Transform3D) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}
