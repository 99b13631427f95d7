// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layer

import "image/color"

// Color is a straight-alpha color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// RGB creates an opaque color.
func RGB(r, g, b float64) Color { return Color{R: r, G: g, B: b, A: 1} }

// RGBA creates a color from components.
func RGBA(r, g, b, a float64) Color { return Color{R: r, G: g, B: b, A: a} }

// FromColor converts a standard color.Color.
func FromColor(c color.Color) Color {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{
		R: float64(nc.R) / 255,
		G: float64(nc.G) / 255,
		B: float64(nc.B) / 255,
		A: float64(nc.A) / 255,
	}
}

// Hex parses "RGB", "RGBA", "RRGGBB" or "RRGGBBAA", with or without a
// leading '#'. Unparseable input yields opaque black.
func Hex(hex string) Color {
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b uint32
	a := uint32(255)
	switch len(hex) {
	case 3, 4:
		r, g, b = nibble(hex[0])*17, nibble(hex[1])*17, nibble(hex[2])*17
		if len(hex) == 4 {
			a = nibble(hex[3]) * 17
		}
	case 6, 8:
		r = nibble(hex[0])<<4 | nibble(hex[1])
		g = nibble(hex[2])<<4 | nibble(hex[3])
		b = nibble(hex[4])<<4 | nibble(hex[5])
		if len(hex) == 8 {
			a = nibble(hex[6])<<4 | nibble(hex[7])
		}
	default:
		return RGB(0, 0, 0)
	}
	return Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
		A: float64(a) / 255,
	}
}

func nibble(c byte) uint32 {
	switch {
	case '0' <= c && c <= '9':
		return uint32(c - '0')
	case 'a' <= c && c <= 'f':
		return uint32(c - 'a' + 10)
	case 'A' <= c && c <= 'F':
		return uint32(c - 'A' + 10)
	}
	return 0
}

// Visible reports whether the color has non-zero alpha.
func (c Color) Visible() bool { return c.A != 0 }

// Vec4 returns the components as float32, the layout used by the render
// descriptor.
func (c Color) Vec4() [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}

// NRGBA converts to a standard 8-bit color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

func to8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Common colors.
var (
	Black       = RGB(0, 0, 0)
	White       = RGB(1, 1, 1)
	Clear       = RGBA(0, 0, 0, 0)
	Transparent = Clear
)
