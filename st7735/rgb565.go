// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import "image/color"

// RGB565 is the 16-bit pixel format used on the wire, 5 bits red, 6 bits
// green and 5 bits blue.
type RGB565 uint16

// RGBA implements color.Color.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r = uint32(c>>11) & 0x1f
	g = uint32(c>>5) & 0x3f
	b = uint32(c) & 0x1f
	// Expand to 16 bits by bit replication.
	r = (r<<11 | r<<6 | r<<1 | r>>4)
	g = (g<<10 | g<<4 | g>>2)
	b = (b<<11 | b<<6 | b<<1 | b>>4)
	return r, g, b, 0xffff
}

// RGB565Model converts any color to RGB565.
var RGB565Model = color.ModelFunc(convert)

func convert(c color.Color) color.Color {
	return toRGB565(c)
}

func toRGB565(c color.Color) RGB565 {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return RGB565((r>>11)<<11 | (g>>10)<<5 | b>>11)
}

// Common colors.
const (
	Black RGB565 = 0x0000
	White RGB565 = 0xffff
	Red   RGB565 = 0xf800
	Green RGB565 = 0x07e0
	Blue  RGB565 = 0x001f
)
