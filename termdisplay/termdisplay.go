// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termdisplay implements a 2D display.Drawer that outputs to a
// terminal using ANSI 256 color codes.
//
// Useful to run the node on a host without the TFT panel wired.
package termdisplay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	W int
	H int
	// Step renders one terminal cell per Step×Step pixels. Defaults to 1.
	Step    int
	Palette *ansi256.Palette
	// Out defaults to a color capable stdout.
	Out io.Writer

	_ struct{}
}

// Dev is a TFT panel emulator that outputs to the console.
type Dev struct {
	mu      sync.Mutex
	w       io.Writer
	step    int
	palette ansi256.Palette

	img *image.RGBA
	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.Out
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	step := opts.Step
	if step < 1 {
		step = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.W, opts.H))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	return &Dev{w: w, step: step, palette: *p, img: img}
}

func (d *Dev) String() string {
	return fmt.Sprintf("TermDisplay{%s}", d.img.Rect.Max)
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes so the console is not left colored.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := io.WriteString(d.w, "\033[0m\n")
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Rect
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	draw.Src.Draw(d.img, r, src, sp)
	return d.refresh()
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	// Home the cursor so successive frames overwrite each other.
	_, _ = d.buf.WriteString("\033[H\033[0m")
	b := d.img.Rect
	for y := b.Min.Y; y < b.Max.Y; y += d.step {
		for x := b.Min.X; x < b.Max.X; x += d.step {
			c := d.img.RGBAAt(x, y)
			_, _ = io.WriteString(&d.buf, d.palette.Block(color.NRGBA{c.R, c.G, c.B, 255}))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
