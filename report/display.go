// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GermanBionicSystems/sensornode/reading"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/display"
)

// DisplayOpts configures a Display sink.
type DisplayOpts struct {
	// Font is "goregular" (default) or "basic" for the 7x13 bitmap font.
	Font string
	// Size is the goregular size in points. Defaults to 9.
	Size float64
	// Foreground and Background default to white on black.
	Foreground color.Color
	Background color.Color
}

// Display renders text on a canvas the size of the device and pushes every
// frame to it.
//
// Text flows like on a character terminal: the cursor starts at the top
// left, "\n" moves to the next line and a line wider than the canvas wraps.
type Display struct {
	mu    sync.Mutex
	dev   display.Drawer
	dc    *gg.Context
	face  font.Face
	fg    color.Color
	bg    color.Color
	text  strings.Builder
	lines []string
}

// NewDisplay returns a Display drawing to dev.
func NewDisplay(dev display.Drawer, opts *DisplayOpts) (*Display, error) {
	o := DisplayOpts{}
	if opts != nil {
		o = *opts
	}
	face, err := newFace(o.Font, o.Size)
	if err != nil {
		return nil, err
	}
	if o.Foreground == nil {
		o.Foreground = color.White
	}
	if o.Background == nil {
		o.Background = color.Black
	}
	b := dev.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.SetFontFace(face)
	return &Display{dev: dev, dc: dc, face: face, fg: o.Foreground, bg: o.Background}, nil
}

func newFace(name string, size float64) (font.Face, error) {
	switch name {
	case "basic":
		return basicfont.Face7x13, nil
	case "", "goregular":
		if size <= 0 {
			size = 9
		}
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("report: parsing font: %w", err)
		}
		return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
	}
	return nil, fmt.Errorf("report: unknown font %q", name)
}

// Name implements the name lookup of Sinks.
func (d *Display) Name() string {
	return "display"
}

// Report implements Sink. The screen is cleared then each field is drawn as
// "<label>:<value><unit>" followed by an empty line.
func (d *Display) Report(_ context.Context, s reading.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text.Reset()
	for _, f := range s.Fields() {
		fmt.Fprintf(&d.text, "%s:%.2f%s\n\n", f.Label, f.Value, f.Unit)
	}
	return d.render()
}

// Message implements Messenger. The text is appended to what is on screen.
func (d *Display) Message(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text.WriteString(s)
	return d.render()
}

// Clear blanks the screen and homes the cursor.
func (d *Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text.Reset()
	return d.render()
}

// Lines returns the text lines of the last frame, after wrapping.
func (d *Display) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func (d *Display) render() error {
	d.lines = d.layout(d.text.String())
	d.dc.SetColor(d.bg)
	d.dc.Clear()
	d.dc.SetColor(d.fg)
	m := d.face.Metrics()
	ascent := m.Ascent.Ceil()
	step := m.Height.Ceil()
	for i, l := range d.lines {
		y := ascent + i*step
		if y-ascent >= d.dc.Height() {
			break
		}
		d.dc.DrawString(l, 0, float64(y))
	}
	if err := d.dev.Draw(d.dev.Bounds(), d.dc.Image(), image.Point{}); err != nil {
		return fmt.Errorf("report: drawing: %w", err)
	}
	return nil
}

// layout splits text into lines no wider than the canvas.
func (d *Display) layout(text string) []string {
	width := float64(d.dc.Width())
	var out []string
	parts := strings.Split(text, "\n")
	// A trailing "\n" only moves the cursor.
	if len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for _, p := range parts {
		for {
			if w, _ := d.dc.MeasureString(p); w <= width {
				out = append(out, p)
				break
			}
			n := d.fit(p, width)
			out = append(out, p[:n])
			if p = p[n:]; p == "" {
				break
			}
		}
	}
	return out
}

// fit returns the byte length of the longest prefix of s that fits in width.
// It is never less than the first rune.
func (d *Display) fit(s string, width float64) int {
	n := 0
	for i, r := range s {
		end := i + utf8.RuneLen(r)
		if w, _ := d.dc.MeasureString(s[:end]); w > width && n > 0 {
			break
		}
		n = end
	}
	return n
}
