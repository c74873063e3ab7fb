// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mirror provides a display.Drawer that keeps a copy of the node's
// screen and serves it over HTTP.
//
// A plain GET returns the latest frame as a single image. With "?stream=1"
// the response is a never ending multipart/x-mixed-replace stream (MJPEG
// style) that gets a new part on every Draw. PNG is the default format; JPEG
// can be requested with "?format=jpeg".
package mirror

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"sync"

	"periph.io/x/conn/v3/display"
)

// Format is an image encoding served to clients.
type Format int

const (
	PNG Format = iota
	JPEG
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func (f Format) contentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// ParseFormat returns the Format for a "format" query value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	}
	return PNG, fmt.Errorf("mirror: unrecognized image format %q", s)
}

// Opts for a mirror device.
type Opts struct {
	W, H int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dev mirrors a display.
type Dev struct {
	log *slog.Logger
	png png.Encoder

	mu      sync.Mutex
	img     *image.RGBA
	gen     uint64
	cache   map[Format][]byte
	waiters map[chan struct{}]struct{}
	halted  bool
}

// New returns a mirror with an opaque black canvas.
func New(opts *Opts) *Dev {
	img := image.NewRGBA(image.Rect(0, 0, opts.W, opts.H))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Dev{
		log:     l.With("component", "mirror"),
		png:     png.Encoder{CompressionLevel: png.BestSpeed},
		img:     img,
		cache:   map[Format][]byte{},
		waiters: map[chan struct{}]struct{}{},
	}
}

func (d *Dev) String() string {
	return "Mirror"
}

// Halt implements conn.Resource. It ends every running stream.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
	d.wakeLocked()
	return nil
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
	draw.Draw(d.img, r, src, sp, draw.Src)
	d.gen++
	clear(d.cache)
	d.wakeLocked()
	return nil
}

func (d *Dev) wakeLocked() {
	for c := range d.waiters {
		close(c)
		delete(d.waiters, c)
	}
}

// frame returns the encoded current image and its generation. With watch,
// it also returns a channel closed on the next Draw or Halt.
func (d *Dev) frame(f Format, watch bool) ([]byte, uint64, <-chan struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.cache[f]
	if !ok {
		var buf bytes.Buffer
		var err error
		if f == JPEG {
			err = jpeg.Encode(&buf, d.img, &jpeg.Options{Quality: 90})
		} else {
			err = d.png.Encode(&buf, d.img)
		}
		if err != nil {
			return nil, 0, nil, fmt.Errorf("mirror: encoding %s: %w", f, err)
		}
		b = buf.Bytes()
		d.cache[f] = b
	}
	if !watch {
		return b, d.gen, nil, nil
	}
	c := make(chan struct{})
	if d.halted {
		close(c)
	} else {
		d.waiters[c] = struct{}{}
	}
	return b, d.gen, c, nil
}

func (d *Dev) isHalted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.halted
}

var _ display.Drawer = &Dev{}
var _ http.Handler = &Dev{}
