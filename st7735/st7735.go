// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Commands
const (
	swReset byte = 0x01
	slpIn   byte = 0x10
	slpOut  byte = 0x11
	norOn   byte = 0x13
	invOff  byte = 0x20
	invOn   byte = 0x21
	dispOff byte = 0x28
	dispOn  byte = 0x29
	caSet   byte = 0x2a
	raSet   byte = 0x2b
	ramWr   byte = 0x2c
	madCtl  byte = 0x36
	colMod  byte = 0x3a
	frmCtr1 byte = 0xb1
	frmCtr2 byte = 0xb2
	frmCtr3 byte = 0xb3
	invCtr  byte = 0xb4
	pwCtr1  byte = 0xc0
	pwCtr2  byte = 0xc1
	pwCtr3  byte = 0xc2
	pwCtr4  byte = 0xc3
	pwCtr5  byte = 0xc4
	vmCtr1  byte = 0xc5
	gmCtrP1 byte = 0xe0
	gmCtrN1 byte = 0xe1
)

// MADCTL bits.
const (
	madctlMY  byte = 0x80
	madctlMX  byte = 0x40
	madctlMV  byte = 0x20
	madctlBGR byte = 0x08
)

// Rotation is the orientation of the panel in 90° clockwise steps.
type Rotation int

// Possible rotations.
const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// Opts defines the panel geometry.
type Opts struct {
	// W and H are the native, unrotated, panel size.
	W int
	H int
	// ColStart and RowStart are the offsets of the visible area in the
	// controller memory; they differ between panel batches.
	ColStart int
	RowStart int
	Rotation Rotation
	// BGR is set for panels wired with red and blue swapped.
	BGR bool
	// Invert is set for panels that show a negative image.
	Invert bool
}

// RedTab is the 128x160 panel sold with a red protective film tab.
var RedTab = Opts{W: 128, H: 160, BGR: true}

var sleep = time.Sleep

// Dev is an open handle to the display controller.
type Dev struct {
	c   conn.Conn
	dc  gpio.PinOut
	cs  gpio.PinOut
	rst gpio.PinOut

	opts Opts
	rect image.Rectangle

	// buffer is the RGB565 big endian content of the controller memory.
	buffer []byte
	// next is lazy initialized on first Draw().
	next   *image.RGBA
	maxTx  int
	redraw bool
	halted bool
	madctl byte
}

// New returns a Dev that communicates over SPI to an ST7735 controller.
//
// dc is required. cs and rst can be nil when the SPI port drives chip select
// and reset is tied high.
func New(p spi.Port, dc, cs, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errors.New("st7735: dc pin is required")
	}
	if opts == nil {
		opts = &RedTab
	}
	if opts.W <= 0 || opts.H <= 0 || opts.W > 132 || opts.H > 162 {
		return nil, fmt.Errorf("st7735: invalid size %dx%d", opts.W, opts.H)
	}
	c, err := p.Connect(15*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7735: %w", err)
	}
	d := &Dev{
		c:      c,
		dc:     dc,
		cs:     cs,
		rst:    rst,
		opts:   *opts,
		maxTx:  4096,
		redraw: true,
	}
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		// At least one pixel per transfer.
		d.maxTx = max(2, l.MaxTxSize())
	}
	w, h := opts.W, opts.H
	d.madctl = madctlMX | madctlMY
	switch opts.Rotation {
	case Rotate0:
	case Rotate90:
		d.madctl = madctlMY | madctlMV
		w, h = h, w
	case Rotate180:
		d.madctl = 0
	case Rotate270:
		d.madctl = madctlMX | madctlMV
		w, h = h, w
	default:
		return nil, fmt.Errorf("st7735: invalid rotation %d", opts.Rotation)
	}
	if opts.BGR {
		d.madctl |= madctlBGR
	}
	d.rect = image.Rect(0, 0, w, h)
	d.buffer = make([]byte, 2*w*h)
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("st7735.Dev{%s, %s, %s}", d.c, d.dc, d.rect.Max)
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return RGB565Model
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw implements display.Drawer.
//
// It draws synchronously, once this function returns, the display is updated.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if d.next == nil {
		d.next = image.NewRGBA(d.rect)
	}
	draw.Src.Draw(d.next, r, src, sp)
	next := make([]byte, len(d.buffer))
	w := d.rect.Dx()
	for y := 0; y < d.rect.Dy(); y++ {
		for x := 0; x < w; x++ {
			c := toRGB565(d.next.RGBAAt(x, y))
			i := 2 * (y*w + x)
			next[i] = byte(c >> 8)
			next[i+1] = byte(c)
		}
	}
	dirty, ok := d.calculateSubset(next)
	if !ok {
		return nil
	}
	copy(d.buffer, next)
	return d.sendRect(dirty)
}

// FillRect fills r with a single color.
func (d *Dev) FillRect(r image.Rectangle, c color.Color) error {
	r = r.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	v := toRGB565(c)
	px := []byte{byte(v >> 8), byte(v)}
	w := d.rect.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := 2 * (y*w + x)
			copy(d.buffer[i:], px)
		}
	}
	if d.next != nil {
		draw.Src.Draw(d.next, r, &image.Uniform{C: v}, image.Point{})
	}
	if err := d.setWindow(r); err != nil {
		return err
	}
	n := 2 * r.Dx() * r.Dy()
	chunk := bytes.Repeat(px, min(n, d.maxTx)/2)
	for n > 0 {
		l := min(n, len(chunk))
		if err := d.sendData(chunk[:l]); err != nil {
			return err
		}
		n -= l
	}
	return nil
}

// Clear fills the whole display with c.
func (d *Dev) Clear(c color.Color) error {
	return d.FillRect(d.rect, c)
}

// Invert turns color inversion on or off.
func (d *Dev) Invert(on bool) error {
	if on {
		return d.sendCommand(invOn)
	}
	return d.sendCommand(invOff)
}

// Halt turns off the display and puts the controller to sleep.
//
// Drawing afterward transparently wakes it up.
func (d *Dev) Halt() error {
	eh := errorHandler{d: d}
	eh.command(dispOff)
	eh.command(slpIn)
	if eh.err == nil {
		d.halted = true
	}
	return eh.err
}

func (d *Dev) init() error {
	eh := errorHandler{d: d}
	if d.cs != nil {
		eh.csOut(gpio.High)
	}
	if d.rst != nil {
		eh.rstOut(gpio.High)
		sleep(5 * time.Millisecond)
		eh.rstOut(gpio.Low)
		sleep(20 * time.Millisecond)
		eh.rstOut(gpio.High)
		sleep(150 * time.Millisecond)
	}
	for _, s := range initSequence(&d.opts, d.madctl) {
		eh.command(s.cmd, s.data...)
		if s.delay > 0 {
			sleep(s.delay)
		}
	}
	return eh.err
}

type step struct {
	cmd   byte
	data  []byte
	delay time.Duration
}

func initSequence(opts *Opts, madctl byte) []step {
	inv := invOff
	if opts.Invert {
		inv = invOn
	}
	return []step{
		{cmd: swReset, delay: 150 * time.Millisecond},
		{cmd: slpOut, delay: 500 * time.Millisecond},
		// Frame rate = fosc/(1x2+40) * (LINE+2C+2D)
		{cmd: frmCtr1, data: []byte{0x01, 0x2c, 0x2d}},
		{cmd: frmCtr2, data: []byte{0x01, 0x2c, 0x2d}},
		{cmd: frmCtr3, data: []byte{0x01, 0x2c, 0x2d, 0x01, 0x2c, 0x2d}},
		{cmd: invCtr, data: []byte{0x07}},
		{cmd: pwCtr1, data: []byte{0xa2, 0x02, 0x84}},
		{cmd: pwCtr2, data: []byte{0xc5}},
		{cmd: pwCtr3, data: []byte{0x0a, 0x00}},
		{cmd: pwCtr4, data: []byte{0x8a, 0x2a}},
		{cmd: pwCtr5, data: []byte{0x8a, 0xee}},
		{cmd: vmCtr1, data: []byte{0x0e}},
		{cmd: inv},
		{cmd: madCtl, data: []byte{madctl}},
		// 16 bits per pixel.
		{cmd: colMod, data: []byte{0x05}},
		{cmd: gmCtrP1, data: []byte{
			0x02, 0x1c, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2d,
			0x29, 0x25, 0x2b, 0x39, 0x00, 0x01, 0x03, 0x10,
		}},
		{cmd: gmCtrN1, data: []byte{
			0x03, 0x1d, 0x07, 0x06, 0x2e, 0x2c, 0x29, 0x2d,
			0x2e, 0x2e, 0x37, 0x3f, 0x00, 0x00, 0x02, 0x10,
		}},
		{cmd: norOn, delay: 10 * time.Millisecond},
		{cmd: dispOn, delay: 100 * time.Millisecond},
	}
}

// calculateSubset returns the smallest rectangle that differs between the
// current buffer and next. ok is false when nothing changed.
func (d *Dev) calculateSubset(next []byte) (image.Rectangle, bool) {
	if d.redraw {
		d.redraw = false
		return d.rect, true
	}
	w := d.rect.Dx()
	h := d.rect.Dy()
	stride := 2 * w
	top, bottom := 0, h
	for ; top < bottom; top++ {
		if !bytes.Equal(d.buffer[top*stride:(top+1)*stride], next[top*stride:(top+1)*stride]) {
			break
		}
	}
	if top == bottom {
		return image.Rectangle{}, false
	}
	for ; bottom > top; bottom-- {
		if !bytes.Equal(d.buffer[(bottom-1)*stride:bottom*stride], next[(bottom-1)*stride:bottom*stride]) {
			break
		}
	}
	left, right := 0, w
	for ; left < right; left++ {
		if columnDiffers(d.buffer, next, left, top, bottom, stride) {
			break
		}
	}
	for ; right > left; right-- {
		if columnDiffers(d.buffer, next, right-1, top, bottom, stride) {
			break
		}
	}
	return image.Rect(left, top, right, bottom), true
}

func columnDiffers(a, b []byte, x, top, bottom, stride int) bool {
	for y := top; y < bottom; y++ {
		i := y*stride + 2*x
		if a[i] != b[i] || a[i+1] != b[i+1] {
			return true
		}
	}
	return false
}

// sendRect sends the part of the buffer covered by r.
func (d *Dev) sendRect(r image.Rectangle) error {
	if err := d.setWindow(r); err != nil {
		return err
	}
	stride := 2 * d.rect.Dx()
	row := 2 * r.Dx()
	// Batch as many full rows as fit in one transfer; a row longer than a
	// transfer is split.
	size := d.maxTx
	if row <= d.maxTx {
		size = row * (d.maxTx / row)
	}
	data := make([]byte, 0, min(size, row*r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		start := y*stride + 2*r.Min.X
		src := d.buffer[start : start+row]
		for len(src) != 0 {
			n := copy(data[len(data):cap(data)], src)
			data = data[:len(data)+n]
			src = src[n:]
			if len(data) == cap(data) {
				if err := d.sendData(data); err != nil {
					return err
				}
				data = data[:0]
			}
		}
	}
	if len(data) != 0 {
		return d.sendData(data)
	}
	return nil
}

func (d *Dev) setWindow(r image.Rectangle) error {
	x0 := uint16(r.Min.X + d.opts.ColStart)
	x1 := uint16(r.Max.X - 1 + d.opts.ColStart)
	y0 := uint16(r.Min.Y + d.opts.RowStart)
	y1 := uint16(r.Max.Y - 1 + d.opts.RowStart)
	eh := errorHandler{d: d}
	eh.command(caSet, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1))
	eh.command(raSet, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
	eh.command(ramWr)
	return eh.err
}

func (d *Dev) wake() error {
	if !d.halted {
		return nil
	}
	d.halted = false
	eh := errorHandler{d: d}
	eh.command(slpOut)
	sleep(120 * time.Millisecond)
	eh.command(dispOn)
	return eh.err
}

func (d *Dev) sendCommand(c byte) error {
	eh := errorHandler{d: d}
	eh.command(c)
	return eh.err
}

func (d *Dev) sendData(b []byte) error {
	eh := errorHandler{d: d}
	eh.data(b)
	return eh.err
}

var _ display.Drawer = &Dev{}
