// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp320x provides a driver for the Microchip MCP3204 and MCP3208
// 12-bit analog to digital converters over SPI. Each input channel is
// exposed as an analog.PinADC.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/21298e.pdf
package mcp320x

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Variant represents the model of the device.
type Variant string

const (
	MCP3204 Variant = "MCP3204"
	MCP3208 Variant = "MCP3208"

	// MaxCount is the full scale count of the 12-bit converter.
	MaxCount = 1<<12 - 1

	startSingleEnded byte = 0x06
)

var (
	errInvalidVariant = errors.New("mcp320x: invalid variant")
	errInvalidChannel = errors.New("mcp320x: invalid channel")
)

// Dev represents an MCP320x A/D converter.
type Dev struct {
	mu       sync.Mutex
	c        spi.Conn
	variant  Variant
	channels int
	vRef     physic.ElectricPotential
}

// New opens a connection to an MCP320x on SPI port p. vRef is the voltage
// present on the VREF pin; a sample of MaxCount equals vRef.
func New(p spi.Port, variant Variant, vRef physic.ElectricPotential) (*Dev, error) {
	channels := 0
	switch variant {
	case MCP3204:
		channels = 4
	case MCP3208:
		channels = 8
	default:
		return nil, errInvalidVariant
	}
	// 1MHz is supported down to a 2.7V supply.
	c, err := p.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("mcp320x: %w", err)
	}
	return &Dev{c: c, variant: variant, channels: channels, vRef: vRef}, nil
}

// PinADC returns the single ended input ch.
func (d *Dev) PinADC(ch int) (*Pin, error) {
	if ch < 0 || ch >= d.channels {
		return nil, errInvalidChannel
	}
	return &Pin{d: d, ch: ch}, nil
}

// ReadRaw performs one single ended conversion of ch.
func (d *Dev) ReadRaw(ch int) (int32, error) {
	if ch < 0 || ch >= d.channels {
		return 0, errInvalidChannel
	}
	w := []byte{startSingleEnded | byte(ch>>2)&0x01, byte(ch&0x03) << 6, 0}
	r := make([]byte, len(w))
	d.mu.Lock()
	err := d.c.Tx(w, r)
	d.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("mcp320x: reading channel %d: %w", ch, err)
	}
	return int32(r[1]&0x0f)<<8 | int32(r[2]), nil
}

// Halt implements conn.Resource. The device powers down between
// conversions on its own.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.variant, d.c)
}

func (d *Dev) sample(raw int32) analog.Sample {
	return analog.Sample{V: physic.ElectricPotential(int64(raw) * int64(d.vRef) / MaxCount), Raw: raw}
}

// Pin is one input channel of the converter.
type Pin struct {
	d  *Dev
	ch int
}

// Range implements analog.PinADC.
func (p *Pin) Range() (analog.Sample, analog.Sample) {
	return p.d.sample(0), p.d.sample(MaxCount)
}

// Read implements analog.PinADC.
func (p *Pin) Read() (analog.Sample, error) {
	raw, err := p.d.ReadRaw(p.ch)
	if err != nil {
		return analog.Sample{}, err
	}
	return p.d.sample(raw), nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return fmt.Sprintf("%s_CH%d", p.d.variant, p.ch)
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.ch
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "ADC"
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

func (p *Pin) String() string {
	return p.Name()
}

var _ conn.Resource = &Dev{}
var _ analog.PinADC = &Pin{}
