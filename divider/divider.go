// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package divider reconstructs the voltage at the top of a two resistor
// voltage divider from the ADC sample taken at its midpoint.
//
//	Vin ──R1──┬──R2── GND
//	          └── ADC
package divider

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
)

// Opts describes the converter and the divider network.
type Opts struct {
	// MaxADC is the full scale count of the converter.
	MaxADC float64 `yaml:"max_adc"`
	// VRef is the voltage, in volts, a full scale sample represents.
	VRef float64 `yaml:"vref"`
	// R1 is the resistor between the measured voltage and the ADC input.
	R1 float64 `yaml:"r1"`
	// R2 is the resistor between the ADC input and ground.
	R2 float64 `yaml:"r2"`
}

// DefaultOpts is a 12-bit 3.3V converter behind 270kΩ/10kΩ, a ratio of 28.
var DefaultOpts = Opts{
	MaxADC: 4095,
	VRef:   3.3,
	R1:     270000,
	R2:     10000,
}

// Ratio returns the divider ratio (R1+R2)/R2.
func (o *Opts) Ratio() float64 {
	return (o.R1 + o.R2) / o.R2
}

// Scale converts a raw sample into the input side voltage in volts.
//
// The sample is not range checked; values above MaxADC scale linearly past
// VRef*Ratio.
func Scale(sample int, o *Opts) float64 {
	vOut := float64(sample) / o.MaxADC * o.VRef
	return vOut * o.Ratio()
}

// Dev reads a divider through an ADC input.
type Dev struct {
	pin  analog.PinADC
	opts Opts
}

// New returns a Dev sampling pin.
func New(pin analog.PinADC, opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	return &Dev{pin: pin, opts: o}
}

// Read samples the ADC once and returns the input side voltage in volts.
// On error the voltage of a zero sample is returned along with the error.
func (d *Dev) Read() (float64, error) {
	s, err := d.pin.Read()
	if err != nil {
		return Scale(0, &d.opts), fmt.Errorf("divider: %w", err)
	}
	return Scale(int(s.Raw), &d.opts), nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("divider{%s, x%.2f}", d.pin, d.opts.Ratio())
}
