// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ina219

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/sensornode/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	regConfig      byte = 0x00
	regShuntVolt   byte = 0x01
	regBusVoltage  byte = 0x02
	regPower       byte = 0x03
	regCurrent     byte = 0x04
	regCalibration byte = 0x05

	// 32V bus range, /8 gain (±320mV shunt), 12-bit bus and shunt ADC,
	// shunt and bus continuous.
	configDefault uint16 = 0x2000 | 0x1800 | 0x0180 | 0x0018 | 0x0007
	modeMask      uint16 = 0x0007

	busVoltageLSB = 4 * physic.MilliVolt
	shuntLSB      = 10 * physic.MicroVolt

	// 0.04096 is the fixed scaling constant from the datasheet, expressed
	// here in nA·nΩ.
	calibrationScale int64 = 40960000000000000
)

// DefaultAddress is the I²C address with A0 and A1 tied to ground.
const DefaultAddress i2c.Addr = 0x40

// ErrNotCalibrated is returned when Opts produce a calibration value that
// does not fit the 16-bit register.
var ErrNotCalibrated = errors.New("ina219: invalid calibration")

// Opts holds the configuration options.
type Opts struct {
	Address i2c.Addr
	// SenseResistor is the value of the shunt resistor.
	SenseResistor physic.ElectricResistance
	// CurrentLSB is the current represented by one count of the current
	// register. Power LSB is 20 times this value.
	CurrentLSB physic.ElectricCurrent
}

// DefaultOpts is the 32V/2A setup of the common breakout boards: a 0.1Ω
// shunt with 100µA per bit, giving a calibration value of 4096.
var DefaultOpts = Opts{
	Address:       DefaultAddress,
	SenseResistor: 100 * physic.MilliOhm,
	CurrentLSB:    100 * physic.MicroAmpere,
}

// PowerMonitor represents measurements from the ina219.
type PowerMonitor struct {
	Shunt   physic.ElectricPotential
	Voltage physic.ElectricPotential
	Current physic.ElectricCurrent
	Power   physic.Power
}

// Dev is a handle to an ina219 sensor.
type Dev struct {
	mu          sync.Mutex
	d           *i2c.Dev
	opts        Opts
	calibration uint16
}

// New returns a handle to an ina219 sensor. No bus I/O is done until Init
// or Sense is called.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Address == 0 {
		o.Address = DefaultAddress
	}
	if o.SenseResistor <= 0 || o.CurrentLSB <= 0 {
		return nil, ErrNotCalibrated
	}
	cal := calibrationScale / (int64(o.CurrentLSB) * int64(o.SenseResistor))
	if cal <= 0 || cal > 0xfffe {
		return nil, ErrNotCalibrated
	}
	return &Dev{
		d:           &i2c.Dev{Bus: bus, Addr: uint16(o.Address)},
		opts:        o,
		calibration: uint16(cal) &^ 1,
	}, nil
}

// Init writes the calibration and configuration registers. An error means
// the device did not acknowledge on the bus.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := common.WriteUint16(d.d, regCalibration, d.calibration); err != nil {
		return fmt.Errorf("ina219: writing calibration: %w", err)
	}
	if err := common.WriteUint16(d.d, regConfig, configDefault); err != nil {
		return fmt.Errorf("ina219: writing configuration: %w", err)
	}
	return nil
}

// Sense reads shunt voltage, bus voltage, current and power from the device.
// Fields that could not be read are left at zero.
func (d *Dev) Sense(p *PowerMonitor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	*p = PowerMonitor{}

	if err := common.WriteUint16(d.d, regCalibration, d.calibration); err != nil {
		return fmt.Errorf("ina219: writing calibration: %w", err)
	}
	shunt, err := common.ReadUint16(d.d, regShuntVolt)
	if err != nil {
		return fmt.Errorf("ina219: reading shunt voltage: %w", err)
	}
	bus, err := common.ReadUint16(d.d, regBusVoltage)
	if err != nil {
		return fmt.Errorf("ina219: reading bus voltage: %w", err)
	}
	current, err := common.ReadUint16(d.d, regCurrent)
	if err != nil {
		return fmt.Errorf("ina219: reading current: %w", err)
	}
	power, err := common.ReadUint16(d.d, regPower)
	if err != nil {
		return fmt.Errorf("ina219: reading power: %w", err)
	}

	p.Shunt = physic.ElectricPotential(int16(shunt)) * shuntLSB
	// The lowest 3 bits are the conversion ready and overflow flags.
	p.Voltage = physic.ElectricPotential(bus>>3) * busVoltageLSB
	p.Current = physic.ElectricCurrent(int16(current)) * d.opts.CurrentLSB
	// Power LSB is 20 × current LSB, the nA to nW step is a 1V multiplier.
	p.Power = physic.Power(power) * 20 * physic.Power(d.opts.CurrentLSB)
	return nil
}

// Halt puts the device in power-down mode. Init wakes it up.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := common.WriteUint16(d.d, regConfig, configDefault&^modeMask); err != nil {
		return fmt.Errorf("ina219: power down: %w", err)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ina219{%s}", d.d)
}

var _ conn.Resource = &Dev{}
