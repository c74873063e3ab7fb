// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bme280

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/sensornode/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Oversampling affects how much time is taken to measure each of temperature,
// pressure and humidity.
type Oversampling uint8

// Possible oversampling values.
const (
	Off  Oversampling = 0
	O1x  Oversampling = 1
	O2x  Oversampling = 2
	O4x  Oversampling = 3
	O8x  Oversampling = 4
	O16x Oversampling = 5
)

// Filter is the IIR filter coefficient applied to temperature and pressure.
type Filter uint8

// Possible filter values.
const (
	NoFilter Filter = 0
	F2       Filter = 1
	F4       Filter = 2
	F8       Filter = 3
	F16      Filter = 4
)

// Standby is the inactive time between two conversions in normal mode.
type Standby uint8

// Possible standby values.
const (
	S0_5ms  Standby = 0
	S62_5ms Standby = 1
	S125ms  Standby = 2
	S250ms  Standby = 3
	S500ms  Standby = 4
	S1s     Standby = 5
	S10ms   Standby = 6
	S20ms   Standby = 7
)

const (
	// DefaultAddress is the address with SDO tied to ground. Boards with
	// SDO pulled up answer on 0x77.
	DefaultAddress i2c.Addr = 0x76

	chipID byte = 0x60

	regCalib00   byte = 0x88
	regChipID    byte = 0xd0
	regReset     byte = 0xe0
	regCalib26   byte = 0xe1
	regCtrlHum   byte = 0xf2
	regCtrlMeas  byte = 0xf4
	regConfig    byte = 0xf5
	regPressMSB  byte = 0xf7
	resetCommand byte = 0xb6

	modeSleep  byte = 0x00
	modeNormal byte = 0x03

	calib00Len = 26
	calib26Len = 7
	dataLen    = 8

	// Value returned by the ADC when a measurement is skipped.
	skippedPressure    = 0x80000
	skippedTemperature = 0x80000
	skippedHumidity    = 0x8000
)

var (
	// ErrNotFound is returned by Init when the chip id does not match.
	ErrNotFound = errors.New("bme280: device not found")
	// ErrNotInitialized is returned by Sense when the device could not be
	// initialized.
	ErrNotInitialized = errors.New("bme280: device not initialized")
)

// Opts holds the configuration options.
type Opts struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	Standby     Standby
}

// DefaultOpts samples everything at 16x with the filter off, the same
// setup the vendor Arduino library uses.
var DefaultOpts = Opts{
	Temperature: O16x,
	Pressure:    O16x,
	Humidity:    O16x,
	Filter:      NoFilter,
	Standby:     S0_5ms,
}

// Dev is a handle to a bme280.
type Dev struct {
	mu   sync.Mutex
	d    *i2c.Dev
	opts Opts
	cal  *calibration
}

// New returns a handle to a bme280 sensor. No bus I/O is done until Init is
// called.
func New(bus i2c.Bus, addr i2c.Addr, opts *Opts) (*Dev, error) {
	if addr == 0 {
		addr = DefaultAddress
	}
	if addr != 0x76 && addr != 0x77 {
		return nil, fmt.Errorf("bme280: invalid address 0x%02x", uint16(addr))
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	return &Dev{d: &i2c.Dev{Bus: bus, Addr: uint16(addr)}, opts: o}, nil
}

// Init verifies the chip id, loads the factory calibration and starts
// continuous measurements.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initLocked()
}

func (d *Dev) initLocked() error {
	id, err := common.ReadBlock(d.d, regChipID, 1)
	if err != nil {
		return fmt.Errorf("bme280: reading chip id: %w", err)
	}
	if id[0] != chipID {
		return fmt.Errorf("%w: chip id 0x%02x", ErrNotFound, id[0])
	}
	c1, err := common.ReadBlock(d.d, regCalib00, calib00Len)
	if err != nil {
		return fmt.Errorf("bme280: reading calibration: %w", err)
	}
	c2, err := common.ReadBlock(d.d, regCalib26, calib26Len)
	if err != nil {
		return fmt.Errorf("bme280: reading calibration: %w", err)
	}
	cal := newCalibration(c1, c2)

	// ctrl_hum only takes effect after a write to ctrl_meas.
	if err := common.WriteByte(d.d, regCtrlHum, byte(d.opts.Humidity)&0x07); err != nil {
		return fmt.Errorf("bme280: writing ctrl_hum: %w", err)
	}
	if err := common.WriteByte(d.d, regConfig, d.configByte()); err != nil {
		return fmt.Errorf("bme280: writing config: %w", err)
	}
	if err := common.WriteByte(d.d, regCtrlMeas, d.ctrlMeas(modeNormal)); err != nil {
		return fmt.Errorf("bme280: writing ctrl_meas: %w", err)
	}
	d.cal = &cal
	return nil
}

// Sense returns the latest temperature, humidity and pressure conversion.
//
// Values of measurements that are turned off in Opts are left at zero. If
// Init did not succeed yet, it is retried first so a sensor attached late is
// picked up.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cal == nil {
		if err := d.initLocked(); err != nil {
			return fmt.Errorf("%w: %w", ErrNotInitialized, err)
		}
	}
	b, err := common.ReadBlock(d.d, regPressMSB, dataLen)
	if err != nil {
		return fmt.Errorf("bme280: reading measurement: %w", err)
	}
	rawP := int32(b[0])<<12 | int32(b[1])<<4 | int32(b[2])>>4
	rawT := int32(b[3])<<12 | int32(b[4])<<4 | int32(b[5])>>4
	rawH := int32(b[6])<<8 | int32(b[7])

	*e = physic.Env{}
	if rawT == skippedTemperature {
		return errors.New("bme280: temperature measurement skipped")
	}
	t, tFine := d.cal.compensateT(rawT)
	e.Temperature = physic.Temperature(t)*10*physic.MilliKelvin + physic.ZeroCelsius
	if rawP != skippedPressure {
		p := d.cal.compensateP(rawP, tFine)
		e.Pressure = physic.Pressure(int64(p) * int64(physic.Pascal) / 256)
	}
	if rawH != skippedHumidity {
		h := d.cal.compensateH(rawH, tFine)
		e.Humidity = physic.RelativeHumidity(int64(h) * int64(physic.PercentRH) / 1024)
	}
	return nil
}

// SenseContinuous is not supported; the caller drives the sampling rate.
func (d *Dev) SenseContinuous(time.Duration) (<-chan physic.Env, error) {
	return nil, errors.New("bme280: SenseContinuous not supported")
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = 10 * physic.MilliKelvin
	e.Pressure = physic.Pascal / 256
	e.Humidity = physic.PercentRH / 1024
}

// Reset issues a soft reset. The next Sense initializes the device again.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cal = nil
	if err := common.WriteByte(d.d, regReset, resetCommand); err != nil {
		return fmt.Errorf("bme280: reset: %w", err)
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

// Halt puts the device in sleep mode.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := common.WriteByte(d.d, regCtrlMeas, d.ctrlMeas(modeSleep)); err != nil {
		return fmt.Errorf("bme280: sleep: %w", err)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("bme280{%s}", d.d)
}

func (d *Dev) ctrlMeas(mode byte) byte {
	return byte(d.opts.Temperature)<<5 | byte(d.opts.Pressure)<<2 | mode
}

func (d *Dev) configByte() byte {
	return byte(d.opts.Standby)<<5 | byte(d.opts.Filter)<<2
}

// calibration is the factory trimming data stored in the device NVM.
type calibration struct {
	t1             uint16
	t2, t3         int16
	p1             uint16
	p2, p3, p4, p5 int16
	p6, p7, p8, p9 int16
	h1             uint8
	h2             int16
	h3             uint8
	h4, h5         int16
	h6             int8
}

func newCalibration(c1, c2 []byte) calibration {
	le := binary.LittleEndian
	return calibration{
		t1: le.Uint16(c1[0:]),
		t2: int16(le.Uint16(c1[2:])),
		t3: int16(le.Uint16(c1[4:])),
		p1: le.Uint16(c1[6:]),
		p2: int16(le.Uint16(c1[8:])),
		p3: int16(le.Uint16(c1[10:])),
		p4: int16(le.Uint16(c1[12:])),
		p5: int16(le.Uint16(c1[14:])),
		p6: int16(le.Uint16(c1[16:])),
		p7: int16(le.Uint16(c1[18:])),
		p8: int16(le.Uint16(c1[20:])),
		p9: int16(le.Uint16(c1[22:])),
		h1: c1[25],
		h2: int16(le.Uint16(c2[0:])),
		h3: c2[2],
		// h4 and h5 are 12 bit signed values sharing the nibbles of 0xe5.
		h4: int16(int8(c2[3]))<<4 | int16(c2[4]&0x0f),
		h5: int16(int8(c2[5]))<<4 | int16(c2[4]>>4),
		h6: int8(c2[6]),
	}
}

// compensateT returns the temperature in 0.01°C and the fine resolution
// value used by the pressure and humidity compensation.
func (c *calibration) compensateT(raw int32) (int32, int32) {
	x := int64(raw)
	t1 := int64(c.t1)
	v1 := (((x >> 3) - (t1 << 1)) * int64(c.t2)) >> 11
	v2 := (((((x >> 4) - t1) * ((x >> 4) - t1)) >> 12) * int64(c.t3)) >> 14
	tFine := int32(v1 + v2)
	return (tFine*5 + 128) >> 8, tFine
}

// compensateP returns the pressure in Pa as Q24.8.
func (c *calibration) compensateP(raw, tFine int32) uint32 {
	v1 := int64(tFine) - 128000
	v2 := v1 * v1 * int64(c.p6)
	v2 += (v1 * int64(c.p5)) << 17
	v2 += int64(c.p4) << 35
	v1 = ((v1 * v1 * int64(c.p3)) >> 8) + ((v1 * int64(c.p2)) << 12)
	v1 = (((int64(1) << 47) + v1) * int64(c.p1)) >> 33
	if v1 == 0 {
		return 0
	}
	p := int64(1048576 - raw)
	p = (((p << 31) - v2) * 3125) / v1
	v1 = (int64(c.p9) * (p >> 13) * (p >> 13)) >> 25
	v2 = (int64(c.p8) * p) >> 19
	p = ((p + v1 + v2) >> 8) + (int64(c.p7) << 4)
	return uint32(p)
}

// compensateH returns the humidity in %RH as Q22.10.
func (c *calibration) compensateH(raw, tFine int32) uint32 {
	x := int64(tFine) - 76800
	x = (((int64(raw) << 14) - (int64(c.h4) << 20) - (int64(c.h5) * x) + 16384) >> 15) *
		(((((((x*int64(c.h6))>>10)*(((x*int64(c.h3))>>11)+32768))>>10)+2097152)*int64(c.h2) + 8192) >> 14)
	x -= ((((x >> 15) * (x >> 15)) >> 7) * int64(c.h1)) >> 4
	if x < 0 {
		x = 0
	}
	if x > 419430400 {
		x = 419430400
	}
	return uint32(x >> 12)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
