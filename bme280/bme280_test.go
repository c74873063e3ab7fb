// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bme280

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

const addr = uint16(DefaultAddress)

// Trimming values from the datasheet example plus a plausible humidity set.
var (
	calib00 = []byte{
		0x70, 0x6b, 0x43, 0x67, 0x18, 0xfc, 0x7d, 0x8e, 0x43, 0xd6, 0xd0, 0x0b, 0x27,
		0x0b, 0x8c, 0x00, 0xf9, 0xff, 0x8c, 0x3c, 0xf8, 0xc6, 0x70, 0x17, 0x00, 0x4b,
	}
	calib26 = []byte{0x6a, 0x01, 0x00, 0x13, 0x29, 0x03, 0x1e}
	// adc_P=415148 adc_T=519888 adc_H=30000
	measurement = []byte{0x65, 0x5a, 0xc0, 0x7e, 0xed, 0x00, 0x75, 0x30}
)

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{regChipID}, R: []byte{chipID}},
		{Addr: addr, W: []byte{regCalib00}, R: calib00},
		{Addr: addr, W: []byte{regCalib26}, R: calib26},
		{Addr: addr, W: []byte{regCtrlHum, 0x05}},
		{Addr: addr, W: []byte{regConfig, 0x00}},
		{Addr: addr, W: []byte{regCtrlMeas, 0xb7}},
	}
}

func TestNew(t *testing.T) {
	if _, err := New(&i2ctest.Playback{}, 0x40, nil); err == nil {
		t.Error("New() accepted an invalid address")
	}
	d, err := New(&i2ctest.Playback{}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.d.Addr != addr {
		t.Errorf("address 0x%x expected 0x%x", d.d.Addr, addr)
	}
}

func TestCalibration(t *testing.T) {
	got := newCalibration(calib00, calib26)
	want := calibration{
		t1: 27504, t2: 26435, t3: -1000,
		p1: 36477, p2: -10685, p3: 3024, p4: 2855, p5: 140,
		p6: -7, p7: 15500, p8: -14600, p9: 6000,
		h1: 75, h2: 362, h3: 0, h4: 313, h5: 50, h6: 30,
	}
	if diff := cmp.Diff(got, want, cmp.AllowUnexported(calibration{})); diff != "" {
		t.Errorf("newCalibration() difference (-got +want):\n%s", diff)
	}
}

func TestCompensate(t *testing.T) {
	c := newCalibration(calib00, calib26)
	temp, tFine := c.compensateT(519888)
	if temp != 2508 || tFine != 128422 {
		t.Errorf("compensateT()=%d,%d expected 2508,128422", temp, tFine)
	}
	if p := c.compensateP(415148, tFine); p != 25767233 {
		t.Errorf("compensateP()=%d expected 25767233", p)
	}
	if h := c.compensateH(30000, tFine); h != 56317 {
		t.Errorf("compensateH()=%d expected 56317", h)
	}
}

func TestInitSense(t *testing.T) {
	ops := append(initOps(), i2ctest.IO{Addr: addr, W: []byte{regPressMSB}, R: measurement})
	bus := i2ctest.Playback{Ops: ops, DontPanic: true}
	d, err := New(&bus, DefaultAddress, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	want := physic.Env{
		Temperature: 25080*physic.MilliKelvin + physic.ZeroCelsius,
		Pressure:    100653253906250 * physic.NanoPascal,
		Humidity:    5499707 * physic.TenthMicroRH,
	}
	if diff := cmp.Diff(e, want); diff != "" {
		t.Errorf("Sense() difference (-got +want):\n%s", diff)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSkippedMeasurements(t *testing.T) {
	ops := append(initOps(), i2ctest.IO{
		Addr: addr,
		W:    []byte{regPressMSB},
		R:    []byte{0x80, 0x00, 0x00, 0x7e, 0xed, 0x00, 0x80, 0x00},
	})
	bus := i2ctest.Playback{Ops: ops, DontPanic: true}
	d, _ := New(&bus, DefaultAddress, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if e.Pressure != 0 || e.Humidity != 0 {
		t.Errorf("skipped measurements reported %s %s", e.Pressure, e.Humidity)
	}
	if e.Temperature == 0 {
		t.Error("temperature missing")
	}
}

func TestInitWrongChip(t *testing.T) {
	bus := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: addr, W: []byte{regChipID}, R: []byte{0x58}},
			{Addr: addr, W: []byte{regChipID}, R: []byte{0x58}},
		},
		DontPanic: true,
	}
	d, _ := New(&bus, DefaultAddress, nil)
	if err := d.Init(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Init()=%v expected ErrNotFound", err)
	}
	var e physic.Env
	err := d.Sense(&e)
	if !errors.Is(err, ErrNotInitialized) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("Sense()=%v expected ErrNotInitialized and ErrNotFound", err)
	}
	if e != (physic.Env{}) {
		t.Errorf("Sense() modified env: %+v", e)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSenseRecoversAfterFailedInit(t *testing.T) {
	ops := []i2ctest.IO{{Addr: addr, W: []byte{regChipID}, R: []byte{0x00}}}
	ops = append(ops, initOps()...)
	ops = append(ops, i2ctest.IO{Addr: addr, W: []byte{regPressMSB}, R: measurement})
	bus := i2ctest.Playback{Ops: ops, DontPanic: true}
	d, _ := New(&bus, DefaultAddress, nil)
	if err := d.Init(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Init()=%v expected ErrNotFound", err)
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if want := 25080*physic.MilliKelvin + physic.ZeroCelsius; e.Temperature != want {
		t.Errorf("Temperature=%s expected %s", e.Temperature, want)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHaltReset(t *testing.T) {
	bus := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: addr, W: []byte{regCtrlMeas, 0xb4}},
			{Addr: addr, W: []byte{regReset, resetCommand}},
		},
		DontPanic: true,
	}
	d, _ := New(&bus, DefaultAddress, nil)
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s == "" {
		t.Error("String() returned empty")
	}
}
