// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reading

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/GermanBionicSystems/sensornode/divider"
	"github.com/GermanBionicSystems/sensornode/ina219"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

type fakePower struct {
	p     ina219.PowerMonitor
	err   error
	calls int
}

func (f *fakePower) Sense(p *ina219.PowerMonitor) error {
	f.calls++
	*p = f.p
	return f.err
}

type fakeEnv struct {
	physic.SenseEnv
	e     physic.Env
	err   error
	calls int
}

func (f *fakeEnv) Sense(e *physic.Env) error {
	f.calls++
	if f.err == nil {
		*e = f.e
	}
	return f.err
}

type fakeVoltage struct {
	v     float64
	err   error
	calls int
}

func (f *fakeVoltage) Read() (float64, error) {
	f.calls++
	return f.v, f.err
}

type fakePin struct {
	analog.PinADC
	raw int32
}

func (f *fakePin) Read() (analog.Sample, error) {
	return analog.Sample{Raw: f.raw}, nil
}

var epoch = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCollect(t *testing.T) {
	p := &fakePower{p: ina219.PowerMonitor{
		Voltage: 12340 * physic.MilliVolt,
		Current: 250500 * physic.MicroAmpere,
		Power:   3091 * physic.MilliWatt,
	}}
	e := &fakeEnv{e: physic.Env{
		Temperature: physic.ZeroCelsius + 25080*physic.MilliCelsius,
		Humidity:    55 * physic.PercentRH,
		Pressure:    100653 * physic.Pascal,
	}}
	a := &Aggregator{
		Power:   p,
		Env:     e,
		Divider: divider.New(&fakePin{raw: 2048}, nil),
		Now:     func() time.Time { return epoch },
	}
	got, err := a.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Snapshot{
		Seq:            1,
		Time:           epoch,
		DividerVoltage: 2048.0 / 4095 * 3.3 * 28,
		BusVoltage:     12.34,
		Current:        250.5,
		Power:          3091,
		Temperature:    25.08,
		Humidity:       55,
		Pressure:       1006.53,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("Collect() (-want +got):\n%s", diff)
	}
	if math.Abs(got.DividerVoltage-46.17) > 0.005 {
		t.Fatalf("divider voltage %g", got.DividerVoltage)
	}
	if p.calls != 1 || e.calls != 1 {
		t.Fatalf("sensors read %d and %d times", p.calls, e.calls)
	}
	if got, _ = a.Collect(context.Background()); got.Seq != 2 {
		t.Fatalf("Seq = %d", got.Seq)
	}
}

func TestCollect_errors(t *testing.T) {
	errPower := errors.New("ina219: bus")
	errEnv := errors.New("bme280: not found")
	v := &fakeVoltage{v: 4.2}
	p := &fakePower{err: errPower}
	e := &fakeEnv{err: errEnv}
	a := &Aggregator{Power: p, Env: e, Divider: v}
	got, err := a.Collect(context.Background())
	if !errors.Is(err, errPower) || !errors.Is(err, errEnv) {
		t.Fatalf("Collect() error = %v", err)
	}
	if v.calls != 1 || p.calls != 1 || e.calls != 1 {
		t.Fatalf("calls: divider %d, power %d, env %d", v.calls, p.calls, e.calls)
	}
	want := Snapshot{Seq: 1, Time: got.Time, DividerVoltage: 4.2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Collect() (-want +got):\n%s", diff)
	}
}

func TestCollect_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := &fakeVoltage{}
	a := &Aggregator{Divider: v}
	if _, err := a.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Collect() error = %v", err)
	}
	if v.calls != 0 {
		t.Fatal("sensor read after cancel")
	}
}

func TestFields(t *testing.T) {
	s := Snapshot{
		DividerVoltage: 1,
		BusVoltage:     2,
		Current:        3,
		Power:          4,
		Temperature:    5,
		Humidity:       6,
		Pressure:       7,
	}
	for i, f := range s.Fields() {
		if f.Channel != i+1 || f.Value != float64(i+1) {
			t.Errorf("Fields()[%d] = %+v", i, f)
		}
	}
	if f := s.Fields()[0]; f.Label != "Divider Voltage" || f.Unit != "V" {
		t.Errorf("first field %+v", f)
	}
	if f := s.Fields()[6]; f.Label != "Pressure" || f.Unit != "hPa" {
		t.Errorf("last field %+v", f)
	}
}

func TestCelsius(t *testing.T) {
	if got := Celsius(0); got != 0 {
		t.Errorf("Celsius(0) = %g", got)
	}
	if got := Celsius(physic.ZeroCelsius - 10*physic.Celsius); got != -10 {
		t.Errorf("Celsius(-10°C) = %g", got)
	}
}
