// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package reading samples every sensor of the node once and assembles the
// values into a Snapshot.
package reading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/sensornode/ina219"
	"periph.io/x/conn/v3/physic"
)

// Snapshot is the set of values captured in one cycle.
//
// It is passed by value; a sink cannot alter what another sink sees.
type Snapshot struct {
	Seq  uint64
	Time time.Time

	// DividerVoltage is the reconstructed divider input, in V.
	DividerVoltage float64
	// BusVoltage is the power monitor bus voltage, in V.
	BusVoltage float64
	// Current is in mA.
	Current float64
	// Power is in mW.
	Power float64
	// Temperature is in °C.
	Temperature float64
	// Humidity is relative humidity, in %.
	Humidity float64
	// Pressure is in hPa.
	Pressure float64
}

// Field is one labelled value of a Snapshot.
type Field struct {
	// Channel is the 1 based telemetry slot.
	Channel int
	Label   string
	Unit    string
	Value   float64
}

// NumFields is the number of values in a Snapshot.
const NumFields = 7

// Fields returns the values in telemetry channel order.
func (s Snapshot) Fields() [NumFields]Field {
	return [NumFields]Field{
		{1, "Divider Voltage", "V", s.DividerVoltage},
		{2, "Voltage", "V", s.BusVoltage},
		{3, "Current", "mA", s.Current},
		{4, "Power", "mW", s.Power},
		{5, "Temperature", "°C", s.Temperature},
		{6, "Humidity", "%", s.Humidity},
		{7, "Pressure", "hPa", s.Pressure},
	}
}

// PowerSensor is implemented by *ina219.Dev.
type PowerSensor interface {
	Sense(p *ina219.PowerMonitor) error
}

// VoltageSensor is implemented by *divider.Dev.
type VoltageSensor interface {
	Read() (float64, error)
}

// Aggregator reads the sensors of the node.
type Aggregator struct {
	Power   PowerSensor
	Env     physic.SenseEnv
	Divider VoltageSensor
	// Now defaults to time.Now.
	Now func() time.Time

	seq uint64
}

// Collect reads each sensor exactly once and returns the resulting Snapshot.
//
// A failing sensor does not stop the collection: its values are whatever the
// driver left (zero for the drivers of this module) and its error is part of
// the joined error returned alongside the complete Snapshot.
func (a *Aggregator) Collect(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	a.seq++
	s := Snapshot{Seq: a.seq, Time: now()}
	var errs []error

	if a.Divider != nil {
		v, err := a.Divider.Read()
		if err != nil {
			errs = append(errs, err)
		}
		s.DividerVoltage = v
	}

	if a.Power != nil {
		var p ina219.PowerMonitor
		if err := a.Power.Sense(&p); err != nil {
			errs = append(errs, err)
		}
		s.BusVoltage = float64(p.Voltage) / float64(physic.Volt)
		s.Current = float64(p.Current) / float64(physic.MilliAmpere)
		s.Power = float64(p.Power) / float64(physic.MilliWatt)
	}

	if a.Env != nil {
		var e physic.Env
		if err := a.Env.Sense(&e); err != nil {
			errs = append(errs, err)
		}
		s.Temperature = Celsius(e.Temperature)
		s.Humidity = float64(e.Humidity) / float64(physic.PercentRH)
		s.Pressure = float64(e.Pressure) / float64(100*physic.Pascal)
	}

	if err := errors.Join(errs...); err != nil {
		return s, fmt.Errorf("reading: %w", err)
	}
	return s, nil
}

// Celsius converts t to °C. The zero Temperature stays 0 so a sensor that
// never produced a value does not read as -273.15°C.
func Celsius(t physic.Temperature) float64 {
	if t == 0 {
		return 0
	}
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}
