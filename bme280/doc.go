// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bme280 controls a Bosch BME280 temperature, humidity and pressure
// sensor over an i2c bus.
//
// The device is run in normal mode: it measures continuously at the
// configured standby interval and Sense returns the latest conversion. The
// compensation uses the integer formulas from the datasheet, sections 4.2.3
// and 8.2.
//
// # Datasheet
//
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bme280
