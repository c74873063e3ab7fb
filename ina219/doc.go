// Copyright 2018 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ina219 controls a Texas Instruments INA219 high side current,
// voltage and power monitor IC over an i2c bus.
//
// The device has to be calibrated before current and power registers carry
// meaningful values. Init programs the calibration and configuration
// registers and doubles as a presence check; Sense re-writes the
// calibration on every read since a brown-out resets it to zero.
//
// # Datasheet
//
// http://www.ti.com/lit/ds/symlink/ina219.pdf
package ina219
