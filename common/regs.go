// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains register access helpers shared by the I²C drivers
// in this module.
package common

import (
	"encoding/binary"

	"periph.io/x/conn/v3/i2c"
)

// ReadUint16 reads the 16-bit big-endian register reg.
func ReadUint16(d *i2c.Dev, reg byte) (uint16, error) {
	r := make([]byte, 2)
	if err := d.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r), nil
}

// WriteUint16 writes v to the 16-bit big-endian register reg.
func WriteUint16(d *i2c.Dev, reg byte, v uint16) error {
	return d.Tx([]byte{reg, byte(v >> 8), byte(v)}, nil)
}

// ReadBlock reads n consecutive registers starting at reg.
func ReadBlock(d *i2c.Dev, reg byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.Tx([]byte{reg}, r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteByte writes v to the 8-bit register reg.
func WriteByte(d *i2c.Dev, reg, v byte) error {
	return d.Tx([]byte{reg, v}, nil)
}
