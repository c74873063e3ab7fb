// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package st7735 controls a 16-bit colour TFT panel driven by a Sitronix
// ST7735 controller, such as the 1.8" 128x160 "red tab" breakout.
//
// The panel is wired in 4-wire SPI mode: the SPI bus plus a data/command
// GPIO, an optional chip select GPIO (when the SPI port does not drive CS)
// and an optional reset GPIO.
//
// Like the ssd1306 driver, Draw only sends the smallest rectangle that
// changed since the previous frame.
//
// # Datasheet
//
// https://www.displayfuture.com/Display/datasheet/controller/ST7735.pdf
package st7735
