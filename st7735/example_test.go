// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package st7735_test

import (
	"image"
	"log"

	"github.com/GermanBionicSystems/sensornode/st7735"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use spireg SPI port registry to find the first available SPI bus.
	p, err := spireg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	dev, err := st7735.New(p, gpioreg.ByName("GPIO16"), nil, gpioreg.ByName("GPIO17"), &st7735.RedTab)
	if err != nil {
		log.Fatalf("failed to initialize st7735: %v", err)
	}
	defer dev.Halt()

	// Draw on it. A red square in the top left corner.
	if err := dev.Clear(st7735.Black); err != nil {
		log.Fatal(err)
	}
	if err := dev.FillRect(image.Rect(0, 0, 32, 32), st7735.Red); err != nil {
		log.Fatal(err)
	}
}
