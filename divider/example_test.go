// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package divider_test

import (
	"fmt"

	"github.com/GermanBionicSystems/sensornode/divider"
)

func ExampleScale() {
	fmt.Printf("%.2f V\n", divider.Scale(2048, &divider.DefaultOpts))
	fmt.Printf("%.2f V\n", divider.Scale(4095, &divider.DefaultOpts))
	// Output:
	// 46.17 V
	// 92.40 V
}
