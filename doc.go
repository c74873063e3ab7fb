// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sensornode is a container for the drivers and the application of
// a telemetry sensor node.
//
// The drivers (bme280, ina219, mcp320x, st7735, termdisplay, mirror) follow
// the periph.io conventions and can be used on their own. The application is
// in cmd/sensornode.
package sensornode
