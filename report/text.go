// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/GermanBionicSystems/sensornode/reading"
)

// Separator delimits the console block of one cycle.
const Separator = "========================"

// Text writes each Snapshot as a block of lines:
//
//	========================
//	Divider Voltage: 46.17 V
//	...
//	Pressure: 1006.53 hPa
//	========================
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText returns a Text sink writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Name implements the name lookup of Sinks.
func (t *Text) Name() string {
	return "text"
}

// Report implements Sink.
func (t *Text) Report(_ context.Context, s reading.Snapshot) error {
	var buf bytes.Buffer
	buf.WriteString(Separator + "\n")
	for _, f := range s.Fields() {
		fmt.Fprintf(&buf, "%s: %.2f %s\n", f.Label, f.Value, f.Unit)
	}
	buf.WriteString(Separator + "\n")
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := buf.WriteTo(t.w)
	return err
}

// Message implements Messenger.
func (t *Text) Message(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, s)
	return err
}
