// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package report renders reading snapshots to their destinations: the
// console, a display, a ThingSpeak channel and an MQTT broker.
//
// Every sink derives its output from reading.Snapshot.Fields so the order and
// labels are identical everywhere.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/GermanBionicSystems/sensornode/reading"
)

// Sink consumes one Snapshot per cycle.
type Sink interface {
	Report(ctx context.Context, s reading.Snapshot) error
}

// Messenger shows free form progress text, like the boot messages.
//
// The text is shown as is; callers include the line breaks.
type Messenger interface {
	Message(s string) error
}

// Sinks fans a Snapshot out to several sinks.
type Sinks []Sink

// Report calls every sink in order and returns the joined errors.
func (s Sinks) Report(ctx context.Context, snap reading.Snapshot) error {
	return s.Each(ctx, snap, nil)
}

// Each calls every sink in order, even after a failure. onErr, if not nil,
// is called for each failing sink.
func (s Sinks) Each(ctx context.Context, snap reading.Snapshot, onErr func(Sink, error)) error {
	var errs []error
	for _, k := range s {
		if err := k.Report(ctx, snap); err != nil {
			if onErr != nil {
				onErr(k, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", Name(k), err))
		}
	}
	return errors.Join(errs...)
}

// Name returns a short name for k.
func Name(k any) string {
	if n, ok := k.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", k)
}
