// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"log/slog"

	"github.com/GermanBionicSystems/sensornode/reading"
	"github.com/GermanBionicSystems/sensornode/thingspeak"
)

// Uploader is implemented by *thingspeak.Client.
type Uploader interface {
	WriteFields(ctx context.Context, r *thingspeak.Record) thingspeak.Code
}

// Remote uploads each Snapshot as one ThingSpeak record, field n holding
// the n-th Snapshot field.
//
// A failed upload is logged with its code and the record is dropped.
type Remote struct {
	up  Uploader
	log *slog.Logger
	// OnResult, if set, is called with the code of every upload.
	OnResult func(thingspeak.Code)
}

// NewRemote returns a Remote sink.
func NewRemote(up Uploader, log *slog.Logger) *Remote {
	if log == nil {
		log = slog.Default()
	}
	return &Remote{up: up, log: log.With("sink", "thingspeak")}
}

// Name implements the name lookup of Sinks.
func (r *Remote) Name() string {
	return "thingspeak"
}

// Report implements Sink. It never fails; the outcome is logged.
func (r *Remote) Report(ctx context.Context, s reading.Snapshot) error {
	var rec thingspeak.Record
	for _, f := range s.Fields() {
		if c := rec.SetField(f.Channel, f.Value); c != thingspeak.OK {
			r.log.Warn("field not sent", "field", f.Channel, "value", f.Value, "code", int(c))
		}
	}
	code := r.up.WriteFields(ctx, &rec)
	if r.OnResult != nil {
		r.OnResult(code)
	}
	if code == thingspeak.OK {
		r.log.Info("ThingSpeak update successful", "seq", s.Seq)
		return nil
	}
	r.log.Error("ThingSpeak update failed", "seq", s.Seq, "code", int(code), "reason", code.String())
	return nil
}
