// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/GermanBionicSystems/sensornode/internal/config"
	"github.com/lmittmann/tint"
)

// New returns a colored human readable logger in the dev environment and a
// JSON logger otherwise.
func New(w io.Writer, cfg *config.Config, version, appName string) *slog.Logger {
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.Level(),
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.Level(),
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"station", cfg.StationID,
	)
}
