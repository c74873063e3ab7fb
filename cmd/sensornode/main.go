// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// sensornode polls the power monitor, the environmental sensor and the
// voltage divider, shows the readings locally and uploads them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GermanBionicSystems/sensornode/internal/app"
	"github.com/GermanBionicSystems/sensornode/internal/config"
	"github.com/GermanBionicSystems/sensornode/internal/logging"
	"github.com/mattn/go-colorable"
)

var version = "dev"

const appName = "sensornode"

func mainImpl() error {
	cfgPath := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()
	if flag.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %v", flag.Args())
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(colorable.NewColorableStderr(), cfg, version, appName)
	slog.SetDefault(logger)
	logger.Info("starting",
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.Level().String(),
		"interval", cfg.Interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logger).Run(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "sensornode: %s.\n", err)
		os.Exit(1)
	}
}
