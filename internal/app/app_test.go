// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package app

import (
	"bytes"
	"errors"
	"image"
	"log/slog"
	"testing"

	"github.com/GermanBionicSystems/sensornode/internal/config"
	"github.com/GermanBionicSystems/sensornode/internal/metrics"
	"github.com/GermanBionicSystems/sensornode/mcp320x"
	"github.com/GermanBionicSystems/sensornode/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, logs bytes.Buffer
	a := New(cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	a.stdout = &out
	a.stderr = &logs
	return a, &out, &logs
}

func TestVariant(t *testing.T) {
	assert.Equal(t, mcp320x.MCP3204, variant("mcp3204"))
	assert.Equal(t, mcp320x.MCP3208, variant("mcp3208"))
}

func TestOpenDisplay(t *testing.T) {
	cfg := config.Default()
	cfg.Display.Driver = "none"
	a, _, _ := newApp(t, cfg)
	d, err := a.openDisplay()
	require.NoError(t, err)
	assert.Nil(t, d)

	cfg.Display.Driver = "term"
	a, out, _ := newApp(t, cfg)
	d, err = a.openDisplay()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, image.Rect(0, 0, 128, 160), d.Bounds())

	s, err := report.NewDisplay(d, &report.DisplayOpts{Font: cfg.Display.Font, Size: cfg.Display.FontSize})
	require.NoError(t, err)
	require.NoError(t, s.Message("Booting...\n"))
	assert.NotEmpty(t, out.String())

	out.Reset()
	a.close()
	assert.Equal(t, "\033[0m\n", out.String(), "terminal reset on close")
}

func TestConsole(t *testing.T) {
	cfg := config.Default()
	a, out, logs := newApp(t, cfg)
	assert.Same(t, out, a.console())

	cfg.Display.Driver = "term"
	a, out, logs = newApp(t, cfg)
	assert.Same(t, logs, a.console(), "term display owns stdout")
	require.NoError(t, report.NewText(a.console()).Message("WiFi Connected\n"))
	assert.Empty(t, out.String())
}

func TestOutPin(t *testing.T) {
	p, err := outPin("cs", "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRemoteSinks(t *testing.T) {
	cfg := config.Default()
	a, _, logs := newApp(t, cfg)
	sinks, err := a.remoteSinks(metrics.New())
	require.NoError(t, err)
	assert.Empty(t, sinks)
	assert.Contains(t, logs.String(), "upload disabled")

	cfg.ThingSpeak.WriteKey = "KEY"
	a, _, _ = newApp(t, cfg)
	sinks, err = a.remoteSinks(metrics.New())
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "thingspeak", report.Name(sinks[0]))
}

func TestClose(t *testing.T) {
	a, _, logs := newApp(t, config.Default())
	var order []int
	a.closers = []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("busy") },
	}
	a.close()
	assert.Equal(t, []int{2, 1}, order)
	assert.Contains(t, logs.String(), "busy")
	assert.Nil(t, a.closers)
}
