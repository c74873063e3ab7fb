// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package app opens the hardware described by the configuration and runs
// the node on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GermanBionicSystems/sensornode/bme280"
	"github.com/GermanBionicSystems/sensornode/divider"
	"github.com/GermanBionicSystems/sensornode/ina219"
	"github.com/GermanBionicSystems/sensornode/internal/config"
	"github.com/GermanBionicSystems/sensornode/internal/metrics"
	"github.com/GermanBionicSystems/sensornode/mcp320x"
	"github.com/GermanBionicSystems/sensornode/mirror"
	"github.com/GermanBionicSystems/sensornode/netcheck"
	"github.com/GermanBionicSystems/sensornode/node"
	"github.com/GermanBionicSystems/sensornode/reading"
	"github.com/GermanBionicSystems/sensornode/report"
	"github.com/GermanBionicSystems/sensornode/st7735"
	"github.com/GermanBionicSystems/sensornode/termdisplay"
	"github.com/GermanBionicSystems/sensornode/thingspeak"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// App owns the opened devices.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	closers []func() error
}

// New returns an App. Nothing is opened until Run.
func New(cfg *config.Config, log *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		log:    log,
		stdout: colorable.NewColorableStdout(),
		stderr: colorable.NewColorableStderr(),
	}
}

// console is where the text report goes. The terminal display owns stdout
// and redraws it from the top on every frame.
func (a *App) console() io.Writer {
	if a.cfg.Display.Driver == "term" {
		return a.stderr
	}
	return a.stdout
}

// Run opens the devices, runs the node until ctx is canceled and releases
// everything. Errors opening the host or the buses are returned; a sensor
// that does not answer is only logged.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	cfg := a.cfg

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return fmt.Errorf("i2c open: %w", err)
	}
	a.closers = append(a.closers, bus.Close)

	ina, err := ina219.New(bus, &ina219.Opts{
		Address:       i2c.Addr(cfg.INA219.Address),
		SenseResistor: physic.ElectricResistance(cfg.INA219.ShuntMilliOhm) * physic.MilliOhm,
		CurrentLSB:    physic.ElectricCurrent(cfg.INA219.CurrentLSBMicroAmp) * physic.MicroAmpere,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, ina.Halt)

	bme, err := bme280.New(bus, i2c.Addr(cfg.BME280.Address), &bme280.DefaultOpts)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, bme.Halt)

	adcPort, err := spireg.Open(cfg.ADC.SPI)
	if err != nil {
		return fmt.Errorf("adc spi open: %w", err)
	}
	a.closers = append(a.closers, adcPort.Close)
	adc, err := mcp320x.New(adcPort, variant(cfg.ADC.Variant), physic.ElectricPotential(cfg.ADC.VRef*float64(physic.Volt)))
	if err != nil {
		return err
	}
	pin, err := adc.PinADC(cfg.ADC.Channel)
	if err != nil {
		return err
	}

	drawer, err := a.openDisplay()
	if err != nil {
		return err
	}

	m := metrics.New()
	text := report.NewText(a.console())
	n := &node.Node{
		Opts:    node.Opts{Interval: cfg.Interval, NetworkPoll: cfg.Network.Poll},
		Network: &netcheck.Interface{Name: cfg.Network.Interface},
		Sensors: []node.Sensor{
			{Name: "INA219", Dev: ina},
			{Name: "BME280", Dev: bme},
		},
		Collector: &reading.Aggregator{
			Power:   ina,
			Env:     bme,
			Divider: divider.New(pin, &cfg.Divider),
		},
		Console: []report.Messenger{text},
		Local:   report.Sinks{text},
		Metrics: m,
		Log:     a.log,
	}

	extra := map[string]http.Handler{}
	if drawer != nil {
		drawers := []display.Drawer{drawer}
		if cfg.Display.Mirror {
			b := drawer.Bounds()
			mir := mirror.New(&mirror.Opts{W: b.Dx(), H: b.Dy(), Logger: a.log})
			a.closers = append(a.closers, mir.Halt)
			extra["/display"] = mir
			drawers = append(drawers, mir)
		}
		for _, d := range drawers {
			s, err := report.NewDisplay(d, &report.DisplayOpts{Font: cfg.Display.Font, Size: cfg.Display.FontSize})
			if err != nil {
				return err
			}
			n.Console = append(n.Console, s)
			n.Local = append(n.Local, s)
		}
	}

	n.Remote, err = a.remoteSinks(m)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, extra, a.log); err != nil {
				a.log.Error("metrics server failed", "err", err)
			}
		}()
	}

	if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openDisplay returns the configured display, nil for "none".
func (a *App) openDisplay() (display.Drawer, error) {
	cfg := a.cfg.Display
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "term":
		d := termdisplay.New(&termdisplay.Opts{W: cfg.Width, H: cfg.Height, Step: 2, Out: a.stdout})
		a.closers = append(a.closers, d.Halt)
		return d, nil
	}

	p, err := spireg.Open(cfg.SPI)
	if err != nil {
		return nil, fmt.Errorf("display spi open: %w", err)
	}
	a.closers = append(a.closers, p.Close)
	dc, err := outPin("dc", cfg.DC)
	if err != nil {
		return nil, err
	}
	cs, err := outPin("cs", cfg.CS)
	if err != nil {
		return nil, err
	}
	rst, err := outPin("rst", cfg.RST)
	if err != nil {
		return nil, err
	}
	opts := st7735.RedTab
	opts.W, opts.H = cfg.Width, cfg.Height
	opts.Rotation = st7735.Rotation(cfg.Rotation / 90)
	d, err := st7735.New(p, dc, cs, rst, &opts)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Halt)
	return d, nil
}

func (a *App) remoteSinks(m *metrics.Metrics) (report.Sinks, error) {
	cfg := a.cfg
	var sinks report.Sinks
	if cfg.ThingSpeak.WriteKey != "" {
		c, err := thingspeak.New(&thingspeak.Opts{
			Server:   cfg.ThingSpeak.Server,
			Channel:  cfg.ThingSpeak.Channel,
			WriteKey: cfg.ThingSpeak.WriteKey,
			Timeout:  cfg.ThingSpeak.Timeout,
		})
		if err != nil {
			return nil, err
		}
		r := report.NewRemote(c, a.log)
		r.OnResult = m.ObserveUpload
		sinks = append(sinks, r)
	} else {
		a.log.Warn("thingspeak write key not set, upload disabled")
	}
	if cfg.MQTT.Broker != "" {
		c := report.DialMQTT(report.MQTTOpts{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			ClientID: cfg.MQTT.ClientID,
		}, a.log)
		a.closers = append(a.closers, func() error {
			c.Disconnect(250)
			return nil
		})
		sinks = append(sinks, report.NewMQTT(c, cfg.MQTT.TopicPrefix, cfg.StationID, a.log))
	}
	return sinks, nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("release failed", "err", err)
		}
	}
	a.closers = nil
}

// outPin returns the named GPIO, nil for an empty name.
func outPin(role, name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("display %s: unknown gpio %q", role, name)
	}
	return p, nil
}

func variant(s string) mcp320x.Variant {
	return mcp320x.Variant(strings.ToUpper(s))
}
