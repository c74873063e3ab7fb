// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the sensor node configuration.
//
// Values come from compiled-in defaults, an optional YAML file and finally
// environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GermanBionicSystems/sensornode/divider"
	"gopkg.in/yaml.v3"
)

// Config is the complete node configuration.
type Config struct {
	AppEnv    string `yaml:"app_env"`
	LogLevel  string `yaml:"log_level"`
	StationID string `yaml:"station_id"`
	// Interval is the pause between two reporting cycles.
	Interval time.Duration `yaml:"interval"`

	Network    NetworkConfig    `yaml:"network"`
	I2C        I2CConfig        `yaml:"i2c"`
	INA219     INA219Config     `yaml:"ina219"`
	BME280     BME280Config     `yaml:"bme280"`
	ADC        ADCConfig        `yaml:"adc"`
	Divider    divider.Opts     `yaml:"divider"`
	Display    DisplayConfig    `yaml:"display"`
	ThingSpeak ThingSpeakConfig `yaml:"thingspeak"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// NetworkConfig selects the interface the node waits for at boot.
type NetworkConfig struct {
	// Interface is the interface name; empty means any interface.
	Interface string        `yaml:"interface"`
	Poll      time.Duration `yaml:"poll"`
}

// I2CConfig selects the I²C bus, empty for the first one.
type I2CConfig struct {
	Bus string `yaml:"bus"`
}

// INA219Config configures the power monitor.
type INA219Config struct {
	Address uint16 `yaml:"address"`
	// ShuntMilliOhm is the shunt resistor value.
	ShuntMilliOhm int64 `yaml:"shunt_milliohm"`
	// CurrentLSBMicroAmp is the current per register count.
	CurrentLSBMicroAmp int64 `yaml:"current_lsb_microamp"`
}

// BME280Config configures the environmental sensor.
type BME280Config struct {
	Address uint16 `yaml:"address"`
}

// ADCConfig configures the MCP320x converter sampling the divider.
type ADCConfig struct {
	SPI     string  `yaml:"spi"`
	Channel int     `yaml:"channel"`
	VRef    float64 `yaml:"vref"`
	// Variant is "mcp3204" or "mcp3208", in any case.
	Variant string `yaml:"variant"`
}

// DisplayConfig configures the local display.
type DisplayConfig struct {
	// Driver is one of "st7735", "term" or "none".
	Driver   string  `yaml:"driver"`
	SPI      string  `yaml:"spi"`
	DC       string  `yaml:"dc"`
	CS       string  `yaml:"cs"`
	RST      string  `yaml:"rst"`
	Rotation int     `yaml:"rotation"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	// Font is "goregular" or "basic".
	Font     string  `yaml:"font"`
	FontSize float64 `yaml:"font_size"`
	// Mirror serves a copy of the display on the metrics listener.
	Mirror bool `yaml:"mirror"`
}

// ThingSpeakConfig configures the remote telemetry channel. The upload is
// disabled without a write key.
type ThingSpeakConfig struct {
	Server   string        `yaml:"server"`
	Channel  uint64        `yaml:"channel"`
	WriteKey string        `yaml:"write_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the optional MQTT publisher. It is disabled without
// a broker.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// MetricsConfig configures the HTTP listener; empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration of the reference hardware.
func Default() *Config {
	return &Config{
		AppEnv:    "dev",
		LogLevel:  "info",
		StationID: "node",
		Interval:  20 * time.Second,
		Network: NetworkConfig{
			Poll: 500 * time.Millisecond,
		},
		INA219: INA219Config{
			Address:            0x40,
			ShuntMilliOhm:      100,
			CurrentLSBMicroAmp: 100,
		},
		BME280: BME280Config{
			Address: 0x76,
		},
		ADC: ADCConfig{
			SPI:     "SPI0.1",
			Channel: 0,
			VRef:    3.3,
			Variant: "mcp3208",
		},
		Divider: divider.DefaultOpts,
		Display: DisplayConfig{
			Driver:   "st7735",
			SPI:      "SPI0.0",
			DC:       "GPIO16",
			CS:       "GPIO5",
			RST:      "GPIO17",
			Width:    128,
			Height:   160,
			Font:     "goregular",
			FontSize: 9,
		},
		ThingSpeak: ThingSpeakConfig{
			Server:  "https://api.thingspeak.com",
			Timeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Port:        1883,
			ClientID:    "sensornode",
			TopicPrefix: "stations",
		},
	}
}

// Load reads filename over the defaults, applies the environment and
// validates the result. An empty filename or a missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}
	cfg.ensureDefaults()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level returns the parsed LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := parseLogLevel(c.LogLevel)
	return l
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid app_env %q (allowed: dev, prod)", c.AppEnv)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Network.Poll <= 0 {
		return fmt.Errorf("network.poll must be positive, got %v", c.Network.Poll)
	}
	if c.Divider.MaxADC <= 0 || c.Divider.R2 <= 0 || c.Divider.R1 < 0 {
		return fmt.Errorf("invalid divider %+v", c.Divider)
	}
	switch strings.ToLower(c.ADC.Variant) {
	case "mcp3204":
		if c.ADC.Channel < 0 || c.ADC.Channel > 3 {
			return fmt.Errorf("adc.channel %d out of range for %s", c.ADC.Channel, c.ADC.Variant)
		}
	case "mcp3208":
		if c.ADC.Channel < 0 || c.ADC.Channel > 7 {
			return fmt.Errorf("adc.channel %d out of range for %s", c.ADC.Channel, c.ADC.Variant)
		}
	default:
		return fmt.Errorf("invalid adc.variant %q (allowed: mcp3204, mcp3208)", c.ADC.Variant)
	}
	switch c.Display.Driver {
	case "st7735", "term", "none":
	default:
		return fmt.Errorf("invalid display.driver %q (allowed: st7735, term, none)", c.Display.Driver)
	}
	switch c.Display.Font {
	case "goregular", "basic":
	default:
		return fmt.Errorf("invalid display.font %q (allowed: goregular, basic)", c.Display.Font)
	}
	switch c.Display.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("invalid display.rotation %d", c.Display.Rotation)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("invalid display size %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.BME280.Address != 0x76 && c.BME280.Address != 0x77 {
		return fmt.Errorf("invalid bme280.address 0x%02x", c.BME280.Address)
	}
	if c.MQTT.Broker != "" && (c.MQTT.Port <= 0 || c.MQTT.Port > 65535) {
		return fmt.Errorf("invalid mqtt.port %d", c.MQTT.Port)
	}
	return nil
}

// ensureDefaults fills the settings a partial file left at zero.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.AppEnv == "" {
		c.AppEnv = def.AppEnv
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.StationID == "" {
		c.StationID = def.StationID
	}
	if c.Interval == 0 {
		c.Interval = def.Interval
	}
	if c.Network.Poll == 0 {
		c.Network.Poll = def.Network.Poll
	}
	if c.INA219.Address == 0 {
		c.INA219.Address = def.INA219.Address
	}
	if c.INA219.ShuntMilliOhm == 0 {
		c.INA219.ShuntMilliOhm = def.INA219.ShuntMilliOhm
	}
	if c.INA219.CurrentLSBMicroAmp == 0 {
		c.INA219.CurrentLSBMicroAmp = def.INA219.CurrentLSBMicroAmp
	}
	if c.BME280.Address == 0 {
		c.BME280.Address = def.BME280.Address
	}
	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Variant == "" {
		c.ADC.Variant = def.ADC.Variant
	}
	if c.Divider.MaxADC == 0 {
		c.Divider.MaxADC = def.Divider.MaxADC
	}
	if c.Divider.VRef == 0 {
		c.Divider.VRef = def.Divider.VRef
	}
	if c.Divider.R1 == 0 {
		c.Divider.R1 = def.Divider.R1
	}
	if c.Divider.R2 == 0 {
		c.Divider.R2 = def.Divider.R2
	}
	if c.Display.Driver == "" {
		c.Display.Driver = def.Display.Driver
	}
	if c.Display.Width == 0 {
		c.Display.Width = def.Display.Width
	}
	if c.Display.Height == 0 {
		c.Display.Height = def.Display.Height
	}
	if c.Display.Font == "" {
		c.Display.Font = def.Display.Font
	}
	if c.Display.FontSize == 0 {
		c.Display.FontSize = def.Display.FontSize
	}
	if c.ThingSpeak.Server == "" {
		c.ThingSpeak.Server = def.ThingSpeak.Server
	}
	if c.ThingSpeak.Timeout == 0 {
		c.ThingSpeak.Timeout = def.ThingSpeak.Timeout
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := get("APP_ENV"); v != "" {
		c.AppEnv = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := get("THINGSPEAK_CHANNEL"); v != "" {
		ch, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid THINGSPEAK_CHANNEL %q: %w", v, err)
		}
		c.ThingSpeak.Channel = ch
	}
	if v := get("THINGSPEAK_WRITE_KEY"); v != "" {
		c.ThingSpeak.WriteKey = v
	}
	if v := get("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := get("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := get("NODE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NODE_INTERVAL %q: %w", v, err)
		}
		c.Interval = d
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q (allowed: debug, info, warn, error)", s)
	}
}
