// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GermanBionicSystems/sensornode/reading"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the subset of mqtt.Client used by MQTT.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Telemetry is the JSON document published per Snapshot.
type Telemetry struct {
	StationID      string    `json:"station_id"`
	Timestamp      time.Time `json:"timestamp"`
	Sequence       uint64    `json:"sequence"`
	DividerVoltage float64   `json:"divider_v"`
	BusVoltage     float64   `json:"bus_v"`
	Current        float64   `json:"current_ma"`
	Power          float64   `json:"power_mw"`
	Temperature    float64   `json:"temperature_c"`
	Humidity       float64   `json:"humidity_pct"`
	Pressure       float64   `json:"pressure_hpa"`
}

// MQTT publishes each Snapshot on "<prefix>/<station>/telemetry".
type MQTT struct {
	client  Publisher
	topic   string
	station string
	log     *slog.Logger
	// Timeout bounds the wait for the broker acknowledgement.
	Timeout time.Duration
}

// NewMQTT returns a sink publishing through client.
func NewMQTT(client Publisher, prefix, station string, log *slog.Logger) *MQTT {
	if log == nil {
		log = slog.Default()
	}
	return &MQTT{
		client:  client,
		topic:   fmt.Sprintf("%s/%s/telemetry", prefix, station),
		station: station,
		log:     log.With("sink", "mqtt"),
		Timeout: 5 * time.Second,
	}
}

// Name implements the name lookup of Sinks.
func (m *MQTT) Name() string {
	return "mqtt"
}

// Topic returns the topic snapshots are published on.
func (m *MQTT) Topic() string {
	return m.topic
}

// Report implements Sink.
func (m *MQTT) Report(ctx context.Context, s reading.Snapshot) error {
	if !m.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	data, err := json.Marshal(Telemetry{
		StationID:      m.station,
		Timestamp:      s.Time,
		Sequence:       s.Seq,
		DividerVoltage: s.DividerVoltage,
		BusVoltage:     s.BusVoltage,
		Current:        s.Current,
		Power:          s.Power,
		Temperature:    s.Temperature,
		Humidity:       s.Humidity,
		Pressure:       s.Pressure,
	})
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	token := m.client.Publish(m.topic, 1, false, data)
	timer := time.NewTimer(m.Timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", m.topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	m.log.Debug("published telemetry", "topic", m.topic, "seq", s.Seq)
	return nil
}

// MQTTOpts configures DialMQTT.
type MQTTOpts struct {
	Broker   string
	Port     int
	ClientID string
}

// DialMQTT starts a connection to the broker and returns immediately; the
// client keeps retrying in the background and reconnects when the link is
// lost. Call Disconnect on the returned client to stop it.
func DialMQTT(o MQTTOpts, log *slog.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("mqtt connected", "broker", o.Broker, "port", o.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error("mqtt connect failed", "error", err)
		}
	}()
	return c
}
