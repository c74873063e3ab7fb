// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package node runs the sensor node: boot once, then collect and report
// readings on a fixed interval until the context is canceled.
package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GermanBionicSystems/sensornode/internal/metrics"
	"github.com/GermanBionicSystems/sensornode/reading"
	"github.com/GermanBionicSystems/sensornode/report"
)

// State is the lifecycle state of a Node.
type State int

const (
	// Booting covers the network wait and the sensor detection.
	Booting State = iota
	// Running is the reporting loop. It is only left on cancellation.
	Running
)

func (s State) String() string {
	switch s {
	case Booting:
		return "Booting"
	case Running:
		return "Running"
	default:
		return "State(?)"
	}
}

// Network reports connectivity; *netcheck.Interface implements it.
type Network interface {
	Connected() bool
}

// Collector is implemented by *reading.Aggregator.
type Collector interface {
	Collect(ctx context.Context) (reading.Snapshot, error)
}

// Sensor is a device probed once at boot.
type Sensor struct {
	Name string
	Dev  interface{ Init() error }
}

// Opts holds the timing of a Node.
type Opts struct {
	// Interval is the pause after each cycle. Defaults to 20s.
	Interval time.Duration
	// NetworkPoll is the connectivity polling period. Defaults to 500ms.
	NetworkPoll time.Duration
}

// Node ties the sensors and the sinks together.
type Node struct {
	Opts
	// Network is waited for at boot; nil skips the wait.
	Network   Network
	Sensors   []Sensor
	Collector Collector
	// Console receives the boot messages.
	Console []report.Messenger
	// Local sinks are served before Remote ones in each cycle.
	Local   report.Sinks
	Remote  report.Sinks
	Metrics *metrics.Metrics
	Log     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
}

// State returns the current state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
	n.logger().Info("state", "state", s)
}

// Run boots the node then runs cycles until ctx is canceled, returning
// ctx.Err().
func (n *Node) Run(ctx context.Context) error {
	n.setState(Booting)
	if err := n.boot(ctx); err != nil {
		return err
	}
	n.setState(Running)
	for {
		n.Cycle(ctx)
		if err := n.wait(ctx, n.interval()); err != nil {
			return err
		}
	}
}

func (n *Node) boot(ctx context.Context) error {
	log := n.logger()
	n.message("Booting...\n")

	if n.Network != nil {
		n.message("Connecting to WiFi")
		for !n.Network.Connected() {
			if err := n.wait(ctx, n.poll()); err != nil {
				return err
			}
			n.message(".")
		}
		n.message("\nWiFi Connected\n")
		log.Info("network connected")
	}

	for _, s := range n.Sensors {
		if err := s.Dev.Init(); err != nil {
			log.Error("Failed to find "+s.Name, "err", err)
			n.message("Failed to find " + s.Name + "\n")
			continue
		}
		log.Info(s.Name + " detected")
		n.message(s.Name + " detected\n")
	}
	return nil
}

// Cycle collects one Snapshot and hands it to the local then the remote
// sinks. Failures are logged; nothing stops the cycle.
func (n *Node) Cycle(ctx context.Context) {
	log := n.logger()
	start := time.Now()
	s, err := n.Collector.Collect(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn("sensor read failed", "seq", s.Seq, "err", err)
	}
	onErr := func(k report.Sink, err error) {
		log.Error("report failed", "sink", report.Name(k), "seq", s.Seq, "err", err)
		n.Metrics.ObserveSinkError(report.Name(k))
	}
	_ = n.Local.Each(ctx, s, onErr)
	_ = n.Remote.Each(ctx, s, onErr)
	n.Metrics.ObserveCycle(s, err, time.Since(start))
}

func (n *Node) message(s string) {
	for _, c := range n.Console {
		if err := c.Message(s); err != nil {
			n.logger().Debug("console message failed", "console", report.Name(c), "err", err)
		}
	}
}

func (n *Node) wait(ctx context.Context, d time.Duration) error {
	if n.sleep != nil {
		return n.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *Node) interval() time.Duration {
	if n.Interval <= 0 {
		return 20 * time.Second
	}
	return n.Interval
}

func (n *Node) poll() time.Duration {
	if n.NetworkPoll <= 0 {
		return 500 * time.Millisecond
	}
	return n.NetworkPoll
}

func (n *Node) logger() *slog.Logger {
	if n.Log == nil {
		return slog.Default()
	}
	return n.Log
}
