// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package metrics exposes the node's Prometheus collectors and the HTTP
// listener serving them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/sensornode/reading"
	"github.com/GermanBionicSystems/sensornode/thingspeak"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Cycles        prometheus.Counter
	CollectErrors prometheus.Counter
	SinkErrors    *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	Reading       *prometheus.GaugeVec
	CycleDuration prometheus.Histogram
}

// New returns collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensornode_cycles_total",
			Help: "Total number of reporting cycles",
		}),
		CollectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensornode_collect_errors_total",
			Help: "Total number of cycles where at least one sensor failed",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensornode_sink_errors_total",
			Help: "Total number of failed sink reports",
		}, []string{"sink"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensornode_uploads_total",
			Help: "Telemetry uploads by result code",
		}, []string{"code"}),
		Reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensornode_reading",
			Help: "Last value of each reading field",
		}, []string{"field", "unit"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensornode_cycle_duration_seconds",
			Help:    "Duration of the collect and report part of a cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.reg.MustRegister(
		m.Cycles,
		m.CollectErrors,
		m.SinkErrors,
		m.Uploads,
		m.Reading,
		m.CycleDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(s reading.Snapshot, collectErr error, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	if collectErr != nil {
		m.CollectErrors.Inc()
	}
	for _, f := range s.Fields() {
		m.Reading.WithLabelValues(f.Label, f.Unit).Set(f.Value)
	}
	m.CycleDuration.Observe(d.Seconds())
}

// ObserveUpload records the result of a telemetry upload.
func (m *Metrics) ObserveUpload(c thingspeak.Code) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(strconv.Itoa(int(c))).Inc()
}

// ObserveSinkError records a failed report.
func (m *Metrics) ObserveSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve runs an HTTP server on addr exposing /metrics, /healthz and the
// extra handlers until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, extra map[string]http.Handler, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	for p, h := range extra {
		mux.Handle(p, h)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
