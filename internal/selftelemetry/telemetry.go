// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package selftelemetry provides self-monitoring metrics for the iotrace agent.
package selftelemetry

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all self-telemetry metrics for the agent
type Metrics struct {
	namespace string
	reg       *prometheus.Registry
	ready     atomic.Bool

	// Agent lifecycle metrics
	AgentReady prometheus.Gauge

	// Source metrics
	SourceEvents   *prometheus.CounterVec
	SourceGated    *prometheus.CounterVec
	SourceFiltered *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec

	// Stream metrics
	StreamSessions *prometheus.CounterVec
	StreamBytes    *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// NewMetrics creates a Metrics instance on its own registry. Go runtime and
// process collectors are registered alongside.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "iotrace"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		namespace: namespace,
		reg:       reg,
	}

	m.AgentReady = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agent_ready",
		Help:      "Whether the agent is ready to serve streams (1 = ready)",
	})

	m.SourceEvents = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_events_total",
		Help:      "Total number of records pushed by sources",
	}, []string{"tracer"})

	m.SourceGated = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_gated_total",
		Help:      "Total number of events skipped because no reader was attached",
	}, []string{"tracer"})

	m.SourceFiltered = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_filtered_total",
		Help:      "Total number of events rejected by the device filter",
	}, []string{"tracer"})

	m.SourceErrors = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Total number of events a source failed to decode or push",
	}, []string{"tracer"})

	m.StreamSessions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_sessions_total",
		Help:      "Total number of stream readers opened",
	}, []string{"tracer"})

	m.StreamBytes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_bytes_total",
		Help:      "Total bytes delivered to stream readers",
	}, []string{"tracer"})

	m.ConfigReloads = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_reloads_total",
		Help:      "Total number of applied configuration reloads",
	})

	m.ConfigReloadErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_reload_errors_total",
		Help:      "Total number of rejected configuration reloads",
	})

	return m
}

// Namespace returns the metric namespace.
func (m *Metrics) Namespace() string { return m.namespace }

// Registry returns the prometheus registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// SetReady sets the readiness state
func (m *Metrics) SetReady(ready bool) {
	m.ready.Store(ready)
	if ready {
		m.AgentReady.Set(1)
	} else {
		m.AgentReady.Set(0)
	}
}

// IsReady returns the current readiness state
func (m *Metrics) IsReady() bool {
	return m.ready.Load()
}
