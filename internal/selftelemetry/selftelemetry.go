// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package selftelemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platformbuilds/iotrace/internal/tracelog"
)

// logCollector exports the health of every registered trace log. Values
// are read from the logs at scrape time.
type logCollector struct {
	logs *tracelog.Registry

	available *prometheus.Desc
	capacity  *prometheus.Desc
	clients   *prometheus.Desc
	overruns  *prometheus.Desc
	pushed    *prometheus.Desc
	drained   *prometheus.Desc
}

// RegisterLogs exports the diagnostics of every log in logs.
func (m *Metrics) RegisterLogs(logs *tracelog.Registry) error {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(m.namespace, "tracelog", name), help, []string{"tracer"}, nil)
	}
	return m.reg.Register(&logCollector{
		logs:      logs,
		available: desc("available", "Unread records currently retained"),
		capacity:  desc("capacity", "Record slots of the log"),
		clients:   desc("clients", "Attached readers"),
		overruns:  desc("overruns_total", "Records discarded before being read"),
		pushed:    desc("pushed_total", "Records pushed by producers"),
		drained:   desc("drained_total", "Records drained by readers"),
	})
}

func (c *logCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.available
	ch <- c.capacity
	ch <- c.clients
	ch <- c.overruns
	ch <- c.pushed
	ch <- c.drained
}

func (c *logCollector) Collect(ch chan<- prometheus.Metric) {
	for _, l := range c.logs.List() {
		s := l.Stats()
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(s.Available), s.Name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Name)
		ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(s.Clients), s.Name)
		ch <- prometheus.MustNewConstMetric(c.overruns, prometheus.CounterValue, float64(s.Overruns), s.Name)
		ch <- prometheus.MustNewConstMetric(c.pushed, prometheus.CounterValue, float64(s.Pushed), s.Name)
		ch <- prometheus.MustNewConstMetric(c.drained, prometheus.CounterValue, float64(s.Drained), s.Name)
	}
}
