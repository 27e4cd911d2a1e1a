// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package source contains the producers that feed trace logs: they turn
// observed I/O operations into schema records and push them, skipping all
// work while no reader is attached.
package source

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/platformbuilds/iotrace/internal/records"
	"github.com/platformbuilds/iotrace/internal/selftelemetry"
	"github.com/platformbuilds/iotrace/internal/tracelog"
)

// Source produces records until its context ends.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// Sink is the producer-facing side of a trace log.
type Sink interface {
	HasClients() bool
	Push(rec []byte) error
}

var _ Sink = (*tracelog.Log)(nil)

// Emitter gates, filters, encodes and pushes events for one tracer.
type Emitter struct {
	name    string
	sink    Sink
	schema  records.Schema
	devices *Matcher
	log     *slog.Logger
	st      *selftelemetry.Metrics

	pool sync.Pool

	emitted  atomic.Int64
	gated    atomic.Int64
	filtered atomic.Int64
	errors   atomic.Int64
}

// NewEmitter returns an emitter pushing schema records into sink. st may be nil.
func NewEmitter(name string, sink Sink, schema records.Schema, devices *Matcher, log *slog.Logger, st *selftelemetry.Metrics) *Emitter {
	if devices == nil {
		devices = NewMatcher(DeviceFilter{})
	}
	size := schema.EntrySize()
	e := &Emitter{
		name:    name,
		sink:    sink,
		schema:  schema,
		devices: devices,
		log:     log.With("component", "emitter", "tracer", name),
		st:      st,
	}
	e.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return e
}

// Name returns the tracer name.
func (e *Emitter) Name() string { return e.name }

// Devices returns the emitter's device filter.
func (e *Emitter) Devices() *Matcher { return e.devices }

// Emit records one event. build is called only when a reader is attached;
// it fills ev and returns false to drop the event.
func (e *Emitter) Emit(build func(ev *records.Event) bool) {
	if !e.sink.HasClients() {
		e.gated.Add(1)
		if e.st != nil {
			e.st.SourceGated.WithLabelValues(e.name).Inc()
		}
		return
	}

	var ev records.Event
	if !build(&ev) {
		return
	}
	if !e.devices.Match(ev.Major, ev.Minor) {
		e.filtered.Add(1)
		if e.st != nil {
			e.st.SourceFiltered.WithLabelValues(e.name).Inc()
		}
		return
	}

	bp := e.pool.Get().(*[]byte)
	defer e.pool.Put(bp)
	if err := e.schema.Encode(&ev, *bp); err != nil {
		e.fail("encode failed", err)
		return
	}
	if err := e.sink.Push(*bp); err != nil {
		e.fail("push failed", err)
		return
	}
	e.emitted.Add(1)
	if e.st != nil {
		e.st.SourceEvents.WithLabelValues(e.name).Inc()
	}
}

func (e *Emitter) fail(msg string, err error) {
	if e.errors.Add(1) == 1 {
		e.log.Warn(msg, "error", err)
	} else {
		e.log.Debug(msg, "error", err)
	}
	if e.st != nil {
		e.st.SourceErrors.WithLabelValues(e.name).Inc()
	}
}

// EmitterStats holds emitter counters.
type EmitterStats struct {
	Emitted  int64 `json:"emitted"`
	Gated    int64 `json:"gated"`
	Filtered int64 `json:"filtered"`
	Errors   int64 `json:"errors"`
}

// Stats returns emitter statistics
func (e *Emitter) Stats() EmitterStats {
	return EmitterStats{
		Emitted:  e.emitted.Load(),
		Gated:    e.gated.Load(),
		Filtered: e.filtered.Load(),
		Errors:   e.errors.Load(),
	}
}
