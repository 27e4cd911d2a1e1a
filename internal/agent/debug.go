// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/platformbuilds/iotrace/internal/source"
	"github.com/platformbuilds/iotrace/internal/tracelog"
	"github.com/platformbuilds/iotrace/internal/version"
)

// TracerState is the debug view of one tracer.
type TracerState struct {
	Name    string              `json:"name"`
	Schema  string              `json:"schema"`
	Source  string              `json:"source"`
	Devices string              `json:"devices"`
	Emitter source.EmitterStats `json:"emitter"`
	Log     tracelog.Stats      `json:"log"`
}

// RuntimeState summarizes the Go runtime.
type RuntimeState struct {
	GoVersion    string  `json:"go_version"`
	NumGoroutine int     `json:"num_goroutine"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	NumGC        uint32  `json:"num_gc"`
}

// State is the debug view of the agent.
type State struct {
	Version  string        `json:"version"`
	UptimeMs int64         `json:"uptime_ms"`
	Ready    bool          `json:"ready"`
	Tracers  []TracerState `json:"tracers"`
	Runtime  RuntimeState  `json:"runtime"`
}

// installDebugHandlers configures profiling and state endpoints
func (a *Agent) installDebugHandlers() {
	a.mux.HandleFunc("/debug/pprof/", pprof.Index)
	a.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	a.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	a.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	a.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	a.mux.HandleFunc("/debug/state", a.handleDebugState)
}

// State returns a snapshot of every tracer and the runtime.
func (a *Agent) State() State {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := State{
		Version:  version.Version(),
		UptimeMs: time.Since(a.started).Milliseconds(),
		Ready:    a.st.IsReady(),
		Tracers:  make([]TracerState, 0, len(a.order)),
	}
	s.Runtime = RuntimeState{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		HeapAllocMB:  float64(m.HeapAlloc) / 1024 / 1024,
		NumGC:        m.NumGC,
	}

	for _, name := range a.order {
		t := a.tracers[name]
		s.Tracers = append(s.Tracers, TracerState{
			Name:    name,
			Schema:  string(t.cfg.SchemaOf()),
			Source:  t.cfg.Source.Type,
			Devices: t.em.Devices().Get().String(),
			Emitter: t.em.Stats(),
			Log:     t.log.Stats(),
		})
	}
	return s
}

// handleDebugState returns the current agent state
func (a *Agent) handleDebugState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(a.State())
}
