// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent assembles trace logs, their sources and the HTTP surface
// from a configuration and runs them until shutdown.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/iotrace/internal/config"
	"github.com/platformbuilds/iotrace/internal/records"
	"github.com/platformbuilds/iotrace/internal/selftelemetry"
	"github.com/platformbuilds/iotrace/internal/source"
	"github.com/platformbuilds/iotrace/internal/streamhttp"
	"github.com/platformbuilds/iotrace/internal/tracelog"
)

const shutdownTimeout = 5 * time.Second

// tracer is one configured trace log and what feeds it.
type tracer struct {
	cfg    config.Tracer
	log    *tracelog.Log
	em     *source.Emitter
	source source.Source
}

// Agent owns every tracer and the HTTP server exposing them.
type Agent struct {
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger
	st      *selftelemetry.Metrics

	logs    *tracelog.Registry
	tracers map[string]*tracer
	order   []string
	mux     *http.ServeMux
	started time.Time

	addr atomic.Pointer[net.Addr]
}

// New builds the agent. cfgPath is used for hot reload and may be empty.
// On error every log created so far is torn down.
func New(cfg *config.Config, cfgPath string, log *slog.Logger) (*Agent, error) {
	a := &Agent{
		cfg:     cfg,
		cfgPath: cfgPath,
		log:     log.With("component", "agent"),
		st:      selftelemetry.NewMetrics(cfg.SelfTelemetry.NS),
		logs:    tracelog.NewRegistry(),
		tracers: make(map[string]*tracer),
		mux:     http.NewServeMux(),
		started: time.Now(),
	}

	schemas := make(map[string]records.Schema, len(cfg.Tracers))
	for _, tc := range cfg.Tracers {
		t, err := a.buildTracer(tc, log)
		if err != nil {
			_ = a.logs.CloseAll()
			return nil, fmt.Errorf("tracer %s: %w", tc.Name, err)
		}
		a.tracers[tc.Name] = t
		a.order = append(a.order, tc.Name)
		schemas[tc.Name] = tc.SchemaOf()
	}

	if err := a.st.RegisterLogs(a.logs); err != nil {
		_ = a.logs.CloseAll()
		return nil, fmt.Errorf("registering log metrics: %w", err)
	}
	a.st.InstallHandlers(a.mux)
	a.installDebugHandlers()
	streamhttp.New(streamhttp.Config{
		PollInterval: cfg.Stream.PollInterval,
		MaxRecords:   cfg.Stream.MaxRecords,
	}, a.logs, schemas, log, a.st).Install(a.mux)

	return a, nil
}

func (a *Agent) buildTracer(tc config.Tracer, log *slog.Logger) (*tracer, error) {
	schema := tc.SchemaOf()
	l, err := tracelog.New(tracelog.Config{
		Name:      tc.Name,
		EntrySize: schema.EntrySize(),
		Capacity:  tc.Capacity,
	}, log)
	if err != nil {
		return nil, err
	}
	if err := a.logs.Register(l); err != nil {
		_ = l.Close()
		return nil, err
	}

	filter, err := deviceFilter(tc.Target)
	if err != nil {
		return nil, err
	}
	em := source.NewEmitter(tc.Name, l, schema, source.NewMatcher(filter), log, a.st)
	t := &tracer{cfg: tc, log: l, em: em}

	switch tc.Source.Type {
	case config.SourceSynthetic:
		t.source = source.NewSynthetic(source.SyntheticConfig{
			Rate:   tc.Source.Rate,
			Device: filter,
			Files:  tc.Source.Files,
		}, em)
	case config.SourceBPF:
		b, err := source.NewBPF(source.BPFConfig{
			PinPath:          tc.Source.PinPath,
			PerCPUBufferSize: tc.Source.PerCPUBufferSize,
		}, em, log)
		if err != nil {
			return nil, err
		}
		t.source = b
	}
	return t, nil
}

func deviceFilter(t config.Target) (source.DeviceFilter, error) {
	major, minor, err := t.Resolve()
	if err != nil {
		return source.DeviceFilter{}, fmt.Errorf("resolving target: %w", err)
	}
	return source.DeviceFilter{Major: major, Minor: minor}, nil
}

// Handler returns the HTTP handler serving metrics, health and streams.
func (a *Agent) Handler() http.Handler { return a.mux }

// Logs returns the registry of trace logs.
func (a *Agent) Logs() *tracelog.Registry { return a.logs }

// Metrics returns the agent's self telemetry.
func (a *Agent) Metrics() *selftelemetry.Metrics { return a.st }

// Addr returns the address the HTTP server listens on, or nil before Run
// has bound it.
func (a *Agent) Addr() net.Addr {
	if p := a.addr.Load(); p != nil {
		return *p
	}
	return nil
}

// Emitter returns the emitter of the named tracer.
func (a *Agent) Emitter(name string) (*source.Emitter, bool) {
	t, ok := a.tracers[name]
	if !ok {
		return nil, false
	}
	return t.em, true
}

// Run starts sources, the HTTP server and the config watcher, and blocks
// until ctx is done or a component fails. Sources are stopped first, then
// the HTTP server, then the logs are torn down.
func (a *Agent) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.SelfTelemetry.Listen)
	if err != nil {
		_ = a.logs.CloseAll()
		return fmt.Errorf("listen %s: %w", a.cfg.SelfTelemetry.Listen, err)
	}
	addr := ln.Addr()
	a.addr.Store(&addr)

	// Streams are long lived. Their requests derive from streamCtx so
	// that shutdown can end them instead of waiting out the timeout.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	srv := &http.Server{
		Handler:           a.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	srcCtx, stopSources := context.WithCancel(ctx)
	defer stopSources()
	sources, sctx := errgroup.WithContext(srcCtx)
	for _, name := range a.order {
		t := a.tracers[name]
		if t.source == nil {
			continue
		}
		a.log.Info("starting source", "tracer", name, "type", t.cfg.Source.Type, "devices", t.em.Devices().Get().String())
		sources.Go(func() error {
			if err := t.source.Run(sctx); err != nil {
				return fmt.Errorf("source %s: %w", name, err)
			}
			return nil
		})
	}

	srvErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", "addr", addr.String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var w *config.Watcher
	if a.cfg.Watch.Enabled && a.cfgPath != "" {
		w, err = config.NewWatcher(a.cfgPath, a.cfg.Watch.PollInterval, a.log)
		if err != nil {
			a.log.Warn("config watcher disabled", "error", err)
		} else {
			w.OnChange(a.Reload)
			w.Start(sctx)
		}
	}

	a.st.SetReady(true)
	a.log.Info("agent started", "tracers", len(a.order))

	var runErr error
	select {
	case <-sctx.Done():
		if ctx.Err() == nil {
			runErr = sources.Wait()
		}
	case err := <-srvErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.st.SetReady(false)
	a.log.Info("shutting down")
	if w != nil {
		w.Stop()
	}
	stopSources()
	if err := sources.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	cancelStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http shutdown", "error", err)
	}

	if err := a.logs.CloseAll(); err != nil {
		a.log.Warn("tearing down logs", "error", err)
	}
	a.log.Info("agent stopped")
	return runErr
}

// Reload applies a new configuration to the running tracers. Device
// targets are swapped in place; other changes need a restart and are
// only reported.
func (a *Agent) Reload(c *config.Config) error {
	a.st.ConfigReloads.Inc()
	var errs []error
	for _, tc := range c.Tracers {
		t, ok := a.tracers[tc.Name]
		if !ok {
			a.log.Warn("new tracer ignored until restart", "tracer", tc.Name)
			continue
		}
		if tc.Schema != t.cfg.Schema || tc.Capacity != t.cfg.Capacity || tc.Source != t.cfg.Source {
			a.log.Warn("tracer settings changed, restart to apply", "tracer", tc.Name)
		}
		filter, err := deviceFilter(tc.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("tracer %s: %w", tc.Name, err))
			continue
		}
		if old := t.em.Devices().Get(); old != filter {
			t.em.Devices().Set(filter)
			a.log.Info("device filter updated", "tracer", tc.Name, "from", old.String(), "to", filter.String())
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.st.ConfigReloadErrors.Inc()
		return err
	}
	return nil
}
