// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package streamhttp exposes trace logs as HTTP byte streams. A GET on a
// stream attaches a reader for the lifetime of the request and writes
// whole records as they are drained.
package streamhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/platformbuilds/iotrace/internal/records"
	"github.com/platformbuilds/iotrace/internal/selftelemetry"
	"github.com/platformbuilds/iotrace/internal/tracelog"
)

// Response headers describing the stream's records.
const (
	HeaderSchema    = "X-Iotrace-Schema"
	HeaderEntrySize = "X-Iotrace-Entry-Size"
)

// Config holds stream handler configuration
type Config struct {
	// PollInterval bounds each wait for new records.
	PollInterval time.Duration

	// MaxRecords is the default number of records per read.
	MaxRecords int
}

// StreamInfo describes one stream in listings.
type StreamInfo struct {
	tracelog.Stats
	Schema string `json:"schema"`
}

// Handler serves the stream endpoints.
type Handler struct {
	cfg     Config
	logs    *tracelog.Registry
	schemas map[string]records.Schema
	log     *slog.Logger
	st      *selftelemetry.Metrics
}

// New returns a handler serving the logs in logs. schemas maps log names
// to their record schema. st may be nil.
func New(cfg Config, logs *tracelog.Registry, schemas map[string]records.Schema, log *slog.Logger, st *selftelemetry.Metrics) *Handler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 100
	}
	return &Handler{
		cfg:     cfg,
		logs:    logs,
		schemas: schemas,
		log:     log.With("component", "streamhttp"),
		st:      st,
	}
}

// Install registers the stream routes on mux.
func (h *Handler) Install(mux *http.ServeMux) {
	mux.HandleFunc("GET /streams", h.serveList)
	mux.HandleFunc("GET /streams/{name}", h.serveStream)
	mux.HandleFunc("GET /streams/{name}/stats", h.serveStats)
}

func (h *Handler) info(l *tracelog.Log) StreamInfo {
	return StreamInfo{Stats: l.Stats(), Schema: string(h.schemas[l.Name()])}
}

func (h *Handler) serveList(w http.ResponseWriter, _ *http.Request) {
	logs := h.logs.List()
	out := make([]StreamInfo, 0, len(logs))
	for _, l := range logs {
		out = append(out, h.info(l))
	}
	writeJSON(w, map[string]any{"streams": out})
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request) {
	l, ok := h.logs.Get(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, h.info(l))
}

// serveStream attaches a reader and streams records until the client goes
// away, the log is torn down, or the requested limit is reached.
//
// Query parameters:
//
//	max_records  records per read (default from config)
//	limit        stop after this many records
//	follow=false perform a single read and return
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	l, ok := h.logs.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	maxRecords, err := intParam(q.Get("max_records"), h.cfg.MaxRecords)
	if err != nil {
		http.Error(w, "invalid max_records", http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	follow := q.Get("follow") != "false" && q.Get("follow") != "0"

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s, err := l.Open()
	if err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			h.log.Warn("error closing stream", "tracer", name, "error", err)
		}
	}()

	log := h.log.With("tracer", name, "remote", r.RemoteAddr)
	log.Debug("stream opened", "clients", l.Clients())
	if h.st != nil {
		h.st.StreamSessions.WithLabelValues(name).Inc()
	}

	size := l.EntrySize()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(HeaderSchema, string(h.schemas[name]))
	w.Header().Set(HeaderEntrySize, strconv.Itoa(size))
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	buf := make([]byte, maxRecords*size)
	sent := 0
	for {
		want := buf
		if limit > 0 && (limit-sent)*size < len(want) {
			want = buf[:(limit-sent)*size]
		}
		n, err := s.Read(want)
		if err != nil {
			if !errors.Is(err, tracelog.ErrClosed) {
				log.Warn("stream read failed", "error", err)
			}
			return
		}
		if n > 0 {
			if _, err := w.Write(want[:n]); err != nil {
				log.Debug("stream client gone", "error", err)
				return
			}
			flusher.Flush()
			sent += n / size
			if h.st != nil {
				h.st.StreamBytes.WithLabelValues(name).Add(float64(n))
			}
		}
		if !follow || (limit > 0 && sent >= limit) {
			return
		}
		if n > 0 {
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, h.cfg.PollInterval)
		err = s.Wait(wctx)
		cancel()
		if ctx.Err() != nil || errors.Is(err, tracelog.ErrClosed) {
			log.Debug("stream closed", "sent", sent)
			return
		}
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
