// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracelog implements the in-memory trace event log shared by the
// I/O tracers: a bounded, drop-oldest circular buffer of fixed-size records
// with one shared read cursor and a consumer count that gates producers.
package tracelog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// overrunLogInterval bounds how often overruns are reported in the log.
const overrunLogInterval = 10 * time.Second

// Config describes one log instance.
type Config struct {
	// Name labels the log in diagnostics and stream paths.
	Name string `yaml:"name"`

	// EntrySize is the size in bytes of every record.
	EntrySize int `yaml:"entry_size"`

	// Capacity is the number of record slots. One slot always stays free,
	// so at most Capacity-1 unread records are retained.
	Capacity int `yaml:"capacity"`
}

// Stats is a point-in-time view of a log's health.
type Stats struct {
	Name      string `json:"name"`
	EntrySize int    `json:"entry_size"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Overruns  uint64 `json:"overruns"`
	Clients   int    `json:"clients"`
	Pushed    uint64 `json:"pushed"`
	Drained   uint64 `json:"drained"`
	Closed    bool   `json:"closed"`
}

// Log is a bounded trace record log. Push may be called from any number of
// goroutines concurrently with Drain; both hold the lock only for the
// cursor update and the slot copy, and Push never waits for a consumer.
type Log struct {
	name string
	log  *slog.Logger

	clients Clients

	mu       sync.Mutex
	st       *store
	read     int
	write    int
	overruns uint64
	pushed   uint64
	drained  uint64
	closed   bool
	ready    chan struct{}
	lastWarn time.Time
}

// New allocates a log. On failure it returns a *ResourceError and no log.
func New(cfg Config, log *slog.Logger) (*Log, error) {
	if log == nil {
		log = slog.Default()
	}
	st, err := newStore(cfg.EntrySize, cfg.Capacity)
	if err != nil {
		return nil, &ResourceError{Name: cfg.Name, Err: err}
	}
	l := &Log{
		name: cfg.Name,
		log:  log.With("component", "tracelog", "log", cfg.Name),
		st:   st,
	}
	l.log.Debug("trace log allocated", "entry_size", cfg.EntrySize, "capacity", cfg.Capacity)
	return l, nil
}

// Name returns the log's label.
func (l *Log) Name() string { return l.name }

// EntrySize returns the fixed record size in bytes.
func (l *Log) EntrySize() int { return l.st.entrySize }

// Capacity returns the number of record slots.
func (l *Log) Capacity() int { return l.st.capacity }

// HasClients reports whether any consumer is attached. Producers call it
// before doing any record extraction work.
func (l *Log) HasClients() bool { return l.clients.HasClients() }

// Clients returns the number of attached consumers.
func (l *Log) Clients() int { return l.clients.Count() }

// Push appends one record. When the log is full the oldest unread record
// is discarded and counted as an overrun. Push only fails on misuse: a
// record of the wrong size or a closed log.
func (l *Log) Push(rec []byte) error {
	if len(rec) != l.st.entrySize {
		return ErrRecordSize
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.st.put(l.write, rec)
	l.write = l.st.next(l.write, 1)
	l.pushed++
	overrun := false
	if l.write == l.read {
		l.read = l.st.next(l.read, 1)
		l.overruns++
		overrun = true
	}
	if l.ready != nil {
		close(l.ready)
		l.ready = nil
	}
	var warn bool
	var total uint64
	if overrun && time.Since(l.lastWarn) > overrunLogInterval {
		l.lastWarn = time.Now()
		warn, total = true, l.overruns
	}
	l.mu.Unlock()

	if warn {
		l.log.Warn("log overrun, dropping oldest records", "total_overruns", total)
	}
	return nil
}

// Available returns the number of unread records.
func (l *Log) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	return l.st.distance(l.read, l.write)
}

// Overruns returns the number of records discarded before being read.
func (l *Log) Overruns() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overruns
}

// Drain copies up to maxCount of the oldest unread records into dst and
// removes them from the log. The count is further bounded by the number of
// whole records dst can hold. It returns the number of records copied;
// zero means nothing was available. Concurrent drains partition the stream
// between callers.
func (l *Log) Drain(dst []byte, maxCount int) (int, error) {
	if fit := len(dst) / l.st.entrySize; maxCount > fit {
		maxCount = fit
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	n := l.st.distance(l.read, l.write)
	if n > maxCount {
		n = maxCount
	}
	if n <= 0 {
		return 0, nil
	}
	l.st.copyOut(l.read, n, dst)
	l.read = l.st.next(l.read, n)
	l.drained += uint64(n)
	return n, nil
}

// DrainRecords drains up to maxCount records and returns them individually.
func (l *Log) DrainRecords(maxCount int) ([][]byte, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	if avail := l.Available(); maxCount > avail {
		// bounded by what is there now; records pushed meanwhile stay for later
		maxCount = avail
	}
	buf := make([]byte, maxCount*l.st.entrySize)
	n, err := l.Drain(buf, maxCount)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([][]byte, n)
	for i := range out {
		off := i * l.st.entrySize
		out[i] = buf[off : off+l.st.entrySize : off+l.st.entrySize]
	}
	return out, nil
}

// Wait blocks until at least one record is available, the log is closed,
// or ctx is done.
func (l *Log) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.st.distance(l.read, l.write) > 0 {
		l.mu.Unlock()
		return nil
	}
	if l.ready == nil {
		l.ready = make(chan struct{})
	}
	ch := l.ready
	l.mu.Unlock()

	select {
	case <-ch:
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the log's counters.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{
		Name:      l.name,
		EntrySize: l.st.entrySize,
		Capacity:  l.st.capacity,
		Overruns:  l.overruns,
		Clients:   l.clients.Count(),
		Pushed:    l.pushed,
		Drained:   l.drained,
		Closed:    l.closed,
	}
	if !l.closed {
		s.Available = l.st.distance(l.read, l.write)
	}
	return s
}

// Close tears the log down, releasing its storage and waking waiters.
// Reads from streams still open afterwards fail with ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	l.st.buf = nil
	l.read, l.write = 0, 0
	if l.ready != nil {
		close(l.ready)
		l.ready = nil
	}
	l.log.Debug("trace log closed", "overruns", l.overruns, "pushed", l.pushed, "drained", l.drained)
	return nil
}
