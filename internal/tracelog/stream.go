// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"context"
	"sync/atomic"
)

// Stream is a consumer handle on a Log. While a stream is open the log
// counts it as an attached client, which enables producers.
//
// All streams of a log share its single read cursor: records read through
// one stream are not seen by another.
type Stream struct {
	l      *Log
	closed atomic.Bool
}

// Open attaches a new consumer to the log.
func (l *Log) Open() (*Stream, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	n := l.clients.Attach()
	l.log.Debug("added reader", "clients", n)
	return &Stream{l: l}, nil
}

// Read drains as many whole records as fit in p. It never blocks: when
// nothing is available it returns 0 and a nil error, and the caller is
// expected to retry later or use Wait. The byte count is always a
// multiple of the log's entry size.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	size := s.l.EntrySize()
	if len(p) < size {
		return 0, ErrShortBuffer
	}
	n, err := s.l.Drain(p, len(p)/size)
	return n * size, err
}

// Wait blocks until the log has records to read or ctx is done.
func (s *Stream) Wait(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.l.Wait(ctx)
}

// EntrySize returns the record size of the underlying log.
func (s *Stream) EntrySize() int { return s.l.EntrySize() }

// Log returns the log the stream reads from.
func (s *Stream) Log() *Log { return s.l }

// Close detaches the consumer. Closing twice returns ErrNotAttached.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrNotAttached
	}
	n, err := s.l.clients.Detach()
	if err != nil {
		return err
	}
	s.l.log.Debug("removed reader", "clients", n)
	return nil
}
