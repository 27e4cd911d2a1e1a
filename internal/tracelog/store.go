// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"errors"
	"fmt"
	"math"
)

// maxStoreBytes caps a single log's backing storage.
const maxStoreBytes = 1 << 30

// store is the raw circular storage behind a Log. It holds capacity
// records of entrySize bytes each and knows only index arithmetic;
// callers provide synchronization.
type store struct {
	buf       []byte
	entrySize int
	capacity  int
}

func newStore(entrySize, capacity int) (*store, error) {
	if entrySize <= 0 {
		return nil, fmt.Errorf("invalid entry size %d", entrySize)
	}
	if capacity < 2 {
		// read == write means empty, so one slot is always unusable
		return nil, fmt.Errorf("invalid capacity %d: need at least 2 slots", capacity)
	}
	if capacity > math.MaxInt/entrySize || entrySize*capacity > maxStoreBytes {
		return nil, errors.New("storage size exceeds limit")
	}
	return &store{
		buf:       make([]byte, entrySize*capacity),
		entrySize: entrySize,
		capacity:  capacity,
	}, nil
}

func (s *store) slotOffset(i int) int { return i * s.entrySize }

func (s *store) next(i, step int) int { return (i + step) % s.capacity }

func (s *store) slot(i int) []byte {
	off := s.slotOffset(i)
	return s.buf[off : off+s.entrySize]
}

// put copies one record into slot i.
func (s *store) put(i int, rec []byte) {
	copy(s.slot(i), rec)
}

// copyOut copies count records starting at slot from into dst, which must
// hold count*entrySize bytes. A span crossing the end of storage is split
// into the tail segment and the remainder from slot 0.
func (s *store) copyOut(from, count int, dst []byte) {
	if count <= 0 {
		return
	}
	first := count
	if from+count > s.capacity {
		first = s.capacity - from
	}
	n := copy(dst, s.buf[s.slotOffset(from):s.slotOffset(from+first)])
	if rest := count - first; rest > 0 {
		copy(dst[n:], s.buf[:s.slotOffset(rest)])
	}
}

// distance is the number of slots from read forward to write.
func (s *store) distance(read, write int) int {
	d := write - read
	if d < 0 {
		d += s.capacity
	}
	return d
}
