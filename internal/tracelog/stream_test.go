// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClients_AttachDetachSymmetry(t *testing.T) {
	var c Clients
	assert.False(t, c.HasClients())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Attach()
		}()
	}
	wg.Wait()
	assert.Equal(t, n, c.Count())
	assert.True(t, c.HasClients())

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Detach()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, c.Count())
	assert.False(t, c.HasClients())

	got, err := c.Detach()
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.Zero(t, got)
	assert.Equal(t, 0, c.Count())
}

func TestClients_AttachReturnsCount(t *testing.T) {
	var c Clients
	assert.Equal(t, 1, c.Attach())
	assert.Equal(t, 2, c.Attach())
	n, err := c.Detach()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStream_OpenReadClose(t *testing.T) {
	l := newTestLog(t, 8, 8)
	assert.False(t, l.HasClients())

	s, err := l.Open()
	require.NoError(t, err)
	assert.True(t, l.HasClients())
	assert.Equal(t, 1, l.Clients())

	for _, c := range []byte("abc") {
		require.NoError(t, l.Push(rec(c, 8)))
	}

	// 20 bytes hold two whole records; the remainder is never split
	buf := make([]byte, 20)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, append(rec('a', 8), rec('b', 8)...), buf[:n])

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Close())
	assert.False(t, l.HasClients())
	assert.ErrorIs(t, s.Close(), ErrNotAttached)
	_, err = s.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStream_ShortBuffer(t *testing.T) {
	l := newTestLog(t, 8, 8)
	s, err := l.Open()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, l.Push(rec('a', 8)))
	n, err := s.Read(make([]byte, 7))
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Zero(t, n)
	assert.Equal(t, 1, l.Available())
}

func TestStream_SharedCursor(t *testing.T) {
	l := newTestLog(t, 8, 16)
	s1, err := l.Open()
	require.NoError(t, err)
	defer s1.Close()
	s2, err := l.Open()
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, 2, l.Clients())

	for i := 0; i < 4; i++ {
		require.NoError(t, l.Push(seqRec(uint64(i))))
	}

	buf := make([]byte, 16)
	n1, err := s1.Read(buf)
	require.NoError(t, err)
	n2, err := s2.Read(make([]byte, 64))
	require.NoError(t, err)

	// the two readers partition the stream
	assert.Equal(t, 16, n1)
	assert.Equal(t, 16, n2)
	assert.Zero(t, l.Available())
}

func TestStream_ReadAfterLogClosed(t *testing.T) {
	l := newTestLog(t, 8, 4)
	s, err := l.Open()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = s.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Wait(context.Background()), ErrClosed)
	require.NoError(t, s.Close())
	assert.Equal(t, 0, l.Clients())
}

func TestStream_Wait(t *testing.T) {
	l := newTestLog(t, 8, 4)
	s, err := l.Open()
	require.NoError(t, err)
	defer s.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = l.Push(rec('x', 8))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	n, err := s.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
