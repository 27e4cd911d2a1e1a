// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Arithmetic(t *testing.T) {
	s, err := newStore(4, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, s.slotOffset(0))
	assert.Equal(t, 12, s.slotOffset(3))
	assert.Equal(t, 1, s.next(0, 1))
	assert.Equal(t, 0, s.next(4, 1))
	assert.Equal(t, 2, s.next(3, 4))
	assert.Equal(t, 3, s.distance(1, 4))
	assert.Equal(t, 3, s.distance(4, 2))
	assert.Equal(t, 0, s.distance(2, 2))
}

func TestStore_CopyOutSplitsAtEnd(t *testing.T) {
	s, err := newStore(2, 4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		s.put(i, []byte{byte(i), byte(i)})
	}

	dst := make([]byte, 6)
	s.copyOut(3, 3, dst)
	assert.Equal(t, []byte{3, 3, 0, 0, 1, 1}, dst)

	dst = make([]byte, 4)
	s.copyOut(1, 2, dst)
	assert.Equal(t, []byte{1, 1, 2, 2}, dst)

	dst = []byte{9, 9}
	s.copyOut(0, 0, dst)
	assert.Equal(t, []byte{9, 9}, dst)
}
