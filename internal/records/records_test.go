// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_EntrySizeMatchesRecord(t *testing.T) {
	for _, s := range Schemas {
		r, err := s.New()
		require.NoError(t, err)
		assert.Equal(t, r.Size(), s.EntrySize(), string(s))
	}
	assert.Zero(t, Schema("nope").EntrySize())
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema("POST_CACHE")
	require.NoError(t, err)
	assert.Equal(t, SchemaPostCache, s)

	_, err = ParseSchema("ext4")
	assert.Error(t, err)
}

func TestPostCacheRecord_PackedLayout(t *testing.T) {
	r := PostCacheRecord{
		PID: 7, Major: 8, Minor: 1, Inode: 0x1122334455667788,
		Offset: -4096, Bytes: 131072, Readahead: true, Write: false,
	}
	b := make([]byte, PostCacheRecordSize)
	require.NoError(t, r.MarshalTo(b))

	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(b[0:]))
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(b[12:]))
	assert.Equal(t, int64(-4096), int64(binary.LittleEndian.Uint64(b[20:])))
	assert.Equal(t, byte(1), b[36])
	assert.Equal(t, byte(0), b[37])

	var got PostCacheRecord
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, r, got)
}

func TestFileRecord_PaddingIsZeroed(t *testing.T) {
	b := make([]byte, FileRecordSize)
	for i := range b {
		b[i] = 0xff
	}
	r := FileRecord{PID: 1, Major: 8, Minor: 1, Inode: 2, Offset: 3, Count: 4, Write: true}
	require.NoError(t, r.MarshalTo(b))
	assert.Equal(t, []byte{0, 0, 0, 0}, b[12:16])
	assert.Equal(t, byte(1), b[40])
	assert.Equal(t, make([]byte, 7), b[41:48])
}

func TestSchema_EncodeDecode(t *testing.T) {
	ev := &Event{
		PID: 42, Major: 8, Minor: 1, Inode: 99, Offset: 8192,
		Size: 4096, Write: true, Readahead: true, Probe: 2,
	}
	tests := []struct {
		schema Schema
		want   Record
	}{
		{SchemaFile, &FileRecord{PID: 42, Major: 8, Minor: 1, Inode: 99, Offset: 8192, Count: 4096, Write: true}},
		{SchemaPostCache, &PostCacheRecord{PID: 42, Major: 8, Minor: 1, Inode: 99, Offset: 8192, Bytes: 4096, Readahead: true, Write: true}},
		{SchemaProbe, &ProbeRecord{PID: 42, Major: 8, Minor: 1, Inode: 99, Offset: 8192, Probe: 2}},
		{SchemaWrite, &WriteRecord{PID: 42, Major: 8, Minor: 1, Inode: 99, Offset: 8192, Count: 4096}},
	}
	for _, tt := range tests {
		t.Run(string(tt.schema), func(t *testing.T) {
			b := make([]byte, tt.schema.EntrySize())
			require.NoError(t, tt.schema.Encode(ev, b))
			got, err := tt.schema.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, got.String(), "PID: 42")
		})
	}
}

func TestShortBuffers(t *testing.T) {
	for _, s := range Schemas {
		r, err := s.New()
		require.NoError(t, err)
		short := make([]byte, s.EntrySize()-1)
		assert.ErrorIs(t, r.MarshalTo(short), ErrShortRecord, string(s))
		assert.ErrorIs(t, r.Unmarshal(short), ErrShortRecord, string(s))
	}
}

func TestKernelDev(t *testing.T) {
	major, minor := SplitKernelDev(MakeKernelDev(259, 3))
	assert.Equal(t, uint32(259), major)
	assert.Equal(t, uint32(3), minor)

	major, minor = SplitKernelDev(8<<20 | 1)
	assert.Equal(t, uint32(8), major)
	assert.Equal(t, uint32(1), minor)
}

func TestDeviceOf(t *testing.T) {
	if runtime.GOOS != "linux" {
		_, _, err := DeviceOf("/")
		assert.Error(t, err)
		return
	}
	_, _, err := DeviceOf(t.TempDir())
	require.NoError(t, err)

	_, _, err = DeviceOf("/does/not/exist")
	assert.Error(t, err)
}
