// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package records defines the fixed-size binary trace records emitted by
// the I/O tracers. All layouts are little-endian and match the structs the
// kernel-side tracers wrote, including their padding.
package records

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRecord is returned when a buffer is smaller than the record.
var ErrShortRecord = errors.New("records: buffer too short")

// Record is one trace entry of a fixed schema.
type Record interface {
	fmt.Stringer
	// Size is the encoded size in bytes.
	Size() int
	// MarshalTo encodes the record into b, which must hold Size bytes.
	MarshalTo(b []byte) error
	// Unmarshal decodes the record from b.
	Unmarshal(b []byte) error
}

// Event is an I/O operation observed by a source, before it is encoded
// into a schema-specific record.
type Event struct {
	PID       uint32
	Major     uint32
	Minor     uint32
	Inode     uint64
	Offset    int64
	Size      uint64
	Write     bool
	Readahead bool
	// Probe identifies which probe fired, for schemas that record it.
	Probe int32
}

var le = binary.LittleEndian

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

// FileRecordSize is the encoded size of a FileRecord.
const FileRecordSize = 48

// FileRecord is emitted by the syscall-level read/write tracer.
type FileRecord struct {
	PID    uint32
	Major  uint32
	Minor  uint32
	Inode  uint64
	Offset int64
	Count  uint64
	Write  bool
}

func (r *FileRecord) Size() int { return FileRecordSize }

func (r *FileRecord) MarshalTo(b []byte) error {
	if len(b) < FileRecordSize {
		return ErrShortRecord
	}
	clear(b[:FileRecordSize])
	le.PutUint32(b[0:], r.PID)
	le.PutUint32(b[4:], r.Major)
	le.PutUint32(b[8:], r.Minor)
	le.PutUint64(b[16:], r.Inode)
	le.PutUint64(b[24:], uint64(r.Offset))
	le.PutUint64(b[32:], r.Count)
	putBool(b[40:], r.Write)
	return nil
}

func (r *FileRecord) Unmarshal(b []byte) error {
	if len(b) < FileRecordSize {
		return ErrShortRecord
	}
	r.PID = le.Uint32(b[0:])
	r.Major = le.Uint32(b[4:])
	r.Minor = le.Uint32(b[8:])
	r.Inode = le.Uint64(b[16:])
	r.Offset = int64(le.Uint64(b[24:]))
	r.Count = le.Uint64(b[32:])
	r.Write = b[40] != 0
	return nil
}

func (r *FileRecord) String() string {
	return fmt.Sprintf("PID: %d major: %d minor: %d inode: %d offset: %d count: %d write: %t",
		r.PID, r.Major, r.Minor, r.Inode, r.Offset, r.Count, r.Write)
}

// PostCacheRecordSize is the encoded size of a PostCacheRecord.
const PostCacheRecordSize = 38

// PostCacheRecord is emitted by the page-cache tracer for read-ahead,
// block write submission and direct I/O. The layout is packed.
type PostCacheRecord struct {
	PID       uint32
	Major     uint32
	Minor     uint32
	Inode     uint64
	Offset    int64
	Bytes     uint64
	Readahead bool
	Write     bool
}

func (r *PostCacheRecord) Size() int { return PostCacheRecordSize }

func (r *PostCacheRecord) MarshalTo(b []byte) error {
	if len(b) < PostCacheRecordSize {
		return ErrShortRecord
	}
	le.PutUint32(b[0:], r.PID)
	le.PutUint32(b[4:], r.Major)
	le.PutUint32(b[8:], r.Minor)
	le.PutUint64(b[12:], r.Inode)
	le.PutUint64(b[20:], uint64(r.Offset))
	le.PutUint64(b[28:], r.Bytes)
	putBool(b[36:], r.Readahead)
	putBool(b[37:], r.Write)
	return nil
}

func (r *PostCacheRecord) Unmarshal(b []byte) error {
	if len(b) < PostCacheRecordSize {
		return ErrShortRecord
	}
	r.PID = le.Uint32(b[0:])
	r.Major = le.Uint32(b[4:])
	r.Minor = le.Uint32(b[8:])
	r.Inode = le.Uint64(b[12:])
	r.Offset = int64(le.Uint64(b[20:]))
	r.Bytes = le.Uint64(b[28:])
	r.Readahead = b[36] != 0
	r.Write = b[37] != 0
	return nil
}

func (r *PostCacheRecord) String() string {
	return fmt.Sprintf("PID: %d major: %d minor: %d inode: %d offset: %d size: %d is_readahead: %t write: %t",
		r.PID, r.Major, r.Minor, r.Inode, r.Offset, r.Bytes, r.Readahead, r.Write)
}

// ProbeRecordSize is the encoded size of a ProbeRecord.
const ProbeRecordSize = 40

// ProbeRecord is emitted by the page read probes; Probe tells which of
// the hooked functions fired.
type ProbeRecord struct {
	PID    uint32
	Major  uint32
	Minor  uint32
	Inode  uint64
	Offset uint64
	Probe  int32
}

func (r *ProbeRecord) Size() int { return ProbeRecordSize }

func (r *ProbeRecord) MarshalTo(b []byte) error {
	if len(b) < ProbeRecordSize {
		return ErrShortRecord
	}
	clear(b[:ProbeRecordSize])
	le.PutUint32(b[0:], r.PID)
	le.PutUint32(b[4:], r.Major)
	le.PutUint32(b[8:], r.Minor)
	le.PutUint64(b[16:], r.Inode)
	le.PutUint64(b[24:], r.Offset)
	le.PutUint32(b[32:], uint32(r.Probe))
	return nil
}

func (r *ProbeRecord) Unmarshal(b []byte) error {
	if len(b) < ProbeRecordSize {
		return ErrShortRecord
	}
	r.PID = le.Uint32(b[0:])
	r.Major = le.Uint32(b[4:])
	r.Minor = le.Uint32(b[8:])
	r.Inode = le.Uint64(b[16:])
	r.Offset = le.Uint64(b[24:])
	r.Probe = int32(le.Uint32(b[32:]))
	return nil
}

func (r *ProbeRecord) String() string {
	return fmt.Sprintf("kp: %d PID: %d major: %d minor: %d inode: %d offset: %d",
		r.Probe, r.PID, r.Major, r.Minor, r.Inode, r.Offset)
}

// WriteRecordSize is the encoded size of a WriteRecord.
const WriteRecordSize = 40

// WriteRecord is emitted by the write syscall tracer.
type WriteRecord struct {
	PID    uint32
	Major  uint32
	Minor  uint32
	Inode  uint64
	Offset int64
	Count  uint64
}

func (r *WriteRecord) Size() int { return WriteRecordSize }

func (r *WriteRecord) MarshalTo(b []byte) error {
	if len(b) < WriteRecordSize {
		return ErrShortRecord
	}
	clear(b[:WriteRecordSize])
	le.PutUint32(b[0:], r.PID)
	le.PutUint32(b[4:], r.Major)
	le.PutUint32(b[8:], r.Minor)
	le.PutUint64(b[16:], r.Inode)
	le.PutUint64(b[24:], uint64(r.Offset))
	le.PutUint64(b[32:], r.Count)
	return nil
}

func (r *WriteRecord) Unmarshal(b []byte) error {
	if len(b) < WriteRecordSize {
		return ErrShortRecord
	}
	r.PID = le.Uint32(b[0:])
	r.Major = le.Uint32(b[4:])
	r.Minor = le.Uint32(b[8:])
	r.Inode = le.Uint64(b[16:])
	r.Offset = int64(le.Uint64(b[24:]))
	r.Count = le.Uint64(b[32:])
	return nil
}

func (r *WriteRecord) String() string {
	return fmt.Sprintf("PID: %d major: %d minor: %d inode: %d offset: %d count: %d",
		r.PID, r.Major, r.Minor, r.Inode, r.Offset, r.Count)
}
