// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"fmt"
	"strings"
)

// Schema names a record layout.
type Schema string

const (
	SchemaFile      Schema = "file"
	SchemaPostCache Schema = "post_cache"
	SchemaProbe     Schema = "read_probe"
	SchemaWrite     Schema = "write_syscall"
)

// Schemas lists every known schema.
var Schemas = []Schema{SchemaFile, SchemaPostCache, SchemaProbe, SchemaWrite}

// ParseSchema resolves a schema name, case-insensitively.
func ParseSchema(s string) (Schema, error) {
	for _, sc := range Schemas {
		if strings.EqualFold(s, string(sc)) {
			return sc, nil
		}
	}
	return "", fmt.Errorf("records: unknown schema %q", s)
}

// New returns an empty record of the schema.
func (s Schema) New() (Record, error) {
	switch s {
	case SchemaFile:
		return &FileRecord{}, nil
	case SchemaPostCache:
		return &PostCacheRecord{}, nil
	case SchemaProbe:
		return &ProbeRecord{}, nil
	case SchemaWrite:
		return &WriteRecord{}, nil
	}
	return nil, fmt.Errorf("records: unknown schema %q", string(s))
}

// EntrySize returns the encoded record size, or 0 for an unknown schema.
func (s Schema) EntrySize() int {
	switch s {
	case SchemaFile:
		return FileRecordSize
	case SchemaPostCache:
		return PostCacheRecordSize
	case SchemaProbe:
		return ProbeRecordSize
	case SchemaWrite:
		return WriteRecordSize
	}
	return 0
}

// Decode parses one record of the schema from b.
func (s Schema) Decode(b []byte) (Record, error) {
	r, err := s.New()
	if err != nil {
		return nil, err
	}
	if err := r.Unmarshal(b); err != nil {
		return nil, err
	}
	return r, nil
}

// Encode writes ev into dst using the schema's layout. Fields the schema
// does not carry are dropped.
func (s Schema) Encode(ev *Event, dst []byte) error {
	switch s {
	case SchemaFile:
		r := FileRecord{
			PID: ev.PID, Major: ev.Major, Minor: ev.Minor, Inode: ev.Inode,
			Offset: ev.Offset, Count: ev.Size, Write: ev.Write,
		}
		return r.MarshalTo(dst)
	case SchemaPostCache:
		r := PostCacheRecord{
			PID: ev.PID, Major: ev.Major, Minor: ev.Minor, Inode: ev.Inode,
			Offset: ev.Offset, Bytes: ev.Size, Readahead: ev.Readahead, Write: ev.Write,
		}
		return r.MarshalTo(dst)
	case SchemaProbe:
		r := ProbeRecord{
			PID: ev.PID, Major: ev.Major, Minor: ev.Minor, Inode: ev.Inode,
			Offset: uint64(ev.Offset), Probe: ev.Probe,
		}
		return r.MarshalTo(dst)
	case SchemaWrite:
		r := WriteRecord{
			PID: ev.PID, Major: ev.Major, Minor: ev.Minor, Inode: ev.Inode,
			Offset: ev.Offset, Count: ev.Size,
		}
		return r.MarshalTo(dst)
	}
	return fmt.Errorf("records: unknown schema %q", string(s))
}
