// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/platformbuilds/iotrace/internal/records"
)

// kernelEventSize is the size of the event the BPF programs submit:
//
//	struct io_event {
//	    u32 pid;
//	    u32 dev;     /* kernel-internal dev_t */
//	    u64 inode;
//	    s64 offset;
//	    u64 size;
//	    u32 flags;   /* kernelFlag* */
//	    s32 probe;
//	};
const kernelEventSize = 40

const (
	kernelFlagWrite     = 1 << 0
	kernelFlagReadahead = 1 << 1
)

var errShortEvent = errors.New("kernel event too short")

// BPFConfig configures a BPF source.
type BPFConfig struct {
	// PinPath is the bpffs path of the pinned ring buffer or perf event array.
	PinPath string `yaml:"pin_path"`

	// PerCPUBufferSize sizes each per-CPU buffer when the map is a perf
	// event array.
	PerCPUBufferSize int `yaml:"per_cpu_buffer_size"`
}

// DefaultBPFConfig returns default configuration
func DefaultBPFConfig() BPFConfig {
	return BPFConfig{
		PerCPUBufferSize: os.Getpagesize() * 16,
	}
}

// decodeKernelEvent fills ev from a raw BPF sample.
func decodeKernelEvent(raw []byte, ev *records.Event) error {
	if len(raw) < kernelEventSize {
		return errShortEvent
	}
	le := binary.LittleEndian
	ev.PID = le.Uint32(raw[0:])
	ev.Major, ev.Minor = records.SplitKernelDev(le.Uint32(raw[4:]))
	ev.Inode = le.Uint64(raw[8:])
	ev.Offset = int64(le.Uint64(raw[16:]))
	ev.Size = le.Uint64(raw[24:])
	flags := le.Uint32(raw[32:])
	ev.Write = flags&kernelFlagWrite != 0
	ev.Readahead = flags&kernelFlagReadahead != 0
	ev.Probe = int32(le.Uint32(raw[36:]))
	return nil
}
