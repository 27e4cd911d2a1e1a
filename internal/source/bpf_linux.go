// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"

	"github.com/platformbuilds/iotrace/internal/records"
)

// rawReader abstracts the ring buffer and perf buffer readers.
type rawReader interface {
	// next returns the next sample, or the number of samples the kernel lost.
	next() (sample []byte, lost uint64, err error)
	Close() error
}

type ringbufReader struct{ r *ringbuf.Reader }

func (r ringbufReader) next() ([]byte, uint64, error) {
	rec, err := r.r.Read()
	if errors.Is(err, ringbuf.ErrClosed) {
		return nil, 0, errReaderClosed
	}
	return rec.RawSample, 0, err
}

func (r ringbufReader) Close() error { return r.r.Close() }

type perfReader struct{ r *perf.Reader }

func (r perfReader) next() ([]byte, uint64, error) {
	rec, err := r.r.Read()
	if errors.Is(err, perf.ErrClosed) {
		return nil, 0, errReaderClosed
	}
	return rec.RawSample, rec.LostSamples, err
}

func (r perfReader) Close() error { return r.r.Close() }

var errReaderClosed = errors.New("reader closed")

var memlockOnce sync.Once

// BPF reads I/O events submitted by kernel probes through a pinned BPF
// ring buffer or perf event array and emits them as records.
type BPF struct {
	cfg BPFConfig
	em  *Emitter
	log *slog.Logger

	m      *ebpf.Map
	reader rawReader
	once   sync.Once
}

// NewBPF opens the pinned map at cfg.PinPath.
func NewBPF(cfg BPFConfig, em *Emitter, log *slog.Logger) (*BPF, error) {
	if cfg.PinPath == "" {
		return nil, errors.New("bpf source: pin_path is required")
	}
	if cfg.PerCPUBufferSize <= 0 {
		cfg.PerCPUBufferSize = DefaultBPFConfig().PerCPUBufferSize
	}

	// Kernels before 5.11 charge map memory against RLIMIT_MEMLOCK.
	memlockOnce.Do(func() {
		if err := rlimit.RemoveMemlock(); err != nil {
			log.Warn("failed to remove memlock limit", "error", err)
		}
	})

	m, err := ebpf.LoadPinnedMap(cfg.PinPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned map %s: %w", cfg.PinPath, err)
	}

	var reader rawReader
	switch m.Type() {
	case ebpf.RingBuf:
		r, err := ringbuf.NewReader(m)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create ring buffer reader: %w", err)
		}
		reader = ringbufReader{r}
	case ebpf.PerfEventArray:
		r, err := perf.NewReader(m, cfg.PerCPUBufferSize)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create perf buffer reader: %w", err)
		}
		reader = perfReader{r}
	default:
		m.Close()
		return nil, fmt.Errorf("bpf source: unsupported map type %s", m.Type())
	}

	return &BPF{
		cfg:    cfg,
		em:     em,
		log:    log.With("component", "bpf_source", "tracer", em.Name(), "map", cfg.PinPath),
		m:      m,
		reader: reader,
	}, nil
}

// Name returns the tracer name.
func (b *BPF) Name() string { return b.em.Name() }

// Run reads kernel events until ctx is done.
func (b *BPF) Run(ctx context.Context) error {
	defer b.close()

	stop := context.AfterFunc(ctx, b.close)
	defer stop()

	b.log.Info("starting bpf source")
	var lost uint64
	for {
		raw, n, err := b.reader.next()
		if err != nil {
			if errors.Is(err, errReaderClosed) {
				b.log.Info("bpf source stopped", "lost_samples", lost)
				return nil
			}
			b.log.Debug("bpf read error", "error", err)
			continue
		}
		if n > 0 {
			lost += n
			b.log.Debug("kernel lost samples", "count", n)
			continue
		}
		b.em.Emit(func(ev *records.Event) bool {
			if err := decodeKernelEvent(raw, ev); err != nil {
				b.em.fail("decode failed", err)
				return false
			}
			return true
		})
	}
}

func (b *BPF) close() {
	b.once.Do(func() {
		if err := b.reader.Close(); err != nil {
			b.log.Warn("error closing bpf reader", "error", err)
		}
		if err := b.m.Close(); err != nil {
			b.log.Warn("error closing bpf map", "error", err)
		}
	})
}
