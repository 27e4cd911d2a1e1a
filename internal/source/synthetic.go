// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/platformbuilds/iotrace/internal/records"
)

const syntheticTick = 10 * time.Millisecond

// SyntheticConfig configures a Synthetic source.
type SyntheticConfig struct {
	// Rate is the number of events generated per second.
	Rate int `yaml:"rate"`

	// Device is the device the generated I/O targets.
	Device DeviceFilter `yaml:"device"`

	// Files is the number of distinct inodes written to.
	Files int `yaml:"files"`
}

// Synthetic generates random block-aligned I/O, like a random-write
// benchmark running against one device. It is used for demos and load tests.
type Synthetic struct {
	cfg SyntheticConfig
	em  *Emitter
	rnd *rand.Rand
}

// NewSynthetic returns a synthetic source emitting through em.
func NewSynthetic(cfg SyntheticConfig, em *Emitter) *Synthetic {
	if cfg.Rate <= 0 {
		cfg.Rate = 100
	}
	if cfg.Files <= 0 {
		cfg.Files = 16
	}
	if cfg.Device.Major == 0 {
		cfg.Device = DeviceFilter{Major: 8, Minor: 1}
	}
	return &Synthetic{
		cfg: cfg,
		em:  em,
		rnd: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x10)),
	}
}

// Name returns the tracer name.
func (s *Synthetic) Name() string { return s.em.Name() }

// Run generates events until ctx is done.
func (s *Synthetic) Run(ctx context.Context) error {
	perTick := float64(s.cfg.Rate) * syntheticTick.Seconds()
	t := time.NewTicker(syntheticTick)
	defer t.Stop()

	var carry float64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			carry += perTick
			n := int(carry)
			carry -= float64(n)
			for i := 0; i < n; i++ {
				s.em.Emit(s.build)
			}
		}
	}
}

func (s *Synthetic) build(ev *records.Event) bool {
	const block = 4096
	ev.PID = 1000 + s.rnd.Uint32N(8)
	ev.Major = s.cfg.Device.Major
	ev.Minor = s.cfg.Device.Minor
	ev.Inode = 12 + s.rnd.Uint64N(uint64(s.cfg.Files))
	ev.Offset = int64(s.rnd.Uint64N(1<<18)) * block
	ev.Size = block * (1 + s.rnd.Uint64N(32))
	ev.Write = s.rnd.IntN(2) == 0
	ev.Readahead = !ev.Write && s.rnd.IntN(4) == 0
	ev.Probe = 1 + s.rnd.Int32N(2)
	return true
}
