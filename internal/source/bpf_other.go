// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package source

import (
	"context"
	"errors"
	"log/slog"
)

// BPF is only available on Linux.
type BPF struct{}

// NewBPF reports that BPF sources are unsupported on this platform.
func NewBPF(BPFConfig, *Emitter, *slog.Logger) (*BPF, error) {
	return nil, errors.New("bpf source: only supported on linux")
}

func (*BPF) Name() string { return "" }

func (*BPF) Run(context.Context) error { return nil }
