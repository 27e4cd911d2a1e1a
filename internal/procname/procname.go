// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package procname resolves process ids found in trace records to their
// command names.
package procname

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/procfs"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProcPath  = procfs.DefaultMountPoint
	DefaultCacheSize = 4096
	DefaultCacheTTL  = 30 * time.Second
)

// Config holds resolver configuration
type Config struct {
	ProcPath  string
	CacheSize int
	CacheTTL  time.Duration
}

// Resolver maps pids to command names. Pids recycle, so entries expire
// after CacheTTL. Unknown or exited pids resolve to "" and are cached too.
type Resolver struct {
	fs    procfs.FS
	cache *expirable.LRU[uint32, string]
	sf    singleflight.Group
}

// New returns a resolver reading from cfg.ProcPath.
func New(cfg Config) (*Resolver, error) {
	if cfg.ProcPath == "" {
		cfg.ProcPath = DefaultProcPath
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	fs, err := procfs.NewFS(cfg.ProcPath)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		fs:    fs,
		cache: expirable.NewLRU[uint32, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}, nil
}

// Name returns the command name of pid.
func (r *Resolver) Name(pid uint32) string {
	if name, ok := r.cache.Get(pid); ok {
		return name
	}
	v, _, _ := r.sf.Do(strconv.FormatUint(uint64(pid), 10), func() (any, error) {
		name := r.lookup(pid)
		r.cache.Add(pid, name)
		return name, nil
	})
	return v.(string)
}

func (r *Resolver) lookup(pid uint32) string {
	p, err := r.fs.Proc(int(pid))
	if err != nil {
		return ""
	}
	comm, err := p.Comm()
	if err != nil {
		return ""
	}
	return comm
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int { return r.cache.Len() }
