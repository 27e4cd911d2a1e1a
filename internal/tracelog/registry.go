// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package tracelog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the logs of all running tracers, keyed by name.
type Registry struct {
	mu   sync.RWMutex
	logs map[string]*Log
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{logs: make(map[string]*Log)}
}

// Register adds l. Names must be unique.
func (r *Registry) Register(l *Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[l.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, l.Name())
	}
	r.logs[l.Name()] = l
	return nil
}

// Get returns the log registered under name.
func (r *Registry) Get(name string) (*Log, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[name]
	return l, ok
}

// List returns all logs sorted by name.
func (r *Registry) List() []*Log {
	r.mu.RLock()
	out := make([]*Log, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// CloseAll tears down and unregisters every log.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	logs := r.logs
	r.logs = make(map[string]*Log)
	r.mu.Unlock()

	var errs []error
	for _, l := range logs {
		if err := l.Close(); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
