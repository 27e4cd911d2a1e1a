// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChangeHandler is called with the new configuration after the file changed
// and parsed cleanly.
type ChangeHandler func(newConfig *Config) error

// Watcher polls a configuration file and notifies handlers of changes.
type Watcher struct {
	path     string
	interval time.Duration
	log      *slog.Logger

	mu           sync.RWMutex
	handlers     []ChangeHandler
	currentHash  [32]byte
	lastModified time.Time

	// Lifecycle
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a new configuration watcher
func NewWatcher(path string, interval time.Duration, log *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid poll interval %s", interval)
	}

	// Resolve absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w := &Watcher{
		path:     absPath,
		interval: interval,
		log:      log.With("component", "config_watcher"),
		stopCh:   make(chan struct{}),
	}

	// Calculate initial hash
	if err := w.updateHash(); err != nil {
		return nil, fmt.Errorf("failed to read initial config: %w", err)
	}

	return w, nil
}

// Start begins watching the configuration file
func (w *Watcher) Start(ctx context.Context) {
	w.log.Info("starting config watcher", "path", w.path, "interval", w.interval)

	w.wg.Add(1)
	go w.watch(ctx)
}

// Stop halts the configuration watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info("stopping config watcher")
		close(w.stopCh)
	})
	w.wg.Wait()
}

// OnChange registers a handler to be called when config changes
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Path returns the watched config file path
func (w *Watcher) Path() string {
	return w.path
}

// watch is the main polling loop
func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.checkForChanges(); err != nil {
				w.log.Warn("error checking for config changes", "error", err)
			}
		}
	}
}

// checkForChanges checks if the config file has changed
func (w *Watcher) checkForChanges() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	w.mu.RLock()
	unchanged := info.ModTime().Equal(w.lastModified)
	w.mu.RUnlock()
	if unchanged {
		return nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	newHash := sha256.Sum256(data)

	w.mu.Lock()
	hashChanged := newHash != w.currentHash
	w.currentHash = newHash
	w.lastModified = info.ModTime()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	if !hashChanged {
		return nil
	}

	w.log.Info("config file changed, reloading")

	newConfig, err := Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse new config: %w", err)
	}

	for _, handler := range handlers {
		if err := handler(newConfig); err != nil {
			w.log.Warn("config change handler failed", "error", err)
		}
	}

	return nil
}

// updateHash reads and hashes the current config file
func (w *Watcher) updateHash() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.currentHash = sha256.Sum256(data)
	w.lastModified = info.ModTime()
	w.mu.Unlock()

	return nil
}

// Reload forces an immediate check of the config file
func (w *Watcher) Reload() error {
	return w.checkForChanges()
}

// CurrentHash returns the current config file hash
func (w *Watcher) CurrentHash() [32]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentHash
}
