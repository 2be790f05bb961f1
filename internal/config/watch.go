// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/boothworks/boothd/internal/log"
)

// Holder owns the current configuration snapshot and supports hot reload.
// Readers get a consistent copy; reloads re-run the loader and notify
// subscribers with the new snapshot.
type Holder struct {
	mu     sync.RWMutex
	cfg    AppConfig
	loader *Loader

	subMu sync.Mutex
	subs  []func(AppConfig)
}

// NewHolder creates a holder seeded with cfg.
func NewHolder(cfg AppConfig, loader *Loader) *Holder {
	return &Holder{cfg: cfg, loader: loader}
}

// Current returns a copy of the active configuration.
func (h *Holder) Current() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Subscribe registers fn to be called after every successful reload.
func (h *Holder) Subscribe(fn func(AppConfig)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subs = append(h.subs, fn)
}

// Reload re-runs the loader and swaps the snapshot. Invalid configurations
// are rejected and the previous snapshot stays active.
func (h *Holder) Reload() error {
	if h.loader == nil {
		return fmt.Errorf("config: holder has no loader")
	}
	cfg, err := h.loader.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: reload rejected: %w", err)
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()

	h.subMu.Lock()
	subs := make([]func(AppConfig), len(h.subs))
	copy(subs, h.subs)
	h.subMu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

// Watch reloads the configuration whenever the file at path changes.
// It watches the parent directory because editors and atomic writers
// replace the file instead of updating it in place. Blocks until ctx is done.
func (h *Holder) Watch(ctx context.Context, path string) error {
	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close config watcher")
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce bursts of events from a single save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				if err := h.Reload(); err != nil {
					logger.Error().Err(err).
						Str(log.FieldEvent, "config.reload_failed").
						Str(log.FieldPath, path).
						Msg("config reload failed, keeping previous snapshot")
					return
				}
				logger.Info().
					Str(log.FieldEvent, "config.reloaded").
					Str(log.FieldPath, path).
					Msg("configuration reloaded")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
