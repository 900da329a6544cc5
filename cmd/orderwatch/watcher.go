// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches the create+rename pair of an atomic write.
const defaultDebounce = 250 * time.Millisecond

// storeWatcher reports changes to named files in a set of directories.
//
// Directories are watched rather than files because stores are replaced
// by rename, which drops a watch on the old inode.
type storeWatcher struct {
	watcher  *fsnotify.Watcher
	names    map[string]bool
	debounce time.Duration
	logger   *slog.Logger
}

// newStoreWatcher starts watching dirs. Directories that cannot be
// watched are logged and skipped; at least one must succeed.
func newStoreWatcher(dirs, names []string, debounce time.Duration, logger *slog.Logger) (*storeWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	watched := 0
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			logger.Debug("directory not watched", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = w.Close()
		return nil, fmt.Errorf("none of %v can be watched", dirs)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	return &storeWatcher{watcher: w, names: wanted, debounce: debounce, logger: logger}, nil
}

// Run calls onChange once per burst of relevant events until ctx is done.
// It closes the watcher on return.
func (s *storeWatcher) Run(ctx context.Context, onChange func()) error {
	defer s.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			s.logger.Debug("store changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("store watcher error", "error", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

func (s *storeWatcher) relevant(event fsnotify.Event) bool {
	if !s.names[filepath.Base(event.Name)] {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
