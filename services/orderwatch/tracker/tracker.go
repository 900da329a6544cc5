// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tracker runs one refresh: upgrade the stores, retrieve current
// orders, compare them with the cached ones and record what changed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/migrate"
	"github.com/AleutianAI/orderwatch/services/orderwatch/source"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

// Status codes reported in status mode.
const (
	StatusChanged   = 1
	StatusUnchanged = 0
	StatusUnknown   = -1
)

// ErrNoSource is returned by a non-cached Refresh without a Source.
var ErrNoSource = errors.New("tracker: no source configured")

// ConfirmFunc decides whether the first retrieved store is saved.
type ConfirmFunc func(ctx context.Context, store *entity.Store) (bool, error)

// Paths lists where each store may be read from, preferred path first.
// Stores are always written to the first path.
type Paths struct {
	Orders  []string
	History []string
}

// Config configures a Tracker.
type Config struct {
	Paths           Paths
	Pipeline        *migrate.Pipeline
	Source          source.Source
	Workers         int
	IgnoredPrefixes []string
	Confirm         ConfirmFunc
	Now             func() time.Time
	Logger          *slog.Logger
}

// Tracker runs refreshes. Create with New.
type Tracker struct {
	cfg Config
}

// New returns a Tracker. Missing Now, Logger and IgnoredPrefixes get
// defaults.
func New(cfg Config) *Tracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IgnoredPrefixes == nil {
		cfg.IgnoredPrefixes = history.DefaultIgnoredPrefixes
	}
	return &Tracker{cfg: cfg}
}

// Options selects the refresh mode.
type Options struct {
	// Cached skips retrieval and reports the cached store.
	Cached bool

	// StatusOnly suppresses the first-run confirmation.
	StatusOnly bool
}

// Result reports one refresh.
type Result struct {
	RunID string

	// Store is the store to display: the new one when retrieval produced
	// orders, otherwise the cached one.
	Store *entity.Store

	Changes        []diff.Tagged
	Grouped        *orderedmap.Map[[]diff.Change]
	StatusRelevant bool

	// FirstRun is set when nothing was cached before this run.
	FirstRun bool

	// KeptCached is set when retrieval returned no orders.
	KeptCached bool

	// Saved is set when the orders file was written.
	Saved bool

	// Status is the status-mode code.
	Status int
}

// Refresh runs one refresh.
//
// # Description
//
//  1. Run the migration pipeline.
//  2. Load the cached store; missing or malformed reads as empty.
//  3. In cached mode stop here.
//  4. Retrieve the current store. No orders keeps the cached data.
//  5. With nothing cached, save only if Confirm agrees.
//  6. Otherwise compare. On differences save the new store and append
//     one history entry per changed reference, stamped with today's
//     date. Without differences touch the orders file.
//
// # Outputs
//
//   - *Result: Never nil when error is nil.
//   - error: Migration, retrieval, confirmation or write failure.
func (t *Tracker) Refresh(ctx context.Context, opts Options) (res *Result, err error) {
	runID := uuid.NewString()
	logger := t.cfg.Logger.With("run_id", runID)
	ctx, span := startRefreshSpan(ctx, runID, opts.Cached)
	start := time.Now()
	defer func() {
		setRefreshSpanResult(span, res, err)
		span.End()
		recordRefreshMetrics(ctx, time.Since(start), res, err)
	}()

	if t.cfg.Pipeline != nil {
		if _, err := t.cfg.Pipeline.Run(ctx); err != nil {
			return nil, err
		}
	}

	old, err := entity.LoadOrEmpty(t.readPath(t.cfg.Paths.Orders), logger)
	if err != nil {
		return nil, err
	}

	res = &Result{RunID: runID, Store: old, Status: StatusUnknown}
	if old.Len() > 0 {
		res.Status = StatusUnchanged
	}

	if opts.Cached {
		logger.Debug("cached mode, skipping retrieval", "orders", old.Len())
		return res, nil
	}
	if t.cfg.Source == nil {
		return nil, ErrNoSource
	}

	current, err := source.Collect(ctx, t.cfg.Source, t.cfg.Workers, logger)
	if err != nil {
		return nil, err
	}
	if current.Len() == 0 {
		logger.Warn("source returned no orders, keeping cached data", "cached", old.Len())
		res.KeptCached = true
		return res, nil
	}
	res.Store = current

	if old.Len() == 0 {
		res.FirstRun = true
		if opts.StatusOnly || t.cfg.Confirm == nil {
			return res, nil
		}
		ok, err := t.cfg.Confirm(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("confirm first save: %w", err)
		}
		if ok {
			if err := entity.Save(t.writePath(t.cfg.Paths.Orders), current); err != nil {
				return nil, err
			}
			res.Saved = true
		}
		return res, nil
	}

	res.Changes = entity.CompareStores(old, current)
	if len(res.Changes) == 0 {
		now := t.cfg.Now()
		if err := os.Chtimes(t.readPath(t.cfg.Paths.Orders), now, now); err != nil {
			logger.Debug("could not touch orders file", "error", err)
		}
		return res, nil
	}

	res.StatusRelevant = history.StatusRelevant(untag(res.Changes), t.cfg.IgnoredPrefixes)
	if res.StatusRelevant {
		res.Status = StatusChanged
	}

	if err := entity.Save(t.writePath(t.cfg.Paths.Orders), current); err != nil {
		return nil, err
	}
	res.Saved = true

	hist, err := history.LoadOrEmpty(t.readPath(t.cfg.Paths.History), logger)
	if err != nil {
		return nil, err
	}
	res.Grouped = history.GroupByReference(res.Changes)
	written := hist.Record(res.Grouped, t.cfg.Now().Format(history.DateLayout))
	if err := history.Save(t.writePath(t.cfg.Paths.History), hist); err != nil {
		return nil, err
	}
	logger.Info("changes recorded",
		"changes", len(res.Changes),
		"references", written,
		"status_relevant", res.StatusRelevant,
	)
	return res, nil
}

// readPath returns the first existing candidate, or the first candidate.
func (t *Tracker) readPath(candidates []string) string {
	if path, ok := storage.Locate(candidates...); ok {
		return path
	}
	return t.writePath(candidates)
}

func (t *Tracker) writePath(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func untag(tagged []diff.Tagged) []diff.Change {
	out := make([]diff.Change, len(tagged))
	for i, tc := range tagged {
		out[i] = tc.Change
	}
	return out
}
