// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package migrate upgrades persisted stores written by older versions.
//
// # Description
//
// Each Step is a named, idempotent, in-place rewrite of one store file.
// The Pipeline runs steps in name order (names start with the date the
// layout changed) on every invocation. A step that finds its file
// missing, unreadable as JSON, or already in the target layout does
// nothing.
//
// Steps only write when they changed something, and always through
// storage.WriteAtomic.
//
// # Thread Safety
//
// A Pipeline must not run concurrently with anything else that writes the
// same files.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

// Locations lists where each store may live, preferred path first.
type Locations struct {
	HistoryFiles []string
	OrdersFiles  []string
}

// Outcome describes what one step did.
type Outcome struct {
	// Path is the file the step inspected. Empty when none was found.
	Path string

	// Applied is true when the step rewrote the file.
	Applied bool

	// Reason explains a skip.
	Reason string
}

// Step is one layout upgrade.
type Step interface {
	// Name is a stable identifier that also fixes the step's position.
	Name() string

	// Apply upgrades the file if needed. Missing or malformed input is
	// not an error.
	Apply(ctx context.Context, loc Locations, logger *slog.Logger) (Outcome, error)
}

// Result pairs a step name with its outcome.
type Result struct {
	Step string
	Outcome
}

// DefaultSteps returns every known step.
func DefaultSteps() []Step {
	return []Step{
		HistoryStructured{},
		HistoryTrimValues{},
		HistoryByReference{},
		OrdersByReference{},
	}
}

// Pipeline runs steps in name order.
type Pipeline struct {
	steps  []Step
	loc    Locations
	logger *slog.Logger
}

// NewPipeline builds a pipeline over loc. With no steps it uses
// DefaultSteps.
func NewPipeline(loc Locations, logger *slog.Logger, steps ...Step) *Pipeline {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name() < sorted[j].Name()
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: sorted, loc: loc, logger: logger}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run applies every step once, in order.
//
// # Outputs
//
//   - []Result: One per step that ran.
//   - error: The first write failure or context cancellation. Steps after
//     a failure are not run.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(p.steps))
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		stepCtx, span := startStepSpan(ctx, step.Name())
		start := time.Now()
		outcome, err := step.Apply(stepCtx, p.loc, p.logger.With("step", step.Name()))
		setStepSpanResult(span, outcome, err)
		span.End()
		recordStepMetrics(ctx, step.Name(), time.Since(start), outcome, err)

		if err != nil {
			p.logger.Error("migration failed", "step", step.Name(), "path", outcome.Path, "error", err)
			return results, fmt.Errorf("migration %s: %w", step.Name(), err)
		}
		if outcome.Applied {
			p.logger.Info("migration applied", "step", step.Name(), "path", outcome.Path)
		} else {
			p.logger.Debug("migration skipped", "step", step.Name(), "reason", outcome.Reason)
		}
		results = append(results, Result{Step: step.Name(), Outcome: outcome})
	}
	return results, nil
}

// readDoc locates the first existing candidate and decodes it.
//
// doc is nil when no candidate exists or the file is not valid JSON, and
// reason then says which. err is set only for unexpected I/O failures.
func readDoc(candidates []string, logger *slog.Logger) (path string, doc any, reason string, err error) {
	path, found := storage.Locate(candidates...)
	if !found {
		return "", nil, "file not found", nil
	}
	data, err := storage.ReadJSON(path)
	if err != nil {
		if storage.IsLoadError(err) {
			logger.Debug("store unreadable, leaving it alone", "path", path, "error", err)
			return path, nil, "malformed JSON", nil
		}
		return path, nil, "", err
	}
	doc, err = orderedmap.Parse(data)
	if err != nil {
		return path, nil, "malformed JSON", nil
	}
	return path, doc, "", nil
}

func skipped(path, reason string) Outcome {
	return Outcome{Path: path, Reason: reason}
}
