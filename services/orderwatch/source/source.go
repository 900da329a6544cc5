// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package source retrieves current order state. Collect turns a Source
// into a fresh entity store.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

var (
	// ErrEmptyDetails is returned when a detail payload has no tasks.
	ErrEmptyDetails = errors.New("empty detail payload")

	// ErrInvalidReference is returned for references that cannot name a
	// detail file.
	ErrInvalidReference = errors.New("invalid reference number")

	// ErrUnexpectedShape is returned when an orders document is neither a
	// list nor an object with a "response" list.
	ErrUnexpectedShape = errors.New("unexpected orders document shape")
)

// Summary is one lightweight order record as listed by the source.
type Summary struct {
	Reference string
	Fields    *orderedmap.Map[any]
}

// Source supplies order summaries and per-order detail payloads.
type Source interface {
	Orders(ctx context.Context) ([]Summary, error)
	Details(ctx context.Context, ref string) (*orderedmap.Map[any], error)
}

// DefaultWorkers bounds concurrent detail retrieval in Collect.
const DefaultWorkers = 4

// Collect retrieves every order and its details and builds an entity
// store keyed by reference, in summary order.
//
// # Description
//
// Details are fetched concurrently with at most workers in flight
// (DefaultWorkers when workers < 1). The first failure cancels the rest
// and is returned. A payload without tasks fails the whole collection
// with ErrEmptyDetails; a partial store would read as removed orders on
// the next comparison.
//
// # Outputs
//
//   - *entity.Store: {"order": summary, "details": payload} per reference.
//   - error: Retrieval failure, wrapped with the reference.
func Collect(ctx context.Context, src Source, workers int, logger *slog.Logger) (*entity.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = DefaultWorkers
	}

	summaries, err := src.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve orders: %w", err)
	}
	logger.Debug("retrieved order summaries", "count", len(summaries))

	details := make([]*orderedmap.Map[any], len(summaries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sum := range summaries {
		g.Go(func() error {
			payload, err := src.Details(gCtx, sum.Reference)
			if err != nil {
				return fmt.Errorf("retrieve details for %s: %w", sum.Reference, err)
			}
			if tasks := orderedmap.DigMap(payload, "tasks"); tasks.Len() == 0 {
				return fmt.Errorf("retrieve details for %s: %w", sum.Reference, ErrEmptyDetails)
			}
			details[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store := entity.NewStore()
	for i, sum := range summaries {
		snap := orderedmap.New[any]()
		snap.Set("order", sum.Fields)
		snap.Set("details", details[i])
		store.Set(sum.Reference, snap)
	}
	return store, nil
}

// DirSource reads an export of the order API from a directory:
//
//	<Dir>/orders.json          list of summaries, or {"response": [...]}
//	<Dir>/details/<ref>.json   detail payload per reference
type DirSource struct {
	Dir    string
	Logger *slog.Logger
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{Dir: dir, Logger: logger}
}

// Orders implements Source. Summaries without a reference number are
// skipped.
func (s *DirSource) Orders(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := readDocument(filepath.Join(s.Dir, "orders.json"))
	if err != nil {
		return nil, err
	}

	items, ok := doc.([]any)
	if !ok {
		obj, isObj := doc.(*orderedmap.Map[any])
		raw, _ := obj.Get("response")
		if items, ok = raw.([]any); !isObj || !ok {
			return nil, ErrUnexpectedShape
		}
	}

	out := make([]Summary, 0, len(items))
	for i, item := range items {
		fields, ok := item.(*orderedmap.Map[any])
		if !ok {
			s.Logger.Warn("skipping non-object order summary", "index", i)
			continue
		}
		ref := entity.ExtractReference(fields)
		if ref == "" {
			s.Logger.Warn("skipping order summary without reference", "index", i)
			continue
		}
		out = append(out, Summary{Reference: ref, Fields: fields})
	}
	return out, nil
}

// Details implements Source.
func (s *DirSource) Details(ctx context.Context, ref string) (*orderedmap.Map[any], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref == "" || strings.ContainsAny(ref, `/\`) || ref == "." || ref == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	doc, err := readDocument(filepath.Join(s.Dir, "details", ref+".json"))
	if err != nil {
		return nil, err
	}
	payload, ok := doc.(*orderedmap.Map[any])
	if !ok {
		return nil, ErrEmptyDetails
	}
	return payload, nil
}

func readDocument(path string) (any, error) {
	data, err := storage.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	doc, err := orderedmap.Parse(data)
	if err != nil {
		return nil, &storage.LoadError{Path: path, Kind: storage.ParseError, Err: err}
	}
	return doc, nil
}
