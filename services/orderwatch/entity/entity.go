// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package entity holds the current snapshot of every tracked order.
//
// An entity is a JSON object shaped {"order": {...}, "details": {...}}.
// The Store maps each entity's reference number to its snapshot and keeps
// the order in which references were first seen.
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

// Snapshot is one entity's state.
type Snapshot = diff.Snapshot

// Store maps reference numbers to snapshots in first-seen order.
type Store = orderedmap.Map[*Snapshot]

// NewStore returns an empty Store.
func NewStore() *Store {
	return orderedmap.New[*Snapshot]()
}

// ExtractReference returns the entity's reference number.
//
// The nested order.referenceNumber wins when it is set; otherwise the
// top-level referenceNumber is used. Numbers are rendered without a
// fractional part. Returns "" when neither is present or both are empty.
func ExtractReference(v any) string {
	s, ok := v.(*Snapshot)
	if !ok || s == nil {
		return ""
	}
	if order, ok := s.Get("order"); ok {
		if orderMap, isMap := order.(*Snapshot); isMap {
			raw, _ := orderMap.Get("referenceNumber")
			if ref := referenceString(raw); ref != "" {
				return ref
			}
		}
	}
	raw, _ := s.Get("referenceNumber")
	return referenceString(raw)
}

func referenceString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "True"
		}
	}
	return ""
}

// Normalize converts a decoded orders document into a Store.
//
// # Description
//
// Accepts the two persisted shapes:
//
//   - object: each value is keyed by its extracted reference, falling back
//     to the original key when it has none.
//   - list: only entries with an extractable reference are kept.
//
// Non-object entries are skipped. Anything else yields an empty Store.
// When two entries share a reference the later one wins and keeps the
// earlier position.
func Normalize(raw any) *Store {
	store := NewStore()
	switch doc := raw.(type) {
	case *orderedmap.Map[any]:
		doc.Range(func(key string, value any) bool {
			snap, ok := value.(*Snapshot)
			if !ok {
				return true
			}
			ref := ExtractReference(snap)
			if ref == "" {
				ref = key
			}
			store.Set(ref, snap)
			return true
		})
	case []any:
		for _, item := range doc {
			snap, ok := item.(*Snapshot)
			if !ok {
				continue
			}
			if ref := ExtractReference(snap); ref != "" {
				store.Set(ref, snap)
			}
		}
	}
	return store
}

// Load reads an EntityStore file in either persisted shape.
//
// Returns a *storage.LoadError when the file is missing or not valid
// JSON.
func Load(path string) (*Store, error) {
	data, err := storage.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	raw, err := orderedmap.Parse(data)
	if err != nil {
		return nil, &storage.LoadError{Path: path, Kind: storage.ParseError, Err: err}
	}
	return Normalize(raw), nil
}

// LoadOrEmpty is Load with missing and malformed files treated as an
// empty store. Other I/O errors are still returned.
func LoadOrEmpty(path string, logger *slog.Logger) (*Store, error) {
	store, err := Load(path)
	if err == nil {
		return store, nil
	}
	if !storage.IsLoadError(err) {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errors.Is(err, storage.ErrParse) {
		logger.Warn("orders file unreadable, starting empty", "path", path, "error", err)
	} else {
		logger.Debug("orders file not found, starting empty", "path", path)
	}
	return NewStore(), nil
}

// Save writes the store atomically as a reference-keyed object.
func Save(path string, store *Store) error {
	if store == nil {
		store = NewStore()
	}
	if err := storage.WriteJSON(path, store); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return nil
}

// CompareStores diffs two stores entity by entity.
//
// # Description
//
// For each reference in old (in old's order): if it is still present the
// snapshots are diffed and every change is tagged with the reference;
// otherwise a single "removed" change with an empty key records that the
// whole entity disappeared. References only in new then yield a single
// "added" change with an empty key. The reference itself is carried as
// the value so that the record is never empty.
func CompareStores(old, new *Store) []diff.Tagged {
	tagged := make([]diff.Tagged, 0)

	old.Range(func(ref string, oldSnap *Snapshot) bool {
		newSnap, ok := new.Get(ref)
		if !ok {
			tagged = append(tagged, diff.Tagged{
				Reference: ref,
				Change:    diff.Change{Operation: diff.OpRemoved, Key: "", OldValue: ref},
			})
			return true
		}
		tagged = append(tagged, diff.Tag(ref, diff.Compare(oldSnap, newSnap, ""))...)
		return true
	})

	new.Range(func(ref string, _ *Snapshot) bool {
		if old.Has(ref) {
			return true
		}
		tagged = append(tagged, diff.Tagged{
			Reference: ref,
			Change:    diff.Change{Operation: diff.OpAdded, Key: "", Value: ref},
		})
		return true
	})

	return tagged
}

// Filter returns a store holding only ref, or an empty store when ref is
// unknown. An empty ref returns store unchanged.
func Filter(store *Store, ref string) *Store {
	if ref == "" {
		return store
	}
	out := NewStore()
	if snap, ok := store.Get(ref); ok {
		out.Set(ref, snap)
	}
	return out
}
