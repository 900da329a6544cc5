// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history records the changes observed for each order across
// refresh runs.
//
// The on-disk form is a JSON object mapping each reference number to a
// chronological list of entries:
//
//	{
//	  "RN100": [
//	    {"timestamp": "2025-01-01", "changes": [{"operation": "changed", ...}]}
//	  ]
//	}
//
// Entries are only ever appended. Older files in a flat-list layout are
// converted by the migrate package before this package reads them.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

// DateLayout is the timestamp format of entries written by a refresh.
const DateLayout = "2006-01-02"

// ErrLegacyLayout is wrapped in the LoadError returned for a history file
// that is still a flat list.
var ErrLegacyLayout = errors.New("history file uses the legacy list layout")

// Entry is one batch of changes observed for an order at one time.
type Entry struct {
	Timestamp string        `json:"timestamp"`
	Changes   []diff.Change `json:"changes"`
}

// Store maps reference numbers to their entries, oldest first.
//
// The zero value is not usable; call NewStore.
type Store struct {
	refs *orderedmap.Map[[]Entry]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{refs: orderedmap.New[[]Entry]()}
}

// References returns the tracked reference numbers in first-seen order.
func (s *Store) References() []string {
	return s.refs.Keys()
}

// Entries returns the entries for ref, oldest first.
func (s *Store) Entries(ref string) []Entry {
	entries, _ := s.refs.Get(ref)
	return entries
}

// Len returns the number of references with history.
func (s *Store) Len() int {
	return s.refs.Len()
}

// Append adds one entry to ref's history.
func (s *Store) Append(ref string, entry Entry) {
	entries, _ := s.refs.Get(ref)
	s.refs.Set(ref, append(entries, entry))
}

// Record appends one entry stamped with timestamp for every reference in
// grouped that has at least one change. It returns the number of entries
// written.
func (s *Store) Record(grouped *orderedmap.Map[[]diff.Change], timestamp string) int {
	written := 0
	grouped.Range(func(ref string, changes []diff.Change) bool {
		if len(changes) == 0 {
			return true
		}
		s.Append(ref, Entry{Timestamp: timestamp, Changes: changes})
		written++
		return true
	})
	return written
}

func (s *Store) MarshalJSON() ([]byte, error) {
	return s.refs.MarshalJSON()
}

func (s *Store) UnmarshalJSON(data []byte) error {
	refs := orderedmap.New[[]Entry]()
	if err := refs.UnmarshalJSON(data); err != nil {
		return err
	}
	s.refs = refs
	return nil
}

// GroupByReference splits tagged changes into per-reference lists.
//
// References appear in the order of their first change, and changes keep
// their relative order. Changes with an empty reference are dropped.
func GroupByReference(tagged []diff.Tagged) *orderedmap.Map[[]diff.Change] {
	grouped := orderedmap.New[[]diff.Change]()
	for _, tc := range tagged {
		if tc.Reference == "" {
			continue
		}
		changes, _ := grouped.Get(tc.Reference)
		grouped.Set(tc.Reference, append(changes, tc.Change))
	}
	return grouped
}

// Load reads the history file at path.
//
// Returns a *storage.LoadError when the file is missing, not valid JSON,
// or not an object.
func Load(path string) (*Store, error) {
	data, err := storage.ReadJSON(path)
	if err != nil {
		return nil, err
	}
	if gjson.ParseBytes(data).IsArray() {
		return nil, &storage.LoadError{Path: path, Kind: storage.ParseError, Err: ErrLegacyLayout}
	}
	store := NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, &storage.LoadError{Path: path, Kind: storage.ParseError, Err: err}
	}
	return store, nil
}

// LoadOrEmpty is Load with missing and malformed files treated as an
// empty history.
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
		logger.Warn("history file unreadable, starting empty", "path", path, "error", err)
	} else {
		logger.Debug("history file not found, starting empty", "path", path)
	}
	return NewStore(), nil
}

// Save writes the store atomically.
func Save(path string, store *Store) error {
	if store == nil {
		store = NewStore()
	}
	if err := storage.WriteJSON(path, store); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
