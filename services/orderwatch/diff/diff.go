// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diff compares two order snapshots and reports leaf-level
// changes.
//
// # Description
//
// Compare walks two nested objects (*orderedmap.Map[any]) in parallel and
// emits one Change per differing leaf. Keys are dotted paths from the
// snapshot root. Output order is deterministic:
//
//  1. Keys of the old snapshot, in its order, yielding "removed" and
//     "changed" records (recursing into objects present on both sides).
//  2. Keys present only in the new snapshot, in its order, yielding
//     "added" records.
//
// String leaves are trimmed before comparison and before they are stored
// in a record. Lists are opaque leaves compared by value.
//
// # Thread Safety
//
// Compare does not mutate its inputs and is safe for concurrent use.
package diff

import (
	"strings"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
)

// Snapshot is one entity's state as decoded from JSON.
type Snapshot = orderedmap.Map[any]

// Compare returns the changes that turn old into new.
//
// # Inputs
//
//   - old: Previous snapshot. nil is treated as empty.
//   - new: Current snapshot. nil is treated as empty.
//   - path: Prefix for every emitted key. Pass "" at the root.
//
// # Outputs
//
//   - []Change: Never nil. Empty when the snapshots are equal after
//     trimming string leaves.
func Compare(old, new *Snapshot, path string) []Change {
	changes := make([]Change, 0)
	return compareInto(changes, old, new, path)
}

func compareInto(changes []Change, old, new *Snapshot, path string) []Change {
	old.Range(func(key string, oldValue any) bool {
		fullKey := joinKey(path, key)
		newValue, ok := new.Get(key)
		if !ok {
			changes = append(changes, Change{
				Operation: OpRemoved,
				Key:       fullKey,
				OldValue:  Clean(oldValue),
			})
			return true
		}

		oldMap, oldIsMap := oldValue.(*Snapshot)
		newMap, newIsMap := newValue.(*Snapshot)
		if oldIsMap && newIsMap {
			changes = compareInto(changes, oldMap, newMap, fullKey)
			return true
		}

		cleanOld := Clean(oldValue)
		cleanNew := Clean(newValue)
		if !orderedmap.Equal(cleanOld, cleanNew) {
			changes = append(changes, Change{
				Operation: OpChanged,
				Key:       fullKey,
				Value:     cleanNew,
				OldValue:  cleanOld,
			})
		}
		return true
	})

	new.Range(func(key string, newValue any) bool {
		if old.Has(key) {
			return true
		}
		changes = append(changes, Change{
			Operation: OpAdded,
			Key:       joinKey(path, key),
			Value:     Clean(newValue),
		})
		return true
	})

	return changes
}

// Clean trims surrounding whitespace from string leaves. Any other value
// is returned unchanged.
func Clean(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
