// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

type object = orderedmap.Map[any]

// =============================================================================
// 2025-08-23-history
// =============================================================================

// HistoryStructured rewrites string-delta history entries into structured
// change records.
type HistoryStructured struct{}

func (HistoryStructured) Name() string { return "2025-08-23-history" }

func (HistoryStructured) Apply(_ context.Context, loc Locations, logger *slog.Logger) (Outcome, error) {
	path, doc, reason, err := readDoc(loc.HistoryFiles, logger)
	if err != nil || doc == nil {
		return skipped(path, reason), err
	}
	entries, ok := doc.([]any)
	if !ok {
		return skipped(path, "history is not a list"), nil
	}
	migrated, changed := structureHistory(entries)
	if !changed {
		return skipped(path, "already structured"), nil
	}
	if err := storage.WriteJSON(path, migrated); err != nil {
		return Outcome{Path: path}, err
	}
	return Outcome{Path: path, Applied: true}, nil
}

// structureHistory converts legacy entries. It reports false when the
// history is empty or its first change is already structured.
func structureHistory(entries []any) ([]any, bool) {
	if len(entries) == 0 {
		return entries, false
	}
	first, _ := entries[0].(*object)
	firstChanges := changesOf(first)
	if len(firstChanges) == 0 {
		return entries, false
	}
	if _, structured := firstChanges[0].(*object); structured {
		return entries, false
	}

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		entry, ok := e.(*object)
		if !ok {
			continue
		}
		ts, _ := entry.Get("timestamp")
		records := make([]any, 0)
		for _, item := range ParseLegacy(changesOf(entry)) {
			records = append(records, Record(item))
		}
		converted := orderedmap.New[any]()
		converted.Set("timestamp", ts)
		converted.Set("changes", records)
		out = append(out, converted)
	}
	return out, true
}

func changesOf(entry *object) []any {
	raw, _ := entry.Get("changes")
	items, _ := raw.([]any)
	return items
}

// =============================================================================
// 2025-09-15-history-trimvalues
// =============================================================================

// HistoryTrimValues trims whitespace around string value and old_value
// fields of every stored change.
type HistoryTrimValues struct{}

func (HistoryTrimValues) Name() string { return "2025-09-15-history-trimvalues" }

func (HistoryTrimValues) Apply(_ context.Context, loc Locations, logger *slog.Logger) (Outcome, error) {
	path, doc, reason, err := readDoc(loc.HistoryFiles, logger)
	if err != nil || doc == nil {
		return skipped(path, reason), err
	}

	changed := false
	switch h := doc.(type) {
	case []any:
		changed = trimEntries(h)
	case *object:
		h.Range(func(_ string, v any) bool {
			if entries, ok := v.([]any); ok && trimEntries(entries) {
				changed = true
			}
			return true
		})
	default:
		return skipped(path, "unexpected history shape"), nil
	}

	if !changed {
		return skipped(path, "nothing to trim"), nil
	}
	if err := storage.WriteJSON(path, doc); err != nil {
		return Outcome{Path: path}, err
	}
	return Outcome{Path: path, Applied: true}, nil
}

func trimEntries(entries []any) bool {
	changed := false
	for _, e := range entries {
		entry, ok := e.(*object)
		if !ok {
			continue
		}
		for _, c := range changesOf(entry) {
			change, ok := c.(*object)
			if !ok {
				continue
			}
			for _, field := range []string{"value", "old_value"} {
				s, ok := change.Get(field)
				str, isString := s.(string)
				if !ok || !isString {
					continue
				}
				if trimmed := strings.TrimSpace(str); trimmed != str {
					change.Set(field, trimmed)
					changed = true
				}
			}
		}
	}
	return changed
}

// =============================================================================
// 2025-11-12-history-reference
// =============================================================================

// HistoryByReference regroups a flat history list into a map keyed by
// reference number.
//
// # Description
//
// Every change is attributed to a reference, tried in this order:
//
//  1. an explicit order_reference field on the change;
//  2. the first key segment, looked up in the index built from the orders
//     file (list position or map key → reference);
//  3. the first key segment itself when it looks like a reference number;
//  4. the first key segment itself when it is all digits.
//
// When the first segment is the reference, an index, a reference-like
// code or all digits it is dropped from the key. Changes that resolve to
// no reference, or carry an unknown operation, are discarded. Each original entry yields at most one new
// entry per reference, with the original timestamp.
type HistoryByReference struct{}

func (HistoryByReference) Name() string { return "2025-11-12-history-reference" }

func (HistoryByReference) Apply(_ context.Context, loc Locations, logger *slog.Logger) (Outcome, error) {
	path, doc, reason, err := readDoc(loc.HistoryFiles, logger)
	if err != nil || doc == nil {
		return skipped(path, reason), err
	}
	entries, ok := doc.([]any)
	if !ok {
		return skipped(path, "already keyed by reference"), nil
	}

	index := buildIndex(loc.OrdersFiles, logger)
	grouped, dropped := groupHistory(entries, index)
	if dropped > 0 {
		logger.Warn("unresolvable history changes were dropped", "count", dropped)
	}
	if grouped.Len() == 0 {
		return skipped(path, "no resolvable changes"), nil
	}
	if err := storage.WriteJSON(path, grouped); err != nil {
		return Outcome{Path: path}, err
	}
	return Outcome{Path: path, Applied: true}, nil
}

// buildIndex maps legacy key prefixes to reference numbers using the
// orders file as it is on disk.
func buildIndex(candidates []string, logger *slog.Logger) map[string]string {
	index := make(map[string]string)
	_, doc, _, err := readDoc(candidates, logger)
	if err != nil || doc == nil {
		return index
	}
	switch orders := doc.(type) {
	case []any:
		for i, item := range orders {
			if ref := entity.ExtractReference(item); ref != "" {
				index[strconv.Itoa(i)] = ref
			}
		}
	case *object:
		orders.Range(func(key string, item any) bool {
			if ref := entity.ExtractReference(item); ref != "" {
				index[key] = ref
			}
			return true
		})
	}
	return index
}

func groupHistory(entries []any, index map[string]string) (*orderedmap.Map[[]any], int) {
	grouped := orderedmap.New[[]any]()
	dropped := 0
	for _, e := range entries {
		entry, ok := e.(*object)
		if !ok {
			continue
		}
		raw, _ := entry.Get("changes")
		changes, ok := raw.([]any)
		if !ok {
			continue
		}
		ts, _ := entry.Get("timestamp")

		perRef := orderedmap.New[[]diff.Change]()
		for _, c := range changes {
			change, ok := c.(*object)
			if !ok {
				dropped++
				continue
			}
			ref, key := ResolveReference(change, index)
			if ref == "" {
				dropped++
				continue
			}
			op, _ := change.Get("operation")
			opStr, _ := op.(string)
			if !diff.Operation(opStr).Valid() {
				dropped++
				continue
			}
			value, _ := change.Get("value")
			oldValue, _ := change.Get("old_value")
			list, _ := perRef.Get(ref)
			perRef.Set(ref, append(list, diff.Change{
				Operation: diff.Operation(opStr),
				Key:       key,
				Value:     value,
				OldValue:  oldValue,
			}))
		}

		perRef.Range(func(ref string, list []diff.Change) bool {
			out := orderedmap.New[any]()
			out.Set("timestamp", ts)
			out.Set("changes", list)
			existing, _ := grouped.Get(ref)
			grouped.Set(ref, append(existing, out))
			return true
		})
	}
	return grouped, dropped
}

// ResolveReference returns the reference a legacy change belongs to and
// its key relative to that reference. ref is "" when unresolvable.
func ResolveReference(change *orderedmap.Map[any], index map[string]string) (ref, key string) {
	rawKey, _ := change.Get("key")
	keyStr, _ := rawKey.(string)

	prefix, remainder := keyStr, ""
	if i := strings.IndexByte(keyStr, '.'); i >= 0 {
		prefix, remainder = keyStr[:i], keyStr[i+1:]
	}

	if explicit, ok := change.Get("order_reference"); ok && explicit != nil {
		ref = referenceText(explicit)
	} else if prefix != "" {
		if mapped, ok := index[prefix]; ok {
			ref = mapped
		} else if LooksLikeReference(prefix) || isDigits(prefix) {
			ref = prefix
		}
	}
	if ref == "" {
		return "", keyStr
	}

	_, indexed := index[prefix]
	if prefix != "" && (prefix == ref || indexed || LooksLikeReference(prefix) || isDigits(prefix)) {
		return ref, remainder
	}
	return ref, keyStr
}

// LooksLikeReference reports whether s has the reference-number shape:
// it starts with "RN", in any case.
func LooksLikeReference(s string) bool {
	return len(s) >= 2 && strings.EqualFold(s[:2], "RN")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func referenceText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// =============================================================================
// 2025-11-12-orders-map
// =============================================================================

// OrdersByReference rewrites a list-shaped orders file into an object keyed
// by reference number. Entries without a reference are keyed
// "legacy-<index>"; duplicate keys get "-1", "-2", ... suffixes.
type OrdersByReference struct{}

func (OrdersByReference) Name() string { return "2025-11-12-orders-map" }

func (OrdersByReference) Apply(_ context.Context, loc Locations, logger *slog.Logger) (Outcome, error) {
	path, doc, reason, err := readDoc(loc.OrdersFiles, logger)
	if err != nil || doc == nil {
		return skipped(path, reason), err
	}
	orders, ok := doc.([]any)
	if !ok {
		return skipped(path, "already keyed by reference"), nil
	}

	keyed := KeyOrders(orders)
	if keyed.Len() == 0 {
		return skipped(path, "no entries"), nil
	}
	if err := storage.WriteJSON(path, keyed); err != nil {
		return Outcome{Path: path}, err
	}
	return Outcome{Path: path, Applied: true}, nil
}

// KeyOrders builds the keyed form of a list of order entries, preserving
// list order. Non-object entries are skipped.
func KeyOrders(orders []any) *orderedmap.Map[any] {
	keyed := orderedmap.New[any]()
	for i, item := range orders {
		if _, ok := item.(*object); !ok {
			continue
		}
		base := entity.ExtractReference(item)
		if base == "" {
			base = fmt.Sprintf("legacy-%d", i)
		}
		candidate := base
		for suffix := 1; keyed.Has(candidate); suffix++ {
			candidate = fmt.Sprintf("%s-%d", base, suffix)
		}
		keyed.Set(candidate, item)
	}
	return keyed
}
