// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
)

// Legacy is one parsed item of a pre-structured history entry. The set of
// implementations is closed.
type Legacy interface {
	legacy()
}

// LegacyAddLine is "+ Added key '<k>': <v>".
type LegacyAddLine struct {
	Key   string
	Value string
}

// LegacyRemoveLine is "- Removed key '<k>'".
type LegacyRemoveLine struct {
	Key string
}

// LegacyChangePair is "- <k>: <old>" immediately followed by "+ <k>: <new>".
type LegacyChangePair struct {
	Key      string
	OldValue string
	NewValue string
}

// LegacyOrderAdd is "+ Added order <n>".
type LegacyOrderAdd struct {
	Order string
}

// LegacyOrderRemove is "- Removed order <n>".
type LegacyOrderRemove struct {
	Order string
}

// Structured is an already-structured change found among legacy lines.
// It is carried over untouched.
type Structured struct {
	Fields *orderedmap.Map[any]
}

func (LegacyAddLine) legacy()     {}
func (LegacyRemoveLine) legacy()  {}
func (LegacyChangePair) legacy()  {}
func (LegacyOrderAdd) legacy()    {}
func (LegacyOrderRemove) legacy() {}
func (Structured) legacy()        {}

const (
	prefixAddKey      = "+ Added key '"
	prefixRemoveKey   = "- Removed key '"
	prefixAddOrder    = "+ Added order "
	prefixRemoveOrder = "- Removed order "
)

var (
	reAddKey      = regexp.MustCompile(`^\+ Added key '([^']+)': (.*)`)
	reRemoveKey   = regexp.MustCompile(`^- Removed key '([^']+)'`)
	reAddOrder    = regexp.MustCompile(`^\+ Added order (\d+)`)
	reRemoveOrder = regexp.MustCompile(`^- Removed order (\d+)`)
	rePairOld     = regexp.MustCompile(`^- ([^:]+): (.*)`)
	rePairNew     = regexp.MustCompile(`^\+ ([^:]+): (.*)`)
)

// ParseLegacy parses the changes list of a legacy history entry.
//
// # Description
//
// Items are matched in order against the known line shapes. A "- k: old"
// line pairs with the next item only when that item is a "+ k: new" line
// with the same key; both are consumed. Lines that match no shape,
// unpaired halves and non-string values are dropped. Objects pass through
// as Structured.
//
// A leading "Order " is stripped from every key.
func ParseLegacy(items []any) []Legacy {
	out := make([]Legacy, 0, len(items))
	for i := 0; i < len(items); i++ {
		if m, ok := items[i].(*orderedmap.Map[any]); ok {
			out = append(out, Structured{Fields: m})
			continue
		}
		line, ok := items[i].(string)
		if !ok {
			continue
		}

		switch {
		case strings.HasPrefix(line, prefixAddKey):
			if m := reAddKey.FindStringSubmatch(line); m != nil {
				out = append(out, LegacyAddLine{Key: cleanKey(m[1]), Value: m[2]})
			}
		case strings.HasPrefix(line, prefixRemoveKey):
			if m := reRemoveKey.FindStringSubmatch(line); m != nil {
				out = append(out, LegacyRemoveLine{Key: cleanKey(m[1])})
			}
		case strings.HasPrefix(line, prefixAddOrder):
			if m := reAddOrder.FindStringSubmatch(line); m != nil {
				out = append(out, LegacyOrderAdd{Order: m[1]})
			}
		case strings.HasPrefix(line, prefixRemoveOrder):
			if m := reRemoveOrder.FindStringSubmatch(line); m != nil {
				out = append(out, LegacyOrderRemove{Order: m[1]})
			}
		case strings.HasPrefix(line, "- "):
			if pair, ok := parsePair(line, items, i); ok {
				out = append(out, pair)
				i++
			}
		}
	}
	return out
}

func parsePair(line string, items []any, i int) (LegacyChangePair, bool) {
	if i+1 >= len(items) {
		return LegacyChangePair{}, false
	}
	next, ok := items[i+1].(string)
	if !ok || !strings.HasPrefix(next, "+ ") {
		return LegacyChangePair{}, false
	}
	mOld := rePairOld.FindStringSubmatch(line)
	mNew := rePairNew.FindStringSubmatch(next)
	if mOld == nil || mNew == nil || mOld[1] != mNew[1] {
		return LegacyChangePair{}, false
	}
	return LegacyChangePair{Key: cleanKey(mOld[1]), OldValue: mOld[2], NewValue: mNew[2]}, true
}

func cleanKey(key string) string {
	return strings.TrimPrefix(key, "Order ")
}

// Record converts a parsed item into the value stored in a structured
// history entry: a diff.Change, or the untouched object for Structured.
func Record(l Legacy) any {
	switch v := l.(type) {
	case LegacyAddLine:
		return diff.Change{Operation: diff.OpAdded, Key: v.Key, Value: v.Value}
	case LegacyRemoveLine:
		return diff.Change{Operation: diff.OpRemoved, Key: v.Key}
	case LegacyChangePair:
		return diff.Change{Operation: diff.OpChanged, Key: v.Key, Value: v.NewValue, OldValue: v.OldValue}
	case LegacyOrderAdd:
		return diff.Change{Operation: diff.OpAdded, Key: v.Order}
	case LegacyOrderRemove:
		return diff.Change{Operation: diff.OpRemoved, Key: v.Order}
	case Structured:
		return v.Fields
	}
	return nil
}
