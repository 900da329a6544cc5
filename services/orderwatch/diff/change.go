// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
)

// Operation is the kind of a leaf change.
type Operation string

const (
	OpAdded   Operation = "added"
	OpRemoved Operation = "removed"
	OpChanged Operation = "changed"
)

// Valid reports whether op is one of the three known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpAdded, OpRemoved, OpChanged:
		return true
	}
	return false
}

// Change is one leaf-level difference between two snapshots.
//
// Value is the new value (added, changed); OldValue is the previous value
// (removed, changed). JSON encoding always writes the fields that belong
// to the operation, even when they hold null.
type Change struct {
	Operation Operation `json:"operation"`
	Key       string    `json:"key"`
	Value     any       `json:"value,omitempty"`
	OldValue  any       `json:"old_value,omitempty"`
}

// MarshalJSON writes operation and key followed by the value fields the
// operation carries.
func (c Change) MarshalJSON() ([]byte, error) {
	out := struct {
		Operation Operation `json:"operation"`
		Key       string    `json:"key"`
		Value     *any      `json:"value,omitempty"`
		OldValue  *any      `json:"old_value,omitempty"`
	}{Operation: c.Operation, Key: c.Key}

	switch c.Operation {
	case OpAdded:
		out.Value = &c.Value
		if c.OldValue != nil {
			out.OldValue = &c.OldValue
		}
	case OpRemoved:
		out.OldValue = &c.OldValue
		if c.Value != nil {
			out.Value = &c.Value
		}
	default:
		out.Value = &c.Value
		out.OldValue = &c.OldValue
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a stored change. Values keep their key order and
// exact numbers, so a decoded history compares equal to what was recorded.
func (c *Change) UnmarshalJSON(data []byte) error {
	doc, err := orderedmap.Parse(data)
	if err != nil {
		return err
	}
	m, ok := doc.(*orderedmap.Map[any])
	if !ok {
		return fmt.Errorf("change: %w", orderedmap.ErrNotObject)
	}
	op, _ := m.Get("operation")
	opStr, _ := op.(string)
	key, _ := m.Get("key")
	keyStr, _ := key.(string)
	value, _ := m.Get("value")
	oldValue, _ := m.Get("old_value")
	*c = Change{Operation: Operation(opStr), Key: keyStr, Value: value, OldValue: oldValue}
	return nil
}

// Tagged is a Change attributed to the entity it belongs to.
type Tagged struct {
	Reference string
	Change
}

// Tag attributes every change to ref.
func Tag(ref string, changes []Change) []Tagged {
	out := make([]Tagged, len(changes))
	for i, c := range changes {
		out[i] = Tagged{Reference: ref, Change: c}
	}
	return out
}

// FormatValue renders a leaf for display. nil renders as "None", matching
// how stored history has always displayed missing values.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(string(data))
	}
}
