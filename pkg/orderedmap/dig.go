// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orderedmap

import (
	"encoding/json"
	"math/big"
	"reflect"
	"strconv"
)

// Dig follows path through nested *Map[any] values.
func Dig(m *Map[any], path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		next, ok := cur.(*Map[any])
		if !ok || next == nil {
			return nil, false
		}
		cur, ok = next.Get(key)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// DigMap is Dig for a nested object. Missing or non-object values yield nil.
func DigMap(m *Map[any], path ...string) *Map[any] {
	v, _ := Dig(m, path...)
	out, _ := v.(*Map[any])
	return out
}

// DigString is Dig for a string leaf. Missing or non-string values yield "".
func DigString(m *Map[any], path ...string) string {
	v, _ := Dig(m, path...)
	s, _ := v.(string)
	return s
}

// Equal reports whether two decoded values are deeply equal. Objects
// compare by content regardless of key order; numbers compare by value, so
// 1, 1.0 and 1e0 are equal.
func Equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x.Cmp(y) == 0
	}
	switch av := a.(type) {
	case *Map[any]:
		bv, ok := b.(*Map[any])
		if !ok {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Range(func(k string, v any) bool {
			other, ok := bv.Get(k)
			if !ok || !Equal(v, other) {
				equal = false
			}
			return equal
		})
		return equal
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// number returns the exact value of a JSON number or Go float.
func number(v any) (*big.Rat, bool) {
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case float64:
		text = strconv.FormatFloat(n, 'g', -1, 64)
	case int:
		text = strconv.Itoa(n)
	default:
		return nil, false
	}
	r, ok := new(big.Rat).SetString(text)
	return r, ok
}
