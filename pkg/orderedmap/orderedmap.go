// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orderedmap provides a string-keyed map that remembers insertion
// order and round-trips JSON objects in document order.
//
// Order matters to orderwatch in two places: change records are emitted in
// the order keys appear in a snapshot, and stores are written back with
// references in the order they were first seen. Go maps randomise both,
// so every JSON object the tool reads is decoded into a Map.
//
// Decoding walks the document with gjson, which yields object members in
// source order. Nested objects inside a Map[any] become *Map[any]; arrays
// become []any; numbers become json.Number holding the literal as written,
// so large integers survive a load and save unchanged.
package orderedmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNotObject is returned when valid JSON is not an object.
	ErrNotObject = errors.New("JSON value is not an object")
)

// Map is an insertion-ordered map from string keys to V.
//
// The zero value is ready to use. Map is not safe for concurrent writes.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

// Len returns the number of entries. A nil Map has length zero.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil || m.values == nil {
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (m *Map[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key if present.
func (m *Map[V]) Delete(key string) {
	if m == nil || m.values == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order.
// HTML characters are not escaped.
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := marshalNoEscape(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the contents of m with the members of a JSON
// object, in document order. JSON null leaves m empty.
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return ErrInvalidJSON
	}
	return m.fromResult(gjson.ParseBytes(data))
}

func (m *Map[V]) fromResult(res gjson.Result) error {
	m.keys = nil
	m.values = make(map[string]V)
	if res.Type == gjson.Null {
		return nil
	}
	if !res.IsObject() {
		return ErrNotObject
	}

	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		var v V
		v, err = decode[V](value)
		if err != nil {
			err = fmt.Errorf("decode %q: %w", key.String(), err)
			return false
		}
		m.Set(key.String(), v)
		return true
	})
	return err
}

// Parse decodes any JSON document into Go values, turning every object
// into a *Map[any].
func Parse(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return Value(gjson.ParseBytes(data)), nil
}

// Value converts a gjson result into a plain Go value with ordered
// objects.
func Value(res gjson.Result) any {
	switch {
	case res.IsObject():
		m := New[any]()
		res.ForEach(func(k, v gjson.Result) bool {
			m.Set(k.String(), Value(v))
			return true
		})
		return m
	case res.IsArray():
		items := make([]any, 0)
		res.ForEach(func(_, v gjson.Result) bool {
			items = append(items, Value(v))
			return true
		})
		return items
	}

	switch res.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(res.Raw)
	case gjson.String:
		return res.Str
	default:
		return nil
	}
}

func decode[V any](res gjson.Result) (V, error) {
	var out V
	if p, ok := any(&out).(*any); ok {
		*p = Value(res)
		return out, nil
	}
	err := json.Unmarshal([]byte(res.Raw), &out)
	return out, err
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
