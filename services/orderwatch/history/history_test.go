// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	godiff "github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/orderwatch/services/orderwatch/diff"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
)

func TestGroupByReference(t *testing.T) {
	tagged := []diff.Tagged{
		{Reference: "RN2", Change: diff.Change{Operation: diff.OpAdded, Key: "a"}},
		{Reference: "", Change: diff.Change{Operation: diff.OpAdded, Key: "orphan"}},
		{Reference: "RN1", Change: diff.Change{Operation: diff.OpAdded, Key: "b"}},
		{Reference: "RN2", Change: diff.Change{Operation: diff.OpRemoved, Key: "c"}},
	}

	grouped := GroupByReference(tagged)

	assert.Equal(t, []string{"RN2", "RN1"}, grouped.Keys())
	rn2, _ := grouped.Get("RN2")
	require.Len(t, rn2, 2)
	assert.Equal(t, "a", rn2[0].Key)
	assert.Equal(t, "c", rn2[1].Key)
}

func TestStore_RecordAppends(t *testing.T) {
	store := NewStore()
	store.Append("RN1", Entry{Timestamp: "2025-01-01", Changes: []diff.Change{{Operation: diff.OpAdded, Key: "x", Value: "1"}}})

	grouped := GroupByReference([]diff.Tagged{
		{Reference: "RN1", Change: diff.Change{Operation: diff.OpChanged, Key: "x", Value: "2", OldValue: "1"}},
		{Reference: "RN3", Change: diff.Change{Operation: diff.OpAdded, Key: "", Value: "RN3"}},
	})
	written := store.Record(grouped, "2025-01-02")

	assert.Equal(t, 2, written)
	assert.Equal(t, []string{"RN1", "RN3"}, store.References())
	entries := store.Entries("RN1")
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-01-01", entries[0].Timestamp)
	assert.Equal(t, "2025-01-02", entries[1].Timestamp)
	assert.Equal(t, "x", entries[1].Changes[0].Key)
}

func TestLoadSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store := NewStore()
	store.Append("RN9", Entry{Timestamp: "2025-02-01", Changes: []diff.Change{{Operation: diff.OpRemoved, Key: "k", OldValue: "v"}}})
	store.Append("RN1", Entry{Timestamp: "2025-02-02", Changes: []diff.Change{{Operation: diff.OpAdded, Key: "k", Value: 3.0}}})

	require.NoError(t, Save(path, store))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"RN9", "RN1"}, loaded.References())
	assert.Equal(t, store.Entries("RN9"), loaded.Entries("RN9"))
	assert.Equal(t, json.Number("3"), loaded.Entries("RN1")[0].Changes[0].Value)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"old_value": "v"`)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "none.json"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"RN1": [`), 0600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, storage.ErrParse)

	legacy := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`[{"timestamp":"t","changes":[]}]`), 0600))
	_, err = Load(legacy)
	assert.ErrorIs(t, err, storage.ErrParse)
	assert.ErrorIs(t, err, ErrLegacyLayout)

	store, err := LoadOrEmpty(bad, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Vehicle Odometer", DefaultLabels.Label("details.tasks.registration.orderDetails.vehicleOdometer"))
	assert.Equal(t, "some.other.key", DefaultLabels.Label("some.other.key"))
	assert.Equal(t, EntityLabel, DefaultLabels.Label(""))
}

func TestStatusRelevant(t *testing.T) {
	ignored := []string{"details.tasks.financing.", "details.tasks.insurance."}

	assert.False(t, StatusRelevant(nil, ignored))
	assert.False(t, StatusRelevant([]diff.Change{{Key: "details.tasks.financing.rate"}}, ignored))
	assert.True(t, StatusRelevant([]diff.Change{
		{Key: "details.tasks.insurance.x"},
		{Key: "order.orderStatus"},
	}, ignored))
	assert.True(t, StatusRelevant([]diff.Change{{Key: "anything"}}, nil))
}

func TestEvents(t *testing.T) {
	entries := []Entry{
		{Timestamp: "2025-01-01", Changes: []diff.Change{
			{Operation: diff.OpChanged, Key: "details.tasks.scheduling.deliveryWindowDisplay", Value: "B", OldValue: "A"},
			{Operation: diff.OpAdded, Key: "custom", Value: "v"},
		}},
	}

	events := Events(entries, DefaultLabels)

	require.Len(t, events, 2)
	assert.Equal(t, Event{Timestamp: "2025-01-01", Key: "Delivery Window", Value: "B", OldValue: "A"}, events[0])
	assert.Equal(t, "custom", events[1].Key)
}

func TestRender(t *testing.T) {
	entries := []Entry{{Timestamp: "2025-03-04", Changes: []diff.Change{
		{Operation: diff.OpAdded, Key: "order.vin", Value: "5YJ"},
		{Operation: diff.OpRemoved, Key: "x", OldValue: nil},
		{Operation: diff.OpChanged, Key: "order.orderStatus", Value: "DELIVERED", OldValue: "BOOKED"},
	}}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, entries, DefaultLabels, strings.ToUpper))

	assert.Equal(t, "- 2025-03-04\n  + VIN: 5YJ\n  - X: None\n  ~ ORDER STATUS: BOOKED -> DELIVERED\n", buf.String())
}

func TestPatch(t *testing.T) {
	entries := []Entry{
		{Timestamp: "2025-01-01", Changes: []diff.Change{{Operation: diff.OpAdded, Key: "", Value: "RN1"}}},
		{Timestamp: "2025-01-05", Changes: []diff.Change{
			{Operation: diff.OpChanged, Key: "order.orderStatus", Value: "DELIVERED", OldValue: "BOOKED"},
			{Operation: diff.OpRemoved, Key: "order.x", OldValue: "1"},
		}},
		{Timestamp: "2025-01-06"},
	}

	fd := Patch("RN1", entries)

	require.Len(t, fd.Hunks, 2)
	assert.Equal(t, "2025-01-05", fd.Hunks[1].Section)
	assert.Equal(t, int32(2), fd.Hunks[1].OrigLines)
	assert.Equal(t, int32(1), fd.Hunks[1].NewLines)
	assert.Equal(t, int32(2), fd.Hunks[1].NewStartLine)

	out, err := godiff.PrintFileDiff(fd)
	require.NoError(t, err)
	assert.Contains(t, string(out), "+Order: RN1\n")
	assert.Contains(t, string(out), "-order.orderStatus: BOOKED\n+order.orderStatus: DELIVERED\n")

	parsed, err := godiff.ParseFileDiff(out)
	require.NoError(t, err)
	require.Len(t, parsed.Hunks, 2)
	assert.Equal(t, "2025-01-05", parsed.Hunks[1].Section)
}

func TestPrintPatch_SkipsEmpty(t *testing.T) {
	store := NewStore()
	store.Append("RN1", Entry{Timestamp: "t"})

	out, err := PrintPatch(store, []string{"RN1", "RN2"})
	require.NoError(t, err)
	assert.Nil(t, out)
}
