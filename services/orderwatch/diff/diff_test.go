// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/orderwatch/pkg/orderedmap"
)

func snap(t *testing.T, raw string) *Snapshot {
	t.Helper()
	var m orderedmap.Map[any]
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return &m
}

func TestCompare_ChangedLeaf(t *testing.T) {
	old := snap(t, `{"a":{"b":"x"}}`)
	new := snap(t, `{"a":{"b":"y"}}`)

	got := Compare(old, new, "")

	require.Len(t, got, 1)
	assert.Equal(t, Change{Operation: OpChanged, Key: "a.b", Value: "y", OldValue: "x"}, got[0])
}

func TestCompare_TrimOnlyDifferenceIsNoChange(t *testing.T) {
	old := snap(t, `{"a":" x "}`)
	new := snap(t, `{"a":"x"}`)

	assert.Empty(t, Compare(old, new, ""))
}

func TestCompare_AddedTrimsValue(t *testing.T) {
	got := Compare(snap(t, `{}`), snap(t, `{"k":"  v  "}`), "")

	require.Len(t, got, 1)
	assert.Equal(t, Change{Operation: OpAdded, Key: "k", Value: "v"}, got[0])
}

func TestCompare_SelfIsEmpty(t *testing.T) {
	s := snap(t, `{"a":1,"b":{"c":[1,2],"d":null,"e":"  z"}}`)
	got := Compare(s, s, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCompare_OrderRemovedChangedThenAdded(t *testing.T) {
	old := snap(t, `{"z":1,"gone":"x","m":{"p":"1","q":"2"}}`)
	new := snap(t, `{"fresh":true,"m":{"q":"3","p":"1","r":"4"},"z":2}`)

	got := Compare(old, new, "")

	keys := make([]string, len(got))
	ops := make([]Operation, len(got))
	for i, c := range got {
		keys[i] = c.Key
		ops[i] = c.Operation
	}
	assert.Equal(t, []string{"z", "gone", "m.q", "m.r", "fresh"}, keys)
	assert.Equal(t, []Operation{OpChanged, OpRemoved, OpChanged, OpAdded, OpAdded}, ops)
}

func TestCompare_MapReplacedByLeaf(t *testing.T) {
	old := snap(t, `{"a":{"b":1}}`)
	new := snap(t, `{"a":"flat"}`)

	got := Compare(old, new, "")

	require.Len(t, got, 1)
	assert.Equal(t, OpChanged, got[0].Operation)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "flat", got[0].Value)
	_, oldIsMap := got[0].OldValue.(*Snapshot)
	assert.True(t, oldIsMap)
}

func TestCompare_ListsAreOpaque(t *testing.T) {
	old := snap(t, `{"l":[1,{"x":"a"}]}`)

	assert.Empty(t, Compare(old, snap(t, `{"l":[1,{"x":"a"}]}`), ""))

	got := Compare(old, snap(t, `{"l":[1,{"x":"b"}]}`), "")
	require.Len(t, got, 1)
	assert.Equal(t, "l", got[0].Key)
	assert.Equal(t, OpChanged, got[0].Operation)
}

func TestCompare_PathPrefix(t *testing.T) {
	got := Compare(snap(t, `{"a":1}`), snap(t, `{"a":2}`), "details")
	require.Len(t, got, 1)
	assert.Equal(t, "details.a", got[0].Key)
}

func TestCompare_NilSnapshots(t *testing.T) {
	got := Compare(nil, snap(t, `{"a":"x"}`), "")
	require.Len(t, got, 1)
	assert.Equal(t, OpAdded, got[0].Operation)

	got = Compare(snap(t, `{"a":"x"}`), nil, "")
	require.Len(t, got, 1)
	assert.Equal(t, OpRemoved, got[0].Operation)
	assert.Equal(t, "x", got[0].OldValue)
}

func TestCompare_SwappingArgumentsMirrorsChanges(t *testing.T) {
	pairs := []struct {
		name string
		a, b string
	}{
		{"flat", `{"a":1,"b":"x"}`, `{"a":2,"c":"y"}`},
		{"nested", `{"m":{"p":"1","q":{"r":true}},"z":null}`, `{"m":{"p":"2","s":[1,2]},"z":"set"}`},
		{"lists", `{"l":[1,{"x":"a"}],"k":[]}`, `{"l":[1,{"x":"b"}],"k":[],"n":[3]}`},
		{"map replaced by leaf", `{"a":{"b":1}}`, `{"a":"flat"}`},
		{"large numbers", `{"id":9007199254740993}`, `{"id":9007199254740992}`},
		{"disjoint", `{"only":"left"}`, `{"other":{"deep":"right"}}`},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			forward := Compare(snap(t, tt.a), snap(t, tt.b), "")
			backward := Compare(snap(t, tt.b), snap(t, tt.a), "")
			require.Len(t, backward, len(forward))

			byKey := make(map[string]Change, len(backward))
			for _, c := range backward {
				byKey[c.Key] = c
			}
			for _, c := range forward {
				mirror, ok := byKey[c.Key]
				require.True(t, ok, "no mirrored change for %s", c.Key)
				switch c.Operation {
				case OpAdded:
					assert.Equal(t, OpRemoved, mirror.Operation, c.Key)
					assert.True(t, orderedmap.Equal(c.Value, mirror.OldValue), c.Key)
				case OpRemoved:
					assert.Equal(t, OpAdded, mirror.Operation, c.Key)
					assert.True(t, orderedmap.Equal(c.OldValue, mirror.Value), c.Key)
				case OpChanged:
					assert.Equal(t, OpChanged, mirror.Operation, c.Key)
					assert.True(t, orderedmap.Equal(c.Value, mirror.OldValue), c.Key)
					assert.True(t, orderedmap.Equal(c.OldValue, mirror.Value), c.Key)
				}
			}
		})
	}
}

func TestChange_UnmarshalKeepsOrderAndNumbers(t *testing.T) {
	var c Change
	require.NoError(t, json.Unmarshal([]byte(`{"operation":"changed","key":"k","value":{"z":1,"a":12345678901234567890},"old_value":null}`), &c))

	assert.Equal(t, OpChanged, c.Operation)
	assert.Equal(t, "k", c.Key)
	assert.Nil(t, c.OldValue)
	m, ok := c.Value.(*Snapshot)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a"}, m.Keys())
	v, _ := m.Get("a")
	assert.Equal(t, json.Number("12345678901234567890"), v)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &c))
}

func TestChange_MarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		want   string
	}{
		{"added", Change{Operation: OpAdded, Key: "Status", Value: "Booked"}, `{"operation":"added","key":"Status","value":"Booked"}`},
		{"removed null", Change{Operation: OpRemoved, Key: "k"}, `{"operation":"removed","key":"k","old_value":null}`},
		{"changed", Change{Operation: OpChanged, Key: "k", Value: 2.0, OldValue: "1"}, `{"operation":"changed","key":"k","value":2,"old_value":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.change)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestTag(t *testing.T) {
	tagged := Tag("RN1", []Change{{Operation: OpAdded, Key: "a"}, {Operation: OpRemoved, Key: "b"}})
	require.Len(t, tagged, 2)
	assert.Equal(t, "RN1", tagged[1].Reference)
	assert.Equal(t, "b", tagged[1].Key)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "None", FormatValue(nil))
	assert.Equal(t, "1024", FormatValue(1024.0))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "True", FormatValue(true))
	assert.Equal(t, "abc", FormatValue("abc"))
	assert.Equal(t, `[1,"a"]`, FormatValue([]any{1.0, "a"}))
}
