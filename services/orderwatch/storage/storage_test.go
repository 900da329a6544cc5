// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON_NotFound(t *testing.T) {
	_, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrParse)
	assert.True(t, IsLoadError(err))

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, NotFound, le.Kind)
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":`), 0600))

	_, err := ReadJSON(path)

	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "parse_error")
}

func TestReadJSON_Directory(t *testing.T) {
	_, err := ReadJSON(t.TempDir())

	require.Error(t, err)
	assert.False(t, IsLoadError(err))
}

func TestWriteJSON_IndentsAndKeepsUnicode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	require.NoError(t, WriteJSON(path, map[string]string{"city": "Köln <1>"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"city\": \"Köln <1>\"\n}", string(data))
}

func TestWriteAtomic_ReplacesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, WriteAtomic(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWriteAtomic_FailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "store.json")
	require.NoError(t, os.Mkdir(target, 0750))

	err := WriteAtomic(target, []byte("x"))

	require.Error(t, err)
	info, statErr := os.Stat(target)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "primary.json")
	fallback := filepath.Join(dir, "fallback.json")

	_, ok := Locate(primary, fallback)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(fallback, []byte("[]"), 0600))
	got, ok := Locate(primary, fallback)
	assert.True(t, ok)
	assert.Equal(t, fallback, got)

	require.NoError(t, os.WriteFile(primary, []byte("[]"), 0600))
	got, _ = Locate("", primary, fallback)
	assert.Equal(t, primary, got)

	_, ok = Locate(dir)
	assert.False(t, ok, "directories are not store files")
}
