// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage reads and writes the JSON files backing orderwatch's
// stores.
//
// Reads distinguish a missing file from a malformed one through
// LoadError, so callers can choose to treat both as "empty" while still
// logging what happened. Writes go to a temp file in the target directory
// and are renamed into place, so readers observe either the previous
// content or the new content.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound marks a LoadError for a file that does not exist.
	ErrNotFound = errors.New("store file not found")

	// ErrParse marks a LoadError for a file that is not valid JSON or has
	// an unexpected shape.
	ErrParse = errors.New("store file malformed")
)

// LoadErrorKind classifies a failed load.
type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota + 1
	ParseError
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// LoadError reports why a store file could not be loaded.
//
// errors.Is matches ErrNotFound or ErrParse depending on Kind.
type LoadError struct {
	Path string
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrParse:
		return e.Kind == ParseError
	}
	return false
}

// IsLoadError reports whether err is a NotFound or ParseError LoadError,
// the two conditions callers recover from by using an empty store.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// ReadJSON reads path and checks that it holds valid JSON.
//
// # Outputs
//
//   - []byte: File content.
//   - error: *LoadError with Kind NotFound or ParseError, or a plain I/O
//     error for anything else (permissions, EISDIR).
func ReadJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Kind: NotFound, Err: err}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, &LoadError{Path: path, Kind: ParseError, Err: errors.New("invalid JSON")}
	}
	return data, nil
}

// Locate returns the first candidate path that exists as a regular file.
func Locate(candidates ...string) (string, bool) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// WriteJSON encodes v with two-space indentation, non-ASCII characters
// left as-is, and writes it atomically to path.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteAtomic(path, bytes.TrimRight(buf.Bytes(), "\n"))
}

// WriteAtomic replaces path with data via temp file and rename.
//
// # Description
//
// The temp file lives next to path so the rename stays on one
// filesystem. The parent directory is created if needed. On any failure
// the temp file is removed and path is left untouched.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tempPath, 0600); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}

	success = true
	return nil
}
