// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".orderwatch", "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(home, ".orderwatch"), cfg.LegacyDir)
	assert.Equal(t, filepath.Join(home, ".orderwatch", "option_codes.yaml"), cfg.Options.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Source.Workers)
	assert.Equal(t, history.DefaultIgnoredPrefixes, cfg.Status.IgnoredPrefixes)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricsFormat)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/orderwatch
language: de-DE
log:
  level: debug
  json: true
source:
  workers: 8
status:
  ignored_prefixes:
    - details.tasks.financing.
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/orderwatch", cfg.DataDir)
	assert.Equal(t, "de-DE", cfg.Language)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 8, cfg.Source.Workers)
	assert.Equal(t, []string{"details.tasks.financing."}, cfg.Status.IgnoredPrefixes)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricsFormat)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "data_dir: /srv/orderwatch\nlanguage: en-US\n")
	t.Setenv("ORDERWATCH_DATA_DIR", "/tmp/override")
	t.Setenv("ORDERWATCH_LANGUAGE", "de_DE.UTF-8")
	t.Setenv("ORDERWATCH_SOURCE_WORKERS", "2")
	t.Setenv("ORDERWATCH_IGNORED_PREFIXES", "a.,b.")
	t.Setenv("ORDERWATCH_OPTION_CODES", "/etc/orderwatch/codes.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, "de_DE.UTF-8", cfg.Language)
	assert.Equal(t, 2, cfg.Source.Workers)
	assert.Equal(t, []string{"a.", "b."}, cfg.Status.IgnoredPrefixes)
	assert.Equal(t, "/etc/orderwatch/codes.yaml", cfg.Options.File)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("ORDERWATCH_SOURCE_WORKERS", "many")

	_, err := Load(writeConfig(t, "data_dir: /srv\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "data_dir: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse the config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty data dir", "data_dir: \"\"\n"},
		{"bad language", "data_dir: /srv\nlanguage: \"not a locale!\"\n"},
		{"bad log level", "data_dir: /srv\nlog:\n  level: loud\n"},
		{"zero workers", "data_dir: /srv\nsource:\n  workers: 0\n"},
		{"bad metrics format", "data_dir: /srv\ntelemetry:\n  metrics_format: statsd\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.LegacyDir = "/legacy"

	assert.Equal(t, []string{"/data/tesla_orders.json", "/legacy/tesla_orders.json"}, cfg.OrdersPaths())
	assert.Equal(t, []string{"/data/tesla_order_history.json", "/legacy/tesla_order_history.json"}, cfg.HistoryPaths())

	cfg.LegacyDir = "/data/"
	assert.Equal(t, []string{"/data/tesla_orders.json"}, cfg.OrdersPaths())

	cfg.LegacyDir = ""
	assert.Equal(t, []string{"/data/tesla_order_history.json"}, cfg.HistoryPaths())
}
