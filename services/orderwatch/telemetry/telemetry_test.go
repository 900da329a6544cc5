// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "orderwatch", cfg.ServiceName)
	assert.Equal(t, FormatPrometheus, cfg.MetricsFormat)
	assert.Empty(t, cfg.TraceFile)
	assert.Empty(t, cfg.MetricsFile)
}

func TestInit_NilContext(t *testing.T) {
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "m.txt")
	cfg.MetricsFormat = "statsd"

	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_PrometheusTextfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "metrics", "orderwatch.prom")

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry_test").Int64Counter("test_runs")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_runs")
}

func TestInit_TraceFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceFile = filepath.Join(t.TempDir(), "traces.json")

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "unit.span")
	span.End()

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(cfg.TraceFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "unit.span")
}

func TestInit_StdoutMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "metrics.json")
	cfg.MetricsFormat = FormatStdout

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry_test").Int64Counter("stdout_runs")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stdout_runs")
}
