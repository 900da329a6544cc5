// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wires the OpenTelemetry SDK for a single CLI run.
//
// Spans are exported as JSON lines to a trace file. Metrics are collected
// in memory and written once at shutdown, either as a Prometheus textfile
// (for node_exporter's textfile collector) or as JSON via stdoutmetric.
// With both files unset Init installs nothing and the global no-op
// providers stay in place.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported metrics format.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Metrics formats.
const (
	FormatPrometheus = "prometheus"
	FormatStdout     = "stdout"
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this program in spans and metrics.
	ServiceName string

	// ServiceVersion is the version string for this program.
	ServiceVersion string

	// TraceFile receives spans as JSON. Empty disables tracing.
	TraceFile string

	// MetricsFile receives metrics at shutdown. Empty disables metrics.
	MetricsFile string

	// MetricsFormat is FormatPrometheus (default) or FormatStdout.
	MetricsFormat string
}

// DefaultConfig returns a config with tracing and metrics disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "orderwatch",
		ServiceVersion: "dev",
		MetricsFormat:  FormatPrometheus,
	}
}

// Init installs the global tracer and meter providers described by cfg.
//
// # Description
//
// The returned shutdown flushes spans, writes the metrics file and closes
// every file Init opened. It must be called once on exit.
//
// # Inputs
//
//   - ctx: Must not be nil.
//   - cfg: Telemetry configuration.
//
// # Outputs
//
//   - shutdown: Cleanup; never nil on success.
//   - error: Non-nil when an exporter or file cannot be set up.
//
// # Thread Safety
//
// Call once at startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = cleanup(ctx)
		}
	}()

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceFile != "" {
		tp, closeFile, err := initTracer(cfg.TraceFile, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown, closeFile)
	}

	if cfg.MetricsFile != "" {
		fns, err := initMeter(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, fns...)
	}

	return cleanup, nil
}

func initTracer(path string, res *resource.Resource) (*trace.TracerProvider, func(context.Context) error, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("create exporter: %w", err)
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	return tp, func(context.Context) error { return f.Close() }, nil
}

// initMeter installs the meter provider and returns its shutdown steps in
// order.
func initMeter(cfg Config, res *resource.Resource) ([]func(context.Context) error, error) {
	format := cfg.MetricsFormat
	if format == "" {
		format = FormatPrometheus
	}

	switch format {
	case FormatPrometheus:
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)
		path := cfg.MetricsFile
		writeFile := func(context.Context) error {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}
			return prometheus.WriteToTextfile(path, registry)
		}
		return []func(context.Context) error{writeFile, mp.Shutdown}, nil

	case FormatStdout:
		f, err := openAppend(cfg.MetricsFile)
		if err != nil {
			return nil, err
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(f))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		)
		otel.SetMeterProvider(mp)
		closeFile := func(context.Context) error { return f.Close() }
		return []func(context.Context) error{mp.Shutdown, closeFile}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, format)
	}
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
