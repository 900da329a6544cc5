// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("orderwatch.migrate")
	meter  = otel.Meter("orderwatch.migrate")
)

var (
	stepLatency metric.Float64Histogram
	stepTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		stepLatency, err = meter.Float64Histogram(
			"migrate_step_duration_seconds",
			metric.WithDescription("Duration of migration steps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stepTotal, err = meter.Int64Counter(
			"migrate_step_total",
			metric.WithDescription("Migration steps run, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startStepSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "migrate.Step",
		trace.WithAttributes(attribute.String("migrate.step", name)),
	)
}

func setStepSpanResult(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(
		attribute.String("migrate.path", outcome.Path),
		attribute.Bool("migrate.applied", outcome.Applied),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func recordStepMetrics(ctx context.Context, name string, duration time.Duration, outcome Outcome, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	result := "skipped"
	switch {
	case err != nil:
		result = "error"
	case outcome.Applied:
		result = "applied"
	}
	attrs := metric.WithAttributes(
		attribute.String("step", name),
		attribute.String("result", result),
	)
	stepLatency.Record(ctx, duration.Seconds(), attrs)
	stepTotal.Add(ctx, 1, attrs)
}
