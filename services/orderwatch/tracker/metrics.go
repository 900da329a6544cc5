// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracker

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
	tracer = otel.Tracer("orderwatch.tracker")
	meter  = otel.Meter("orderwatch.tracker")
)

var (
	refreshLatency metric.Float64Histogram
	refreshTotal   metric.Int64Counter
	changesTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		refreshLatency, err = meter.Float64Histogram(
			"refresh_duration_seconds",
			metric.WithDescription("Duration of refresh runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		refreshTotal, err = meter.Int64Counter(
			"refresh_total",
			metric.WithDescription("Refresh runs, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		changesTotal, err = meter.Int64Counter(
			"refresh_changes_total",
			metric.WithDescription("Changes detected across refresh runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRefreshSpan(ctx context.Context, runID string, cached bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tracker.Refresh",
		trace.WithAttributes(
			attribute.String("refresh.run_id", runID),
			attribute.Bool("refresh.cached", cached),
		),
	)
}

func setRefreshSpanResult(span trace.Span, res *Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if res == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("refresh.changes", len(res.Changes)),
		attribute.Bool("refresh.first_run", res.FirstRun),
		attribute.Bool("refresh.saved", res.Saved),
		attribute.Int("refresh.status", res.Status),
	)
}

func outcomeOf(res *Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case res == nil:
		return "unknown"
	case res.FirstRun:
		return "first_run"
	case res.KeptCached:
		return "kept_cached"
	case len(res.Changes) > 0:
		return "changed"
	default:
		return "unchanged"
	}
}

func recordRefreshMetrics(ctx context.Context, duration time.Duration, res *Result, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcomeOf(res, err)))
	refreshLatency.Record(ctx, duration.Seconds(), attrs)
	refreshTotal.Add(ctx, 1, attrs)
	if err == nil && res != nil && len(res.Changes) > 0 {
		changesTotal.Add(ctx, int64(len(res.Changes)),
			metric.WithAttributes(attribute.Bool("status_relevant", res.StatusRelevant)))
	}
}
