// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

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
	tracer = otel.Tracer("graphslice.backend")
	meter  = otel.Meter("graphslice.backend")

	metricsOnce      sync.Once
	operationLatency metric.Float64Histogram
	operationTotal   metric.Int64Counter
	retryTotal       metric.Int64Counter
	spawnTotal       metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		operationLatency, _ = meter.Float64Histogram(
			"graphslice.backend.operation.duration",
			metric.WithDescription("Duration of backend RPC operations in milliseconds"),
			metric.WithUnit("ms"),
		)
		operationTotal, _ = meter.Int64Counter(
			"graphslice.backend.operation.count",
			metric.WithDescription("Count of backend RPC operations by outcome"),
		)
		retryTotal, _ = meter.Int64Counter(
			"graphslice.backend.retry.count",
			metric.WithDescription("Count of backend RPC retries"),
		)
		spawnTotal, _ = meter.Int64Counter(
			"graphslice.backend.spawn.count",
			metric.WithDescription("Count of backend process spawns by outcome"),
		)
	})
}

func startOperationSpan(ctx context.Context, operation, filePath string) (context.Context, trace.Span) {
	initMetrics()
	return tracer.Start(ctx, "backend."+operation,
		trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("file_path", filePath),
		),
	)
}

func setOperationSpanResult(span trace.Span, resultCount int, err error) {
	span.SetAttributes(attribute.Int("result_count", resultCount))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recordOperationMetrics(ctx context.Context, operation string, duration time.Duration, success bool) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	operationLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	operationTotal.Add(ctx, 1, attrs)
}

func recordRetry(ctx context.Context, operation string, attempt int) {
	initMetrics()
	retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("attempt", attempt),
	))
}

func recordSpawn(ctx context.Context, success bool) {
	initMetrics()
	spawnTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
