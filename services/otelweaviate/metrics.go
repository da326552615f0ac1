// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package otelweaviate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOperationDuration is the histogram of traced call durations.
const MetricOperationDuration = "db.client.operation.duration"

// durationBuckets are the bucket boundaries, in seconds, recommended for
// database client operation durations.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// instruments holds the metric instruments shared by all traced calls.
type instruments struct {
	duration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(ScopeName, metric.WithInstrumentationVersion(InstrumentationVersion))

	duration, err := meter.Float64Histogram(
		MetricOperationDuration,
		metric.WithDescription("Duration of Weaviate client operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return &instruments{duration: duration}, nil
}

// recordDuration records one call. errType is "" on success.
func (m *instruments) recordDuration(ctx context.Context, elapsed time.Duration, d Descriptor, collection, errType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrDBSystem.String(DBSystemWeaviate),
		AttrDBOperationName.String(d.Function),
	}
	if collection != "" {
		attrs = append(attrs, AttrCollectionName.String(collection))
	}
	if errType != "" {
		attrs = append(attrs, AttrErrorType.String(errType))
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}
