// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig()

	assert.Equal(t, "weaviatetrace", cfg.ServiceName)
	assert.Equal(t, "otlp", cfg.TraceExporter)
	assert.Equal(t, "prometheus", cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.True(t, cfg.OTLPInsecure)
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()

	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"

	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, cfg)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_NoExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_StdoutExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "stdout"
	cfg.SyncExport = true

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "test.tracer", "TestOperation")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceID(ctx))
}

func TestInit_UnknownExporter(t *testing.T) {
	t.Run("trace", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = "zipkin"
		cfg.MetricExporter = "none"

		_, err := Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})

	t.Run("metric", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TraceExporter = "none"
		cfg.MetricExporter = "statsd"

		_, err := Init(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})
}

func TestMetricsHandler_NilWithoutPrometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	// Other tests in this package never enable prometheus.
	assert.Nil(t, MetricsHandler())
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	t.Run("records error and status", func(t *testing.T) {
		_, span := tp.Tracer("test").Start(context.Background(), "op")
		RecordError(span, errors.New("boom"), attribute.String("stage", "parse"))
		span.End()

		ended := recorder.Ended()
		require.NotEmpty(t, ended)
		last := ended[len(ended)-1]
		assert.Equal(t, codes.Error, last.Status().Code)
		assert.Equal(t, "boom", last.Status().Description)
		require.Len(t, last.Events(), 1)
		assert.Equal(t, "exception", last.Events()[0].Name)
	})

	t.Run("nil span and nil error are no-ops", func(t *testing.T) {
		RecordError(nil, errors.New("ignored"))

		_, span := tp.Tracer("test").Start(context.Background(), "op-ok")
		RecordError(span, nil)
		span.End()

		ended := recorder.Ended()
		assert.Equal(t, codes.Unset, ended[len(ended)-1].Status().Code)
	})
}

func TestAddSpanEventAndAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	AddSpanEvent(span, "document", attribute.Float64("distance", 0.1))
	SetSpanAttributes(span, attribute.Int("count", 1))
	SetSpanAttributes(span)
	AddSpanEvent(nil, "ignored")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "document", ended[0].Events()[0].Name)
	assert.Contains(t, ended[0].Attributes(), attribute.Int("count", 1))
}

func TestInjectContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	headers := http.Header{}
	InjectContext(ctx, headers)

	assert.Contains(t, headers.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestTraceID_Empty(t *testing.T) {
	assert.Equal(t, "", TraceID(context.Background()))
}
