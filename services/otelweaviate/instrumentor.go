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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of every tracer and meter the
// package creates.
const ScopeName = "github.com/AleutianAI/weaviate-otel/services/otelweaviate"

// InstrumentationVersion is reported as the instrumentation scope version.
const InstrumentationVersion = "0.1.0"

// ErrNilCall is returned by Intercept when no call is given.
var ErrNilCall = errors.New("otelweaviate: nil call")

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures an Instrumentor.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	clientVersion  string
	logger         *slog.Logger
	connectionSpan bool
}

// WithTracerProvider sets the TracerProvider spans are created from.
// Defaults to the global provider at Instrument time.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the MeterProvider for the operation duration
// histogram. Defaults to the global provider at Instrument time.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithClientVersion overrides client version detection, e.g. "4.4.0".
func WithClientVersion(v string) Option {
	return func(o *options) { o.clientVersion = v }
}

// WithLogger sets the logger used for debug output about extraction
// failures and state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConnectionSpan enables a "db.weaviate.__init__" span around client
// construction in NewClient. Off by default.
func WithConnectionSpan(enabled bool) Option {
	return func(o *options) { o.connectionSpan = enabled }
}

// -----------------------------------------------------------------------------
// Instrumentor
// -----------------------------------------------------------------------------

// Instrumentor owns the enable/disable state of the Weaviate
// instrumentation.
//
// Description:
//
//	While enabled, the HTTP transports, gRPC interceptors and Intercept
//	calls created from this Instrumentor emit one CLIENT span per routed
//	client call. While disabled they delegate to the wrapped call with
//	no span and no other side effect. The API version, descriptor table
//	and adapter are selected once per Instrument and stay fixed until
//	Uninstrument.
//
// Thread Safety:
//
//	Safe for concurrent use. Transitions are serialized by a mutex; the
//	hot path reads an immutable state snapshot through an atomic pointer
//	and never takes the lock.
type Instrumentor struct {
	mu    sync.Mutex
	opts  options
	state atomic.Pointer[state]
}

// state is the immutable snapshot published while enabled.
type state struct {
	version        APIVersion
	mapping        []Descriptor
	adapter        Adapter
	tracer         trace.Tracer
	metrics        *instruments
	logger         *slog.Logger
	connectionSpan bool
}

// New creates a disabled Instrumentor configured with opts.
//
// Example:
//
//	inst := otelweaviate.New(otelweaviate.WithTracerProvider(tp))
//	if err := inst.Instrument(); err != nil {
//	    return err
//	}
//	defer inst.Uninstrument()
func New(opts ...Option) *Instrumentor {
	i := &Instrumentor{}
	for _, opt := range opts {
		opt(&i.opts)
	}
	return i
}

// Instrument enables tracing.
//
// Description:
//
//	Applies opts, detects the client API version (WithClientVersion, else
//	the linked client module version, else V3) and publishes a new state
//	snapshot. Calling Instrument while already enabled is a no-op that
//	returns nil and ignores opts; call Uninstrument first to reconfigure.
//
// Outputs:
//
//	error - Non-nil only if the metric instruments cannot be created.
//
// Thread Safety: Safe for concurrent use.
func (i *Instrumentor) Instrument(opts ...Option) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state.Load() != nil {
		return nil
	}

	for _, opt := range opts {
		opt(&i.opts)
	}

	logger := i.opts.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "otelweaviate"))

	tp := i.opts.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := i.opts.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	metrics, err := newInstruments(mp)
	if err != nil {
		return fmt.Errorf("create instruments: %w", err)
	}

	raw := i.opts.clientVersion
	if raw == "" {
		raw = ClientModuleVersion()
	}
	version := DetectVersion(raw, logger)

	i.state.Store(&state{
		version: version,
		mapping: Mapping(version),
		adapter: NewAdapter(version),
		tracer: tp.Tracer(ScopeName,
			trace.WithInstrumentationVersion(InstrumentationVersion),
			trace.WithSchemaURL(semconv.SchemaURL),
		),
		metrics:        metrics,
		logger:         logger,
		connectionSpan: i.opts.connectionSpan,
	})

	logger.Debug("instrumentation enabled",
		slog.String("api", version.String()),
		slog.String("client_version", raw),
		slog.Int("descriptors", len(Mapping(version))),
	)
	return nil
}

// Uninstrument disables tracing. It is a no-op when not enabled.
//
// Transports and interceptors created earlier stay installed and become
// pass-through until the next Instrument.
func (i *Instrumentor) Uninstrument() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if st := i.state.Swap(nil); st != nil {
		st.logger.Debug("instrumentation disabled")
	}
}

// Enabled reports whether tracing is enabled.
func (i *Instrumentor) Enabled() bool {
	return i.state.Load() != nil
}

// Version returns the API version selected by the last Instrument, and
// false when disabled.
func (i *Instrumentor) Version() (APIVersion, bool) {
	st := i.state.Load()
	if st == nil {
		return 0, false
	}
	return st.version, true
}

// Descriptors returns the active descriptor table, or nil when disabled.
func (i *Instrumentor) Descriptors() []Descriptor {
	st := i.state.Load()
	if st == nil {
		return nil
	}
	return st.mapping
}

// -----------------------------------------------------------------------------
// Process-wide instance
// -----------------------------------------------------------------------------

var defaultInstrumentor = New()

// Default returns the process-wide Instrumentor used by the package-level
// Instrument and Uninstrument functions.
func Default() *Instrumentor { return defaultInstrumentor }

// Instrument enables the process-wide Instrumentor.
func Instrument(opts ...Option) error { return defaultInstrumentor.Instrument(opts...) }

// Uninstrument disables the process-wide Instrumentor.
func Uninstrument() { defaultInstrumentor.Uninstrument() }

// -----------------------------------------------------------------------------
// Suppression
// -----------------------------------------------------------------------------

type suppressKey struct{}

// SuppressInstrumentation returns a context under which no Weaviate
// spans are created, even while enabled. Use it for calls made by the
// telemetry pipeline itself.
func SuppressInstrumentation(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

// IsSuppressed reports whether ctx was derived from
// SuppressInstrumentation.
func IsSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}

// active returns the state to trace ctx with, or nil to pass through.
func (i *Instrumentor) active(ctx context.Context) *state {
	st := i.state.Load()
	if st == nil || IsSuppressed(ctx) {
		return nil
	}
	return st
}

// log returns the enabled logger, or the configured one while disabled.
func (i *Instrumentor) log() *slog.Logger {
	if st := i.state.Load(); st != nil {
		return st.logger
	}
	i.mu.Lock()
	logger := i.opts.logger
	i.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", "otelweaviate"))
}
