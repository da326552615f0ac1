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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/weaviate-otel/services/telemetry"
)

// Invocation describes one intercepted client call.
//
// Description:
//
//	Descriptor selects the span name and operation attribute. Method is
//	the runtime method name used when the descriptor has no span name.
//	Request and Target are inspected by the active Adapter for the
//	collection name: Request is the call's request value (for example a
//	gRPC request message), Target is the handle the call is bound to
//	(for example a collection handle). Connection overrides the
//	connection carried by the context. Query, when set, is attached as
//	JSON to every document event.
type Invocation struct {
	Descriptor Descriptor
	Method     string
	Request    any
	Target     any
	Connection Connection
	Query      any
}

// Collection names the target collection of an Invocation when the
// caller holds no handle of its own. Both adapters accept it.
type Collection string

// Name returns the collection name.
func (c Collection) Name() string { return string(c) }

// callHooks customize how a wire-level caller's result is interpreted.
type callHooks struct {
	// view maps the call result to the value documents are extracted
	// from. Nil means the result itself.
	view func(result any) (any, error)

	// failure classifies a result that carries no Go error but still
	// failed (an HTTP error status). It returns "" for success.
	failure func(result any) string
}

// Intercept runs call inside a CLIENT span described by inv.
//
// Description:
//
//	When disabled, or when ctx is suppressed, call runs unchanged with
//	no span. Otherwise a span named "db.weaviate.<span name>" is started
//	as a child of the span in ctx and carries db.system,
//	db.operation.name, the collection name and server address when known.
//	For similarity-search descriptors the result is handed to the active
//	Adapter, and any documents found are recorded as the document count
//	and one "document" event each. Extraction failures are logged at
//	debug level and leave the span without document data.
//
// Inputs:
//
//	ctx - Parent context. Its span becomes the parent of the new span.
//	inv - Description of the call.
//	call - The wrapped call. Receives the context carrying the new span.
//
// Outputs:
//
//	any - The value returned by call, unchanged.
//	error - The error returned by call, unchanged. ErrNilCall when call
//	        is nil.
//
// Example:
//
//	d, _ := otelweaviate.Lookup(otelweaviate.V4, "collections.delete_all")
//	_, err := inst.Intercept(ctx, otelweaviate.Invocation{Descriptor: d},
//	    func(ctx context.Context) (any, error) {
//	        return nil, client.Schema().AllDeleter().Do(ctx)
//	    })
//
// Thread Safety: Safe for concurrent use.
func (i *Instrumentor) Intercept(ctx context.Context, inv Invocation, call func(context.Context) (any, error)) (any, error) {
	if call == nil {
		return nil, ErrNilCall
	}
	st := i.active(ctx)
	if st == nil {
		return call(ctx)
	}
	return st.intercept(ctx, inv, call, callHooks{})
}

// Call is the typed form of Intercept. A nil Instrumentor means Default().
//
// Example:
//
//	resp, err := otelweaviate.Call(ctx, inst, inv,
//	    func(ctx context.Context) (*models.GraphQLResponse, error) {
//	        return client.GraphQL().Raw().WithQuery(q).Do(ctx)
//	    })
func Call[T any](ctx context.Context, inst *Instrumentor, inv Invocation, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilCall
	}
	if inst == nil {
		inst = Default()
	}

	res, err := inst.Intercept(ctx, inv, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	v, ok := res.(T)
	if !ok {
		return zero, err
	}
	return v, err
}

// intercept is the traced path shared by Intercept, the HTTP transport
// and the gRPC interceptor.
func (st *state) intercept(ctx context.Context, inv Invocation, call func(context.Context) (any, error), hooks callHooks) (result any, err error) {
	desc := inv.Descriptor
	collection := st.collectionName(inv)

	conn := inv.Connection
	if !conn.HasHost() && !conn.HasPort() {
		conn, _ = ConnectionFromContext(ctx)
	}

	attrs := []attribute.KeyValue{
		AttrDBSystem.String(DBSystemWeaviate),
		AttrDBOperationName.String(desc.Function),
	}
	if collection != "" {
		attrs = append(attrs, AttrCollectionName.String(collection))
	}
	attrs = append(attrs, connectionAttributes(conn)...)

	ctx, span := st.tracer.Start(ctx, desc.FullSpanName(inv.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	start := time.Now()
	var errType string
	defer func() {
		if r := recover(); r != nil {
			errType = "panic"
			span.SetStatus(codes.Error, fmt.Sprint(r))
			st.metrics.recordDuration(ctx, time.Since(start), desc, collection, errType)
			span.End()
			panic(r)
		}
		st.metrics.recordDuration(ctx, time.Since(start), desc, collection, errType)
		span.End()
	}()

	result, err = call(ctx)
	if err != nil {
		errType = fmt.Sprintf("%T", err)
		telemetry.RecordError(span, err, AttrErrorType.String(errType))
		span.SetAttributes(AttrErrorType.String(errType))
		return result, err
	}
	if hooks.failure != nil {
		errType = hooks.failure(result)
	}

	if errType == "" && IsSimilaritySearch(desc) {
		st.recordDocuments(span, inv, result, hooks)
	}
	return result, nil
}

func (st *state) collectionName(inv Invocation) string {
	name, err := st.adapter.CollectionName(inv)
	if err != nil {
		st.logger.Debug("collection name extraction failed",
			slog.String("operation", inv.Descriptor.Function),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return name
}

func (st *state) recordDocuments(span trace.Span, inv Invocation, result any, hooks callHooks) {
	value := result
	if hooks.view != nil {
		v, err := hooks.view(result)
		if err != nil {
			st.logger.Debug("response decode failed",
				slog.String("operation", inv.Descriptor.Function),
				slog.String("error", err.Error()),
			)
			return
		}
		value = v
	}

	docs, err := st.adapter.Documents(value)
	if err != nil {
		st.logger.Debug("document extraction failed",
			slog.String("operation", inv.Descriptor.Function),
			slog.String("error", err.Error()),
		)
		return
	}
	recordDocuments(span, docs, inv.Query)
}
