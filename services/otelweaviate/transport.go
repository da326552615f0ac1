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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/weaviate-otel/services/telemetry"
)

// Transport returns an http.RoundTripper that traces the Weaviate REST
// and GraphQL calls made through base.
//
// Description:
//
//	Each request is matched against the REST routes of the active API
//	version. Matched requests run inside a span built by the same path
//	as Intercept, with conn as the server address and the W3C trace
//	context injected into the outgoing headers. Unmatched requests, and
//	all requests while disabled, go to base untouched. Responses with a
//	non-2xx status mark the span as failed and are returned unchanged.
//
// Inputs:
//
//	base - The transport to delegate to. Nil means http.DefaultTransport.
//	conn - Server address of the client this transport belongs to.
//
// Outputs:
//
//	http.RoundTripper - The tracing transport.
//
// Example:
//
//	httpClient := &http.Client{Transport: inst.Transport(nil, otelweaviate.ParseURL(url))}
//
// Thread Safety: The returned transport is safe for concurrent use.
func (i *Instrumentor) Transport(base http.RoundTripper, conn Connection) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &tracingTransport{inst: i, base: base, conn: conn}
}

type tracingTransport struct {
	inst *Instrumentor
	base http.RoundTripper
	conn Connection
}

// RoundTrip implements http.RoundTripper.
func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	st := t.inst.active(req.Context())
	if st == nil {
		return t.base.RoundTrip(req)
	}

	body, err := peekRequestBody(req)
	if err != nil {
		st.logger.Debug("request body unavailable", slog.String("error", err.Error()))
	}

	route, ok := routeREST(st.version, req.Method, req.URL, body)
	if !ok {
		return t.base.RoundTrip(req)
	}

	inv := Invocation{
		Descriptor: route.descriptor,
		Method:     req.Method + " " + req.URL.Path,
		Request:    route.request,
		Target:     route.target,
		Connection: t.conn,
		Query:      route.query,
	}

	var resp *http.Response
	_, err = st.intercept(req.Context(), inv, func(ctx context.Context) (any, error) {
		out := req.Clone(ctx)
		telemetry.InjectContext(ctx, out.Header)

		r, err := t.base.RoundTrip(out)
		resp = r
		if err != nil {
			return r, err
		}
		markStatus(trace.SpanFromContext(ctx), r.StatusCode)
		return r, nil
	}, callHooks{
		view:    func(result any) (any, error) { return decodeResponse(result, route.response) },
		failure: statusFailure,
	})
	return resp, err
}

// peekRequestBody returns a copy of the request body without consuming
// it. Requests built by http.NewRequest carry GetBody for this.
func peekRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return nil, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func markStatus(span trace.Span, code int) {
	span.SetAttributes(AttrHTTPStatusCode.Int(code))
	if code >= 200 && code < 300 {
		return
	}
	span.SetAttributes(AttrErrorType.String(strconv.Itoa(code)))
	span.SetStatus(codes.Error, http.StatusText(code))
}

func statusFailure(result any) string {
	resp, ok := result.(*http.Response)
	if !ok || resp == nil {
		return ""
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ""
	}
	return strconv.Itoa(resp.StatusCode)
}

// decodeResponse reads the response body, restores it for the caller and
// decodes it into the client model type for kind.
func decodeResponse(result any, kind responseKind) (any, error) {
	resp, ok := result.(*http.Response)
	if !ok || resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("%w: no response body", ErrExtraction)
	}
	if kind == responseNone {
		return nil, fmt.Errorf("%w: response not decoded for this route", ErrExtraction)
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrExtraction, err)
	}

	switch kind {
	case responseGraphQL:
		var out models.GraphQLResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: decode graphql response: %v", ErrExtraction, err)
		}
		return &out, nil
	case responseObjectList:
		var out models.ObjectsListResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: decode object list: %v", ErrExtraction, err)
		}
		return &out, nil
	default:
		var out models.Object
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: decode object: %v", ErrExtraction, err)
		}
		return []*models.Object{&out}, nil
	}
}
