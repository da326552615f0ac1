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
	"net/http"
	"strings"

	protocol "github.com/weaviate/weaviate/grpc/generated/protocol/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/AleutianAI/weaviate-otel/services/telemetry"
)

// weaviateService is the full name prefix of Weaviate v1 gRPC methods.
const weaviateService = "/weaviate.v1.Weaviate/"

// UnaryClientInterceptor returns a gRPC interceptor that traces calls to
// the Weaviate v1 service.
//
// Description:
//
//	Search, BatchObjects, BatchDelete, TenantsGet and Aggregate are
//	mapped to collections API descriptors. Search is classified by its
//	operator: nearText selects near_text, no vector or keyword operator
//	selects fetch_objects, anything else selects the generic query. Other
//	methods, and every call while disabled, pass through untouched. The
//	gRPC surface belongs to the collections API, so calls also pass
//	through when the V3 table is active.
//
// Inputs:
//
//	conn - Server address. When absent it is taken from the
//	       ClientConn target.
//
// Example:
//
//	cc, err := grpc.NewClient(addr,
//	    grpc.WithTransportCredentials(insecure.NewCredentials()),
//	    grpc.WithUnaryInterceptor(inst.UnaryClientInterceptor(otelweaviate.Connection{})),
//	)
//
// Thread Safety: The returned interceptor is safe for concurrent use.
func (i *Instrumentor) UnaryClientInterceptor(conn Connection) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		st := i.active(ctx)
		if st == nil || st.version != V4 {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		inv, ok := routeGRPC(method, req)
		if !ok {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		inv.Connection = conn
		if !conn.HasHost() && cc != nil {
			inv.Connection = connectionFromTarget(cc.Target())
		}

		_, err := st.intercept(ctx, inv, func(ctx context.Context) (any, error) {
			return reply, invoker(injectMetadata(ctx), method, req, reply, cc, opts...)
		}, callHooks{})
		return err
	}
}

// routeGRPC maps a Weaviate v1 method and request to an invocation.
func routeGRPC(method string, req any) (Invocation, bool) {
	name, ok := strings.CutPrefix(method, weaviateService)
	if !ok {
		return Invocation{}, false
	}

	inv := Invocation{Method: name, Request: req}
	var span string
	switch name {
	case "Search":
		span = "collections.query.get"
		if sr, ok := req.(*protocol.SearchRequest); ok {
			switch {
			case sr.GetNearText() != nil:
				span = "collections.query.near_text"
				inv.Query = sr.GetNearText().GetQuery()
			case !hasSearchOperator(sr):
				span = "collections.query.fetch_objects"
			}
		}
	case "BatchObjects":
		span = "collections.batch.objects"
		if br, ok := req.(*protocol.BatchObjectsRequest); ok {
			inv.Request = batchObjectsView{req: br}
		}
	case "BatchDelete":
		span = "collections.data.delete_many"
	case "TenantsGet":
		span = "collections.tenants.get"
	case "Aggregate":
		span = "collections.aggregate.over_all"
	default:
		return Invocation{}, false
	}

	inv.Descriptor = mustLookup(V4, span)
	return inv, true
}

func hasSearchOperator(sr *protocol.SearchRequest) bool {
	return sr.GetNearVector() != nil ||
		sr.GetNearObject() != nil ||
		sr.GetHybridSearch() != nil ||
		sr.GetBm25Search() != nil
}

// batchObjectsView exposes the collection of the first batched object.
type batchObjectsView struct {
	req *protocol.BatchObjectsRequest
}

func (b batchObjectsView) GetCollection() string {
	for _, obj := range b.req.GetObjects() {
		if obj != nil {
			return obj.GetCollection()
		}
	}
	return ""
}

// injectMetadata writes the W3C trace context into the outgoing gRPC
// metadata of ctx.
func injectMetadata(ctx context.Context) context.Context {
	h := http.Header{}
	telemetry.InjectContext(ctx, h)
	for k, vals := range h {
		for _, v := range vals {
			ctx = metadata.AppendToOutgoingContext(ctx, strings.ToLower(k), v)
		}
	}
	return ctx
}

// connectionFromTarget parses a gRPC dial target such as
// "dns:///localhost:50051" or "localhost:50051".
func connectionFromTarget(target string) Connection {
	if idx := strings.Index(target, ":///"); idx >= 0 {
		target = target[idx+len(":///"):]
	} else if idx := strings.Index(target, "://"); idx >= 0 {
		target = target[idx+len("://"):]
	}
	return connectionFromHostPort(target)
}
