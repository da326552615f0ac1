// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package otelweaviate traces Weaviate client calls with OpenTelemetry.
//
// Every routed call produces one CLIENT span named "db.weaviate.<op>"
// carrying db.system, db.operation.name, the collection name and the
// server address. Similarity searches additionally record the number of
// result documents and one "document" event per result with its content
// and distance, certainty or score.
//
// # Seams
//
// Calls are reached through three seams:
//
//   - NewClient installs a tracing http.RoundTripper into the client's
//     http.Client; REST and GraphQL requests are routed by method and path.
//   - UnaryClientInterceptor traces the Weaviate v1 gRPC service.
//   - Intercept and Call wrap any other call site, such as client-side
//     batching or multi-request helpers.
//
// # API Versions
//
// Two descriptor tables exist: V3 for the classic REST and GraphQL API
// and V4 for the collections API. One is selected by Instrument from the
// linked client module version, or from WithClientVersion.
//
// # Usage
//
//	inst := otelweaviate.New(otelweaviate.WithTracerProvider(tp))
//	if err := inst.Instrument(); err != nil {
//	    return err
//	}
//	defer inst.Uninstrument()
//
//	client, conn, err := inst.NewClient(ctx, weaviate.Config{Host: "localhost:8080", Scheme: "http"})
//
// # Failure Isolation
//
// Extraction of collection names and documents never fails the wrapped
// call. Failures are logged at debug level and the span simply lacks the
// attribute. Errors from the wrapped call are returned unchanged.
package otelweaviate
