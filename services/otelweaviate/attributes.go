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

import "go.opentelemetry.io/otel/attribute"

// DBSystemWeaviate is the db.system value on every span.
const DBSystemWeaviate = "weaviate"

// Span attribute keys. The generic keys follow the OpenTelemetry database
// and server conventions; the db.weaviate.* keys are vendor-specific.
const (
	AttrDBSystem          = attribute.Key("db.system")
	AttrDBOperationName   = attribute.Key("db.operation.name")
	AttrServerAddress     = attribute.Key("server.address")
	AttrServerPort        = attribute.Key("server.port")
	AttrErrorType         = attribute.Key("error.type")
	AttrHTTPStatusCode    = attribute.Key("http.response.status_code")
	AttrCollectionName    = attribute.Key("db.weaviate.collection.name")
	AttrDocumentsCount    = attribute.Key("db.weaviate.documents.count")
	AttrDocumentContent   = attribute.Key("db.weaviate.document.content")
	AttrDocumentDistance  = attribute.Key("db.weaviate.document.distance")
	AttrDocumentCertainty = attribute.Key("db.weaviate.document.certainty")
	AttrDocumentScore     = attribute.Key("db.weaviate.document.score")
	AttrDocumentQuery     = attribute.Key("db.weaviate.document.query")
)

// DocumentEventName is the name of the per-document span event.
const DocumentEventName = "document"

// connectionAttributes returns server.address and server.port for the
// parts of conn that are known.
func connectionAttributes(conn Connection) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if conn.HasHost() {
		attrs = append(attrs, AttrServerAddress.String(conn.Host))
	}
	if conn.HasPort() {
		attrs = append(attrs, AttrServerPort.Int(conn.Port))
	}
	return attrs
}
