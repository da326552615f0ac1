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

// SpanNamePrefix is prepended to every span name: "db.weaviate.<suffix>".
const SpanNamePrefix = "db.weaviate"

// connectionSpanSuffix names the optional span around client construction.
const connectionSpanSuffix = "__init__"

// -----------------------------------------------------------------------------
// API Version
// -----------------------------------------------------------------------------

// APIVersion identifies one of the two client API generations whose call
// sites are traced. Exactly one is active per Instrumentor.
type APIVersion int

const (
	// V3 is the classic REST + GraphQL builder API: schema, data objects,
	// batch and GraphQL Get/Aggregate/Raw.
	V3 APIVersion = 3

	// V4 is the collections API: collection-scoped data operations and
	// gRPC search and batch.
	V4 APIVersion = 4
)

// String returns "v3", "v4" or "unknown".
func (v APIVersion) String() string {
	switch v {
	case V3:
		return "v3"
	case V4:
		return "v4"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Descriptors
// -----------------------------------------------------------------------------

// Descriptor names one traced client call site.
//
// Description:
//
//	Module and Name locate the call site in the client API (package-like
//	path and receiver type), Function is the method name and becomes the
//	db.operation.name attribute verbatim, SpanName is the suffix of the
//	span name. Descriptors are plain values and never mutated.
type Descriptor struct {
	Module   string
	Name     string
	Function string
	SpanName string
}

// FullSpanName returns "db.weaviate.<SpanName>".
//
// When SpanName is empty the given runtime method name is used instead,
// and "unknown" when that is empty too.
func (d Descriptor) FullSpanName(method string) string {
	suffix := d.SpanName
	if suffix == "" {
		suffix = method
	}
	if suffix == "" {
		suffix = "unknown"
	}
	return SpanNamePrefix + "." + suffix
}

// MappingV3 lists the traced call sites of the V3 API, in registration order.
var MappingV3 = []Descriptor{
	// Schema operations
	{Module: "weaviate.schema", Name: "Schema", Function: "get", SpanName: "schema.get"},
	{Module: "weaviate.schema", Name: "Schema", Function: "create_class", SpanName: "schema.create_class"},
	{Module: "weaviate.schema", Name: "Schema", Function: "create", SpanName: "schema.create"},
	{Module: "weaviate.schema", Name: "Schema", Function: "delete_class", SpanName: "schema.delete_class"},
	{Module: "weaviate.schema", Name: "Schema", Function: "delete_all", SpanName: "schema.delete_all"},

	// Data CRUD operations
	{Module: "weaviate.data.crud_data", Name: "DataObject", Function: "create", SpanName: "data.crud_data.create"},
	{Module: "weaviate.data.crud_data", Name: "DataObject", Function: "validate", SpanName: "data.crud_data.validate"},
	{Module: "weaviate.data.crud_data", Name: "DataObject", Function: "get", SpanName: "data.crud_data.get"},

	// Batch operations
	{Module: "weaviate.batch.crud_batch", Name: "Batch", Function: "add_data_object", SpanName: "batch.crud_batch.add_data_object"},
	{Module: "weaviate.batch.crud_batch", Name: "Batch", Function: "flush", SpanName: "batch.crud_batch.flush"},

	// GraphQL query operations
	{Module: "weaviate.gql.query", Name: "Query", Function: "get", SpanName: "gql.query.get"},
	{Module: "weaviate.gql.query", Name: "Query", Function: "aggregate", SpanName: "gql.query.aggregate"},
	{Module: "weaviate.gql.query", Name: "Query", Function: "raw", SpanName: "gql.query.raw"},
	{Module: "weaviate.gql.get", Name: "GetBuilder", Function: "do", SpanName: "gql.query.get.do"},
}

// MappingV4 lists the traced call sites of the V4 API, in registration order.
var MappingV4 = []Descriptor{
	// Queries
	{Module: "weaviate.collections.queries.near_text.query", Name: "_NearTextQuery", Function: "near_text", SpanName: "collections.query.near_text"},
	{Module: "weaviate.collections.queries.fetch_objects.query", Name: "_FetchObjectsQuery", Function: "fetch_objects", SpanName: "collections.query.fetch_objects"},
	{Module: "weaviate.collections.grpc.query", Name: "_QueryGRPC", Function: "get", SpanName: "collections.query.get"},

	// Data
	{Module: "weaviate.collections.data", Name: "_DataCollection", Function: "insert", SpanName: "collections.data.insert"},
	{Module: "weaviate.collections.data", Name: "_DataCollection", Function: "replace", SpanName: "collections.data.replace"},
	{Module: "weaviate.collections.data", Name: "_DataCollection", Function: "update", SpanName: "collections.data.update"},

	// Collections
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "get", SpanName: "collections.get"},
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "create", SpanName: "collections.create"},
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "delete", SpanName: "collections.delete"},
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "delete_all", SpanName: "collections.delete_all"},
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "create_from_dict", SpanName: "collections.create_from_dict"},

	// Batch
	{Module: "weaviate.collections.batch.collection", Name: "_BatchCollection", Function: "add_object", SpanName: "collections.batch.add_object"},

	// Wire-level call sites reached through the REST transport and the
	// gRPC interceptor.
	{Module: "weaviate.collections.collections", Name: "_Collections", Function: "list_all", SpanName: "collections.list_all"},
	{Module: "weaviate.collections.data", Name: "_DataCollection", Function: "delete_by_id", SpanName: "collections.data.delete_by_id"},
	{Module: "weaviate.collections.data", Name: "_DataCollection", Function: "delete_many", SpanName: "collections.data.delete_many"},
	{Module: "weaviate.collections.batch.grpc", Name: "_BatchGRPC", Function: "objects", SpanName: "collections.batch.objects"},
	{Module: "weaviate.collections.tenants", Name: "_Tenants", Function: "get", SpanName: "collections.tenants.get"},
	{Module: "weaviate.collections.aggregate", Name: "_AggregateCollection", Function: "over_all", SpanName: "collections.aggregate.over_all"},
}

// Mapping returns the descriptor table for the given API version.
//
// Any version other than V4 yields the V3 table; unrecognized versions
// fall back silently to the earlier API.
func Mapping(v APIVersion) []Descriptor {
	if v == V4 {
		return MappingV4
	}
	return MappingV3
}

// Lookup finds the descriptor with the given span-name suffix in the
// table for version v.
func Lookup(v APIVersion, spanName string) (Descriptor, bool) {
	for _, d := range Mapping(v) {
		if d.SpanName == spanName {
			return d, true
		}
	}
	return Descriptor{}, false
}

// mustLookup is Lookup for the package's own static routing tables.
// A miss is a programming error in those tables.
func mustLookup(v APIVersion, spanName string) Descriptor {
	d, ok := Lookup(v, spanName)
	if !ok {
		panic("otelweaviate: no " + v.String() + " descriptor for " + spanName)
	}
	return d
}
