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
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/weaviate/weaviate/entities/models"
	protocol "github.com/weaviate/weaviate/grpc/generated/protocol/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

var (
	// ErrExtraction is the base error for any failure while pulling span
	// data out of call arguments or results. It never reaches callers of
	// the instrumented client.
	ErrExtraction = errors.New("extraction failed")

	// errUnsupportedShape means the value is not a shape this extractor
	// knows. Adapters use it to try the other shape.
	errUnsupportedShape = fmt.Errorf("%w: unsupported shape", ErrExtraction)
)

// =============================================================================
// Adapter
// =============================================================================

// Adapter extracts span data for one client API version.
//
// Description:
//
//	One Adapter is chosen when instrumentation is enabled and used for
//	every call until it is disabled. Both methods return explicit
//	results: an error means "absent" to the interceptor and is only
//	logged at debug level. Implementations recover from panics inside
//	extraction and report them as ErrExtraction.
//
// Thread Safety: Implementations are stateless and safe for concurrent use.
type Adapter interface {
	// Version returns the API version this adapter serves.
	Version() APIVersion

	// CollectionName returns the collection the invocation targets, or
	// "" with a nil error when none can be determined.
	CollectionName(inv Invocation) (string, error)

	// Documents returns the similarity-search documents in result. Only
	// the first page of a paged result is inspected.
	Documents(result any) ([]Document, error)
}

// NewAdapter returns the adapter for v. Unknown versions get the V3
// adapter.
func NewAdapter(v APIVersion) Adapter {
	if v == V4 {
		return v4Adapter{}
	}
	return v3Adapter{}
}

// collectionRequest is implemented by every Weaviate v1 gRPC request that
// targets one collection, and by the REST request views built by the
// transport.
type collectionRequest interface {
	GetCollection() string
}

// namedCollection is a collection-scoped handle (collections API).
type namedCollection interface {
	Name() string
}

// classedCollection is a class-scoped handle (classic API).
type classedCollection interface {
	ClassName() string
}

// v3Adapter handles the classic REST + GraphQL API.
type v3Adapter struct{}

func (v3Adapter) Version() APIVersion { return V3 }

func (v3Adapter) CollectionName(inv Invocation) (string, error) {
	return safely(func() (string, error) {
		if name := requestCollection(inv.Request); name != "" {
			return name, nil
		}
		if h, ok := inv.Target.(classedCollection); ok && h.ClassName() != "" {
			return h.ClassName(), nil
		}
		if h, ok := inv.Target.(namedCollection); ok {
			return h.Name(), nil
		}
		return "", nil
	})
}

func (v3Adapter) Documents(result any) ([]Document, error) {
	return safely(func() ([]Document, error) {
		docs, err := nestedDocuments(result)
		if errors.Is(err, errUnsupportedShape) {
			return typedDocuments(result)
		}
		return docs, err
	})
}

// v4Adapter handles the collections API and gRPC search.
type v4Adapter struct{}

func (v4Adapter) Version() APIVersion { return V4 }

func (v4Adapter) CollectionName(inv Invocation) (string, error) {
	return safely(func() (string, error) {
		if name := requestCollection(inv.Request); name != "" {
			return name, nil
		}
		if h, ok := inv.Target.(namedCollection); ok && h.Name() != "" {
			return h.Name(), nil
		}
		if h, ok := inv.Target.(classedCollection); ok {
			return h.ClassName(), nil
		}
		return "", nil
	})
}

func (v4Adapter) Documents(result any) ([]Document, error) {
	return safely(func() ([]Document, error) {
		docs, err := typedDocuments(result)
		if errors.Is(err, errUnsupportedShape) {
			return nestedDocuments(result)
		}
		return docs, err
	})
}

func requestCollection(req any) string {
	if r, ok := req.(collectionRequest); ok {
		return r.GetCollection()
	}
	return ""
}

// safely runs fn and converts a panic into ErrExtraction.
func safely[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = fmt.Errorf("%w: panic: %v", ErrExtraction, r)
		}
	}()
	return fn()
}

// =============================================================================
// Nested-mapping shape
// =============================================================================

// nestedDocuments walks data -> query key -> collection -> []object, as
// returned by GraphQL Get queries. Each object's "_additional" entry is
// removed from the content and mined for scores.
func nestedDocuments(result any) ([]Document, error) {
	var data map[string]any
	switch r := result.(type) {
	case *models.GraphQLResponse:
		if r == nil {
			return nil, errUnsupportedShape
		}
		data = fromJSONObjects(r.Data)
	case models.GraphQLResponse:
		data = fromJSONObjects(r.Data)
	case map[string]any:
		raw, ok := r["data"]
		if !ok {
			return nil, errUnsupportedShape
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: data is %T", ErrExtraction, raw)
		}
		data = m
	default:
		return nil, errUnsupportedShape
	}

	var docs []Document
	for _, queryKey := range sortedKeys(data) {
		collections, ok := data[queryKey].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: data.%s is %T", ErrExtraction, queryKey, data[queryKey])
		}
		for _, collection := range sortedKeys(collections) {
			objects, ok := collections[collection].([]any)
			if !ok {
				return nil, fmt.Errorf("%w: data.%s.%s is %T", ErrExtraction, queryKey, collection, collections[collection])
			}
			for i, raw := range objects {
				obj, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: data.%s.%s[%d] is %T", ErrExtraction, queryKey, collection, i, raw)
				}
				docs = append(docs, nestedDocument(obj))
			}
		}
	}
	return docs, nil
}

func nestedDocument(obj map[string]any) Document {
	content := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == "_additional" {
			continue
		}
		content[k] = v
	}

	doc := Document{Content: content}
	if meta, ok := obj["_additional"].(map[string]any); ok {
		doc.scoresFrom(meta)
	}
	return doc
}

func fromJSONObjects(in map[string]models.JSONObject) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Typed-object shape
// =============================================================================

// typedDocuments reads results that expose a list of objects with
// properties and optional metadata.
func typedDocuments(result any) ([]Document, error) {
	switch r := result.(type) {
	case *protocol.SearchReply:
		if r == nil {
			return nil, errUnsupportedShape
		}
		return searchReplyDocuments(r)
	case *models.ObjectsListResponse:
		if r == nil {
			return nil, errUnsupportedShape
		}
		return objectDocuments(r.Objects), nil
	case []*models.Object:
		return objectDocuments(r), nil
	default:
		return nil, errUnsupportedShape
	}
}

func searchReplyDocuments(reply *protocol.SearchReply) ([]Document, error) {
	docs := make([]Document, 0, len(reply.GetResults()))
	for _, res := range reply.GetResults() {
		if res == nil {
			continue
		}

		var content any
		if props := res.GetProperties(); props != nil {
			b, err := protojson.Marshal(props)
			if err != nil {
				return nil, fmt.Errorf("%w: encode properties: %v", ErrExtraction, err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(b, &decoded); err != nil {
				return nil, fmt.Errorf("%w: decode properties: %v", ErrExtraction, err)
			}
			content = decoded
		}

		doc := Document{Content: content}
		if meta := res.GetMetadata(); meta != nil {
			if meta.GetDistancePresent() {
				doc.Distance = float64Ptr(float64(meta.GetDistance()))
			}
			if meta.GetCertaintyPresent() {
				doc.Certainty = float64Ptr(float64(meta.GetCertainty()))
			}
			if meta.GetScorePresent() {
				doc.Score = float64Ptr(float64(meta.GetScore()))
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func objectDocuments(objects []*models.Object) []Document {
	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		doc := Document{Content: obj.Properties}
		doc.scoresFrom(map[string]any(obj.Additional))
		docs = append(docs, doc)
	}
	return docs
}

func float64Ptr(f float64) *float64 { return &f }
