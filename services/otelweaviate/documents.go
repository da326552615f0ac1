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
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/weaviate-otel/services/telemetry"
)

// Document is one similarity-search result pulled out of a call result.
//
// Content is the object's properties with vendor metadata removed.
// Distance, Certainty and Score are nil when the result did not carry
// them.
type Document struct {
	Content   any
	Distance  *float64
	Certainty *float64
	Score     *float64
}

// IsSimilaritySearch reports whether results of calls described by d are
// inspected for documents.
//
// The module path must contain "query", or the function name must
// contain "do", "near_text" or "fetch_objects". Matching is
// case-insensitive substring matching.
func IsSimilaritySearch(d Descriptor) bool {
	module := strings.ToLower(d.Module)
	if strings.Contains(module, "query") {
		return true
	}
	fn := strings.ToLower(d.Function)
	for _, marker := range []string{"do", "near_text", "fetch_objects"} {
		if strings.Contains(fn, marker) {
			return true
		}
	}
	return false
}

// eventAttributes builds the attributes of one "document" span event.
//
// Content is always present (JSON). Score fields are emitted only when
// set, and the query only when the invocation carried one.
func (d Document) eventAttributes(query string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	attrs = append(attrs, AttrDocumentContent.String(marshalContent(d.Content)))
	if d.Distance != nil {
		attrs = append(attrs, AttrDocumentDistance.Float64(*d.Distance))
	}
	if d.Certainty != nil {
		attrs = append(attrs, AttrDocumentCertainty.Float64(*d.Certainty))
	}
	if d.Score != nil {
		attrs = append(attrs, AttrDocumentScore.Float64(*d.Score))
	}
	if query != "" {
		attrs = append(attrs, AttrDocumentQuery.String(query))
	}
	return attrs
}

// recordDocuments sets the document count and emits one event per
// document on span. Nothing is recorded for an empty slice.
func recordDocuments(span trace.Span, docs []Document, query any) {
	if len(docs) == 0 {
		return
	}
	telemetry.SetSpanAttributes(span, AttrDocumentsCount.Int(len(docs)))

	q := encodeQuery(query)
	for _, doc := range docs {
		telemetry.AddSpanEvent(span, DocumentEventName, doc.eventAttributes(q)...)
	}
}

// encodeQuery renders the query as JSON, or "" when there is none.
func encodeQuery(query any) string {
	switch q := query.(type) {
	case nil:
		return ""
	case string:
		if q == "" {
			return ""
		}
	case []string:
		if len(q) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(query)
	if err != nil {
		return fmt.Sprint(query)
	}
	return string(b)
}

// marshalContent renders document content as JSON. Values that cannot be
// encoded fall back to their fmt representation.
func marshalContent(content any) string {
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(b)
}

// toFloat converts the numeric shapes seen in decoded responses. Weaviate
// reports GraphQL scores as strings.
func toFloat(v any) (*float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}
	return &f, true
}

// scoresFrom fills Distance, Certainty and Score from a metadata map such
// as GraphQL "_additional" or a REST object's Additional.
func (d *Document) scoresFrom(meta map[string]any) {
	if meta == nil {
		return
	}
	if f, ok := toFloat(meta["distance"]); ok {
		d.Distance = f
	}
	if f, ok := toFloat(meta["certainty"]); ok {
		d.Certainty = f
	}
	if f, ok := toFloat(meta["score"]); ok {
		d.Score = f
	}
}
