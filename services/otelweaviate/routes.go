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
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// responseKind selects how a routed response body is decoded for
// document extraction.
type responseKind int

const (
	responseNone responseKind = iota
	responseGraphQL
	responseObjectList
	responseObject
)

// restRoute is a matched REST call.
type restRoute struct {
	descriptor Descriptor
	request    restRequest
	target     any
	query      any
	response   responseKind
}

// restRequest is the request view the adapters read the collection from.
type restRequest struct {
	Method     string
	Path       string
	Collection string
	GraphQL    string
}

// GetCollection returns the collection named in the request body or URL.
func (r restRequest) GetCollection() string { return r.Collection }

// collectionHandle is the target of a collection-scoped REST path.
type collectionHandle struct{ name string }

func (h collectionHandle) Name() string { return h.name }

// classHandle is the target of a class-scoped REST path.
type classHandle struct{ name string }

func (h classHandle) ClassName() string { return h.name }

var (
	// graphQLOperation matches "{Get {Article ..." and the Aggregate form.
	graphQLOperation = regexp.MustCompile(`^\s*\{\s*(Get|Aggregate|Explore)\s*\{\s*([A-Za-z_][A-Za-z0-9_]*)`)

	// graphQLNearText captures the concepts list of a nearText argument.
	graphQLNearText = regexp.MustCompile(`nearText\s*:\s*\{[^}]*?concepts\s*:\s*(\[[^\]]*\])`)
)

// routeREST maps a REST request of the Weaviate v1 API to a descriptor of
// the active version. Requests outside the traced surface are not
// matched.
func routeREST(v APIVersion, method string, u *url.URL, body []byte) (restRoute, bool) {
	segments, ok := apiSegments(u.Path)
	if !ok || len(segments) == 0 {
		return restRoute{}, false
	}

	req := restRequest{Method: method, Path: u.Path}
	var r restRoute
	var span string

	switch segments[0] {
	case "schema":
		span, r = routeSchema(v, method, segments, body, &req)
	case "objects":
		span, r = routeObjects(v, method, segments, u, body, &req)
	case "batch":
		span, r = routeBatch(v, method, segments, body, &req)
	case "graphql":
		span, r = routeGraphQL(v, method, body, &req)
	}
	if span == "" {
		return restRoute{}, false
	}

	d, ok := Lookup(v, span)
	if !ok {
		return restRoute{}, false
	}
	r.descriptor = d
	r.request = req
	return r, true
}

func routeSchema(v APIVersion, method string, seg []string, body []byte, req *restRequest) (string, restRoute) {
	var r restRoute
	switch {
	case method == http.MethodGet && len(seg) == 1:
		if v == V4 {
			return "collections.list_all", r
		}
		return "schema.get", r
	case method == http.MethodGet && len(seg) == 2:
		r.target = handleFor(v, seg[1])
		if v == V4 {
			return "collections.get", r
		}
		return "schema.get", r
	case method == http.MethodPost && len(seg) == 1:
		req.Collection = bodyString(body, "class")
		if v == V4 {
			return "collections.create", r
		}
		return "schema.create_class", r
	case method == http.MethodDelete && len(seg) == 2:
		r.target = handleFor(v, seg[1])
		if v == V4 {
			return "collections.delete", r
		}
		return "schema.delete_class", r
	}
	return "", r
}

func routeObjects(v APIVersion, method string, seg []string, u *url.URL, body []byte, req *restRequest) (string, restRoute) {
	var r restRoute
	class, id := objectPath(seg[1:])
	if class != "" {
		r.target = handleFor(v, class)
	}

	switch method {
	case http.MethodPost:
		if len(seg) == 2 && seg[1] == "validate" {
			req.Collection = bodyString(body, "class")
			if v == V4 {
				return "", r
			}
			return "data.crud_data.validate", r
		}
		if len(seg) != 1 {
			return "", r
		}
		req.Collection = bodyString(body, "class")
		if v == V4 {
			return "collections.data.insert", r
		}
		return "data.crud_data.create", r

	case http.MethodGet:
		if class == "" {
			req.Collection = u.Query().Get("class")
		}
		switch {
		case id != "":
			r.response = responseObject
		case len(seg) == 1:
			r.response = responseObjectList
		}
		if v == V4 {
			return "collections.query.get", r
		}
		return "data.crud_data.get", r

	case http.MethodPut, http.MethodPatch, http.MethodDelete:
		if v != V4 || id == "" {
			return "", r
		}
		if class == "" {
			req.Collection = bodyString(body, "class")
		}
		switch method {
		case http.MethodPut:
			return "collections.data.replace", r
		case http.MethodPatch:
			return "collections.data.update", r
		default:
			return "collections.data.delete_by_id", r
		}
	}
	return "", r
}

func routeBatch(v APIVersion, method string, seg []string, body []byte, req *restRequest) (string, restRoute) {
	var r restRoute
	if len(seg) != 2 || seg[1] != "objects" {
		return "", r
	}
	switch {
	case method == http.MethodPost:
		req.Collection = firstBatchClass(body)
		if v == V4 {
			return "collections.batch.objects", r
		}
		return "batch.crud_batch.flush", r
	case method == http.MethodDelete && v == V4:
		req.Collection = batchDeleteClass(body)
		return "collections.data.delete_many", r
	}
	return "", r
}

func routeGraphQL(v APIVersion, method string, body []byte, req *restRequest) (string, restRoute) {
	var r restRoute
	if method != http.MethodPost {
		return "", r
	}

	query := bodyString(body, "query")
	req.GraphQL = query

	var op string
	if m := graphQLOperation.FindStringSubmatch(query); m != nil {
		op = m[1]
		req.Collection = m[2]
	}
	concepts := nearTextConcepts(query)
	r.response = responseGraphQL

	if v == V4 {
		switch op {
		case "Get":
			if concepts != nil {
				r.query = concepts
				return "collections.query.near_text", r
			}
			return "collections.query.fetch_objects", r
		case "Aggregate":
			r.response = responseNone
			return "collections.aggregate.over_all", r
		}
		return "", r
	}

	switch op {
	case "Get":
		if concepts != nil {
			r.query = concepts
		}
		return "gql.query.get.do", r
	case "Aggregate":
		return "gql.query.aggregate", r
	}
	if query != "" {
		r.query = query
	}
	return "gql.query.raw", r
}

// apiSegments returns the path segments after "/v1/". Any prefix before
// it, such as a reverse-proxy mount point, is ignored.
func apiSegments(path string) ([]string, bool) {
	idx := strings.Index(path, "/v1/")
	if idx < 0 {
		return nil, false
	}
	rest := strings.Trim(path[idx+len("/v1/"):], "/")
	if rest == "" {
		return nil, true
	}
	return strings.Split(rest, "/"), true
}

// objectPath splits the segments after "objects" into class and id. Both
// "/objects/{class}/{id}" and the legacy "/objects/{id}" are accepted.
func objectPath(seg []string) (class, id string) {
	switch len(seg) {
	case 1:
		if _, err := uuid.Parse(seg[0]); err == nil {
			return "", seg[0]
		}
		if seg[0] == "validate" {
			return "", ""
		}
		return seg[0], ""
	case 2, 3:
		return seg[0], seg[1]
	}
	return "", ""
}

func handleFor(v APIVersion, name string) any {
	if v == V4 {
		return collectionHandle{name: name}
	}
	return classHandle{name: name}
}

// bodyString returns a top-level string field of a JSON object body.
func bodyString(body []byte, field string) string {
	if len(body) == 0 {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m[field], &s); err != nil {
		return ""
	}
	return s
}

// firstBatchClass returns the class of the first object of a batch body.
func firstBatchClass(body []byte) string {
	var batch struct {
		Objects []struct {
			Class string `json:"class"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(body, &batch); err != nil || len(batch.Objects) == 0 {
		return ""
	}
	return batch.Objects[0].Class
}

// batchDeleteClass returns the class of a batch delete match clause.
func batchDeleteClass(body []byte) string {
	var del struct {
		Match struct {
			Class string `json:"class"`
		} `json:"match"`
	}
	if err := json.Unmarshal(body, &del); err != nil {
		return ""
	}
	return del.Match.Class
}

// nearTextConcepts returns the nearText concepts of a GraphQL query, or
// nil when the query has no nearText argument.
func nearTextConcepts(query string) []string {
	m := graphQLNearText.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	var concepts []string
	if err := json.Unmarshal([]byte(m[1]), &concepts); err != nil {
		return []string{m[1]}
	}
	if concepts == nil {
		concepts = []string{}
	}
	return concepts
}
