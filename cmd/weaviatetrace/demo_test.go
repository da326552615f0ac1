// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/weaviate-otel/pkg/logging"
	"github.com/AleutianAI/weaviate-otel/pkg/ux"
	"github.com/AleutianAI/weaviate-otel/services/otelweaviate"
)

// fakeWeaviate answers the REST calls the demo makes.
type fakeWeaviate struct {
	*httptest.Server

	mu        sync.Mutex
	deleted   []string
	failClass atomic.Bool
	ready     atomic.Bool
}

func newFakeWeaviate(t *testing.T) *fakeWeaviate {
	t.Helper()
	f := &fakeWeaviate{}
	f.ready.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/schema", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method == http.MethodPost && f.failClass.Load() {
			http.Error(w, `{"error":[{"message":"class already exists"}]}`, http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/v1/schema/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.mu.Lock()
			f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/v1/schema/"))
			f.mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/batch/objects", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Objects []map[string]any `json:"objects"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, obj := range req.Objects {
			obj["result"] = map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(req.Objects)
	})
	mux.HandleFunc("/v1/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"Get":{"TraceDemo":[{"title":"Vector databases","_additional":{"distance":0.1}}]}}}`)
	})
	mux.HandleFunc("/v1/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		if !f.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeWeaviate) deletedClasses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type demoHarness struct {
	inst     *otelweaviate.Instrumentor
	recorder *tracetest.SpanRecorder
	out      *bytes.Buffer
	logger   *logging.Logger
	printer  *ux.Printer
}

func newDemoHarness(t *testing.T) *demoHarness {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger := logging.New(logging.Config{Quiet: true})
	inst := otelweaviate.New(
		otelweaviate.WithTracerProvider(tp),
		otelweaviate.WithClientVersion("4.4.0"),
		otelweaviate.WithLogger(logger.Slog()),
	)
	require.NoError(t, inst.Instrument())
	t.Cleanup(inst.Uninstrument)

	out := &bytes.Buffer{}
	return &demoHarness{
		inst:     inst,
		recorder: recorder,
		out:      out,
		logger:   logger,
		printer:  ux.NewPrinter(out, ux.ModeMachine),
	}
}

func (h *demoHarness) spanCounts() map[string]int {
	counts := map[string]int{}
	for _, s := range h.recorder.Ended() {
		counts[s.Name()]++
	}
	return counts
}

func demoConfig(srvURL string) Config {
	cfg := DefaultConfig()
	cfg.Weaviate.URL = srvURL
	cfg.Demo.RPS = 100
	return cfg
}

func TestDemo_Run(t *testing.T) {
	srv := newFakeWeaviate(t)
	h := newDemoHarness(t)
	cfg := demoConfig(srv.URL)

	d, err := newDemo(context.Background(), cfg, h.inst, h.logger, h.printer)
	require.NoError(t, err)
	require.NoError(t, d.run(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "OK: created collection TraceDemo\n")
	assert.Contains(t, out, "OK: imported 5 objects\n")
	assert.Contains(t, out, "OK: fetched 1 objects\n")
	assert.Contains(t, out, "OK: ran 2 queries, 2 hits\n")
	assert.Contains(t, out, "OK: dropped collection TraceDemo\n")
	assert.Equal(t, []string{"TraceDemo"}, srv.deletedClasses())

	counts := h.spanCounts()
	assert.Equal(t, 1, counts["db.weaviate.collections.create"])
	assert.Equal(t, len(demoCorpus), counts["db.weaviate.collections.batch.add_object"])
	assert.Equal(t, 1, counts["db.weaviate.collections.batch.objects"])
	assert.Equal(t, 3, counts["db.weaviate.collections.query.fetch_objects"])
	assert.Equal(t, 1, counts["db.weaviate.collections.delete"])

	for _, s := range h.recorder.Ended() {
		if s.Name() != "db.weaviate.collections.batch.add_object" {
			continue
		}
		assert.Contains(t, s.Attributes(), attribute.String(string(otelweaviate.AttrCollectionName), "TraceDemo"))
		assert.Contains(t, s.Attributes(), attribute.String(string(otelweaviate.AttrServerAddress), "127.0.0.1"))
	}
}

func TestDemo_KeepSkipsDrop(t *testing.T) {
	srv := newFakeWeaviate(t)
	h := newDemoHarness(t)
	cfg := demoConfig(srv.URL)
	cfg.Demo.Keep = true

	d, err := newDemo(context.Background(), cfg, h.inst, h.logger, h.printer)
	require.NoError(t, err)
	require.NoError(t, d.run(context.Background()))

	assert.Empty(t, srv.deletedClasses())
	assert.Zero(t, h.spanCounts()["db.weaviate.collections.delete"])
}

func TestDemo_CreateFailureStopsRun(t *testing.T) {
	srv := newFakeWeaviate(t)
	srv.failClass.Store(true)
	h := newDemoHarness(t)

	d, err := newDemo(context.Background(), demoConfig(srv.URL), h.inst, h.logger, h.printer)
	require.NoError(t, err)

	err = d.run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "create collection TraceDemo")
	assert.Empty(t, srv.deletedClasses())
	assert.Zero(t, h.spanCounts()["db.weaviate.collections.batch.objects"])
}

func TestDemo_NotReady(t *testing.T) {
	srv := newFakeWeaviate(t)
	srv.ready.Store(false)
	h := newDemoHarness(t)
	cfg := demoConfig(srv.URL)
	cfg.Demo.ReadyTimeout = 50 * time.Millisecond

	d, err := newDemo(context.Background(), cfg, h.inst, h.logger, h.printer)
	require.NoError(t, err)

	err = d.run(context.Background())
	assert.ErrorContains(t, err, "not ready within")
	assert.Zero(t, h.spanCounts()["db.weaviate.collections.create"])
}

func TestEmbed(t *testing.T) {
	a := embed("vector databases")
	assert.Len(t, a, embeddingDims)
	assert.Equal(t, a, embed("vector databases"))
	assert.NotEqual(t, a, embed("distributed tracing"))
	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestHitCount(t *testing.T) {
	resp := &models.GraphQLResponse{Data: map[string]models.JSONObject{
		"Get": map[string]interface{}{"TraceDemo": []interface{}{map[string]interface{}{}, map[string]interface{}{}}},
	}}
	assert.Equal(t, 2, hitCount(resp, "TraceDemo"))
	assert.Equal(t, 0, hitCount(resp, "Other"))
	assert.Equal(t, 0, hitCount(nil, "TraceDemo"))
	assert.Equal(t, 0, hitCount(&models.GraphQLResponse{}, "TraceDemo"))
}

func TestGraphQLError(t *testing.T) {
	assert.NoError(t, graphQLError(nil))
	assert.NoError(t, graphQLError(&models.GraphQLResponse{}))

	err := graphQLError(&models.GraphQLResponse{Errors: []*models.GraphQLError{{Message: "no such class"}}})
	assert.EqualError(t, err, "no such class")
}
